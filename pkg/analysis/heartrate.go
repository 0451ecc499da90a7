// Package analysis summarises a user's heart-rate history and derives
// personalised target ranges.
package analysis

import (
	"math"
	"time"
)

const (
	TrendStable     = "stable"
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"

	HRVVeryLow  = "very-low"
	HRVLow      = "low"
	HRVModerate = "moderate"
	HRVHigh     = "high"
)

// Sample is one reading in chronological order.
type Sample struct {
	HeartRate float64   `json:"heart_rate"`
	At        time.Time `json:"at"`
	Status    string    `json:"status,omitempty"`
}

type Stats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	StdDev  float64 `json:"sd"`
}

type Trend struct {
	Dominant      string `json:"dominant"`
	LongestStreak int    `json:"longest_streak"`
}

type Summary struct {
	TotalRecords  int       `json:"total_records"`
	Stats         Stats     `json:"stats"`
	HRVProxy      string    `json:"hrv_proxy,omitempty"`
	Note          string    `json:"variability_note,omitempty"`
	OutOfRangePct float64   `json:"out_of_range_pct"`
	Trend         Trend     `json:"trend"`
	Preview       []Sample  `json:"sample_preview"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// BasicStats uses the population standard deviation.
func BasicStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	s := Stats{Count: len(values), Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Average = sum / float64(len(values))
	var ss float64
	for _, v := range values {
		ss += (v - s.Average) * (v - s.Average)
	}
	s.StdDev = math.Sqrt(ss / float64(len(values)))
	return s
}

// HRVProxy classifies variability from the standard deviation. It needs
// more than four readings.
func HRVProxy(s Stats) string {
	if s.Count <= 4 {
		return ""
	}
	switch {
	case s.StdDev < 3:
		return HRVVeryLow
	case s.StdDev < 6:
		return HRVLow
	case s.StdDev < 10:
		return HRVModerate
	default:
		return HRVHigh
	}
}

// OutOfRangePct is the share of readings outside 60-100 bpm, one decimal.
func OutOfRangePct(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	n := 0
	for _, v := range values {
		if v < 60 || v > 100 {
			n++
		}
	}
	return round(float64(n)*100/float64(len(values)), 1)
}

// Trends finds the longest run of strictly rising or falling steps. Equal
// neighbours break a run. Dominant is the direction of the longest run,
// the earliest one on ties; stable when no step moves.
func Trends(values []float64) Trend {
	t := Trend{Dominant: TrendStable}
	current, streak := TrendStable, 0
	for i := 1; i < len(values); i++ {
		dir := direction(values[i-1], values[i])
		switch {
		case dir == TrendStable:
			current, streak = TrendStable, 0
			continue
		case dir == current:
			streak++
		default:
			current, streak = dir, 1
		}
		if streak > t.LongestStreak {
			t.LongestStreak = streak
			t.Dominant = current
		}
	}
	return t
}

func direction(prev, cur float64) string {
	switch {
	case cur > prev:
		return TrendIncreasing
	case cur < prev:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// Summarize analyses samples given oldest first.
func Summarize(samples []Sample, now time.Time) Summary {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.HeartRate
	}
	stats := BasicStats(values)
	stats.Average = round(stats.Average, 2)
	stats.StdDev = round(stats.StdDev, 2)

	sum := Summary{
		TotalRecords:  stats.Count,
		Stats:         stats,
		OutOfRangePct: OutOfRangePct(values),
		Trend:         Trends(values),
		GeneratedAt:   now,
	}
	sum.HRVProxy = HRVProxy(BasicStats(values))
	switch sum.HRVProxy {
	case HRVHigh:
		sum.Note = "Large heart rate variability; may be caused by stress, strenuous activity or an abnormality."
	case HRVVeryLow:
		sum.Note = "Very low variability; normal for athletes, otherwise a checkup may be needed."
	}

	// newest first, at most ten
	for i := len(samples) - 1; i >= 0 && len(sum.Preview) < 10; i-- {
		sum.Preview = append(sum.Preview, samples[i])
	}
	if sum.Preview == nil {
		sum.Preview = []Sample{}
	}
	return sum
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

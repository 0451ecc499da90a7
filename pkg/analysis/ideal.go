package analysis

import (
	"math"
	"strings"

	"github.com/synaptica-ai/cardiorisk/pkg/records"
)

// DefaultAge is assumed for the maximum heart rate when the profile has none.
const DefaultAge = 40

// raisingConditions lift the resting range by 2/4 bpm each.
var raisingConditions = map[string]bool{
	"hypertension": true,
	"diabetes":     true,
	"obesity":      true,
	"thyroid":      true,
	"copd":         true,
}

var conditionNotes = map[string]string{
	"hypertension": "Control your blood pressure and limit salt intake.",
	"diabetes":     "Monitor blood glucose to reduce cardiovascular complications.",
	"obesity":      "Weight loss can improve heart rate and blood pressure.",
	"thyroid":      "Thyroid disorders directly affect heart rate.",
	"athlete":      "Low resting heart rate is normal for well-trained athletes.",
}

type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type Zones struct {
	Light    int `json:"light"`
	Moderate int `json:"moderate"`
	Vigorous int `json:"vigorous"`
}

type IdealMetrics struct {
	Resting     Range  `json:"resting"`
	Max         int    `json:"max"`
	TargetZones Zones  `json:"target_zones"`
	Assumptions string `json:"assumptions,omitempty"`
}

// Ideal derives a personal resting range, the Tanaka maximum heart rate and
// training zones from a profile.
func Ideal(p records.Profile) IdealMetrics {
	minRest, maxRest := 60.0, 80.0
	if p.Age != nil {
		if *p.Age > 50 {
			minRest += 2
			maxRest += 4
		}
		if *p.Age > 65 {
			minRest += 3
			maxRest += 6
		}
	}
	if strings.EqualFold(p.Gender, "female") {
		minRest += 2
		maxRest += 3
	}

	raises := 0
	for _, c := range p.Conditions {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "athlete" {
			minRest -= 10
			maxRest -= 10
		}
		if raisingConditions[c] {
			raises++
		}
	}
	minRest += 2 * float64(raises)
	maxRest += 4 * float64(raises)

	minRest = math.Max(45, math.Min(minRest, 85))
	maxRest = math.Max(minRest+5, math.Min(maxRest, 100))

	age := float64(DefaultAge)
	if p.Age != nil {
		age = *p.Age
	}
	maxHR := math.Round(208 - 0.7*age)

	m := IdealMetrics{
		Resting: Range{Min: int(math.Round(minRest)), Max: int(math.Round(maxRest))},
		Max:     int(maxHR),
		TargetZones: Zones{
			Light:    int(math.Round(maxHR * 0.5)),
			Moderate: int(math.Round(maxHR * 0.7)),
			Vigorous: int(math.Round(maxHR * 0.85)),
		},
	}
	if p.Age == nil || p.Gender == "" || p.Weight == nil {
		m.Assumptions = "Some default values were used due to missing data"
	}
	return m
}

// RiskNotes returns advice for each recognised condition in profile order.
func RiskNotes(conditions []string) []string {
	notes := []string{}
	seen := map[string]bool{}
	for _, c := range conditions {
		c = strings.ToLower(strings.TrimSpace(c))
		if note, ok := conditionNotes[c]; ok && !seen[c] {
			seen[c] = true
			notes = append(notes, note)
		}
	}
	return notes
}

// Samples converts stored readings, skipping those without a heart rate.
func Samples(readings []records.Telemetry) []Sample {
	out := make([]Sample, 0, len(readings))
	for _, r := range readings {
		if r.HeartRate == nil {
			continue
		}
		s := Sample{HeartRate: *r.HeartRate, Status: r.Status}
		if r.CreatedAt != nil {
			s.At = *r.CreatedAt
		}
		out = append(out, s)
	}
	return out
}

package features

import (
	"fmt"
	"sort"
	"time"
)

const (
	PipelineHistory = "history"
	GenderOther     = "other"
	DefaultHour     = 12
)

type HistoryOptions struct {
	ConditionLimit int
}

// FitHistory derives the telemetry schema from the corpus itself: the label
// map from observed labels, the condition vocabulary from the most frequent
// conditions, the gender enumeration from observed genders and the medians
// used to fill missing age and weight.
func FitHistory(records []Record, labels []string, opts HistoryOptions) (*Dataset, error) {
	if len(records) != len(labels) {
		return nil, fmt.Errorf("%d records but %d labels", len(records), len(labels))
	}
	s := &Schema{
		Pipeline:     PipelineHistory,
		CreatedAt:    time.Now().UTC(),
		Enumerations: map[string]Enumeration{},
		Medians:      map[string]float64{},
		Defaults:     map[string]float64{FieldHour: DefaultHour},
		Required:     []string{FieldHeartRate},
	}
	s.Labels = NewLabelMap(HistoryLabelOrder, labels)

	var kept []Record
	var keptLabels []string
	for i, r := range records {
		if _, ok := s.Labels.Index(labels[i]); ok {
			kept = append(kept, r)
			keptLabels = append(keptLabels, labels[i])
		}
	}

	corpus := make([][]string, len(kept))
	genders := []string{GenderOther}
	for i, r := range kept {
		corpus[i] = r.Conditions
		if g := r.Category(FieldGender); g != "" {
			genders = append(genders, g)
		}
	}
	s.Conditions = TopConditions(corpus, opts.ConditionLimit)
	gender := NewEnumeration(genders)
	gender.Fallback = GenderOther
	s.Enumerations[FieldGender] = gender

	for _, field := range []string{FieldAge, FieldWeight} {
		var values []float64
		for _, r := range kept {
			if v, ok := r.Value(field); ok {
				values = append(values, v)
			}
		}
		s.Medians[field] = Median(values)
	}

	s.Slots = []Slot{
		{Name: FieldHeartRate, Kind: KindNumeric, Field: FieldHeartRate},
		{Name: FieldAge, Kind: KindNumeric, Field: FieldAge},
		{Name: FieldWeight, Kind: KindNumeric, Field: FieldWeight},
		{Name: "gender_enc", Kind: KindCategorical, Field: FieldGender, Enumeration: FieldGender},
		{Name: FieldHour, Kind: KindNumeric, Field: FieldHour},
		{Name: "is_night", Kind: KindFlag, Rules: []Rule{{Field: FieldHour, Op: OpOutside, Value: 6, Upper: 22}}},
		{Name: "hr_is_low", Kind: KindFlag, Rules: []Rule{{Field: FieldHeartRate, Op: OpLess, Value: 60}}},
		{Name: "hr_is_high", Kind: KindFlag, Rules: []Rule{{Field: FieldHeartRate, Op: OpGreater, Value: 100}}},
	}
	for _, c := range s.Conditions {
		s.Slots = append(s.Slots, Slot{Name: ConditionSlotName(c), Kind: KindCondition, Condition: c})
	}
	s.finalize()

	ds, err := assemble(s, kept, keptLabels)
	if err != nil {
		return nil, err
	}
	ds.Dropped = len(records) - len(kept)
	return ds, nil
}

// Median of values; zero when there are none.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

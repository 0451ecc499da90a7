package features

import (
	"fmt"
	"time"
)

const PipelineStatic = "static"

var (
	AgeBucket = Bucket{
		Edges:  []float64{40, 50, 60, 70},
		Labels: []string{"young", "middle", "senior", "old", "very_old"},
	}
	BloodPressureBucket = Bucket{
		Edges:  []float64{120, 140, 160},
		Labels: []string{"normal", "elevated", "high1", "high2"},
	}
	CholesterolBucket = Bucket{
		Edges:  []float64{200, 240, 300},
		Labels: []string{"good", "borderline", "high", "very_high"},
	}

	// RiskScoreRules are the clinical threshold hits summed into risk_score.
	RiskScoreRules = []Rule{
		{Field: FieldAge, Op: OpGreater, Value: 50},
		{Field: FieldRestingBP, Op: OpGreater, Value: 140},
		{Field: FieldCholesterol, Op: OpGreater, Value: 240},
		{Field: FieldMaxHeartRate, Op: OpLess, Value: 120},
		{Field: FieldAngina, Op: OpGreater, Value: 0},
	}

	staticDirect = []string{
		FieldAge, FieldSex, FieldChestPain, FieldRestingBP, FieldCholesterol,
		FieldFastingSugar, FieldRestECG, FieldMaxHeartRate, FieldAngina,
		FieldOldpeak, FieldSlope, FieldVessels, FieldThal,
	}

	// staticDefaults fill clinical fields a caller did not measure.
	staticDefaults = map[string]float64{
		FieldAge:          50,
		FieldSex:          1,
		FieldChestPain:    0,
		FieldRestingBP:    120,
		FieldCholesterol:  200,
		FieldFastingSugar: 0,
		FieldRestECG:      0,
		FieldMaxHeartRate: 80,
		FieldAngina:       0,
		FieldOldpeak:      0,
		FieldSlope:        1,
		FieldVessels:      0,
		FieldThal:         2,
	}
)

// StaticSchema returns the fixed clinical schema: thirteen direct columns,
// three bucketed categories and the composite risk score.
func StaticSchema() *Schema {
	s := &Schema{
		Pipeline:     PipelineStatic,
		CreatedAt:    time.Now().UTC(),
		Enumerations: map[string]Enumeration{},
		Defaults:     map[string]float64{},
		Alternates:   map[string]string{FieldMaxHeartRate: FieldHeartRate},
		Conditions:   []string{},
	}
	for k, v := range staticDefaults {
		s.Defaults[k] = v
	}
	for _, field := range staticDirect {
		s.Slots = append(s.Slots, Slot{Name: field, Kind: KindNumeric, Field: field})
	}
	buckets := []struct {
		name   string
		field  string
		bucket Bucket
	}{
		{"age_group", FieldAge, AgeBucket},
		{"bp_category", FieldRestingBP, BloodPressureBucket},
		{"chol_category", FieldCholesterol, CholesterolBucket},
	}
	for _, b := range buckets {
		bucket := b.bucket
		s.Enumerations[b.name] = OrdinalEnumeration(bucket.Labels...)
		s.Slots = append(s.Slots, Slot{Name: b.name, Kind: KindBucket, Field: b.field, Enumeration: b.name, Bucket: &bucket})
	}
	s.Slots = append(s.Slots, Slot{Name: "risk_score", Kind: KindScore, Rules: append([]Rule(nil), RiskScoreRules...)})
	s.finalize()
	return s
}

// FitStatic engineers the clinical corpus. labels holds the target severity
// of each record as a string ("0".."4"); records whose label is outside the
// canonical set are dropped.
func FitStatic(records []Record, labels []string) (*Dataset, error) {
	s := StaticSchema()
	s.Labels = NewLabelMap(StaticLabelOrder, labels)
	return assemble(s, records, labels)
}

func assemble(s *Schema, records []Record, labels []string) (*Dataset, error) {
	if len(records) != len(labels) {
		return nil, fmt.Errorf("%d records but %d labels", len(records), len(labels))
	}
	ds := &Dataset{Schema: s}
	for i, r := range records {
		idx, ok := s.Labels.Index(labels[i])
		if !ok {
			ds.Dropped++
			continue
		}
		row, err := s.Vector(r)
		if err != nil {
			return nil, err
		}
		ds.Samples = append(ds.Samples, row)
		ds.Labels = append(ds.Labels, idx)
	}
	return ds, nil
}

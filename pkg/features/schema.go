package features

import (
	"fmt"
	"time"
)

const SchemaVersion = 1

type SlotKind string

const (
	KindNumeric     SlotKind = "numeric"
	KindCategorical SlotKind = "categorical"
	KindBucket      SlotKind = "bucket"
	KindFlag        SlotKind = "flag"
	KindScore       SlotKind = "score"
	KindCondition   SlotKind = "condition"
)

// Slot is one position of the feature vector.
type Slot struct {
	Name        string   `json:"name"`
	Kind        SlotKind `json:"kind"`
	Field       string   `json:"field,omitempty"`
	Enumeration string   `json:"enumeration,omitempty"`
	Bucket      *Bucket  `json:"bucket,omitempty"`
	Rules       []Rule   `json:"rules,omitempty"`
	Condition   string   `json:"condition,omitempty"`
}

// Schema is the fit-time contract that every inference vector is rebuilt
// from. It is persisted next to the model of the run that produced it.
type Schema struct {
	Version      int                    `json:"version"`
	Pipeline     string                 `json:"pipeline"`
	RunID        string                 `json:"run_id"`
	CreatedAt    time.Time              `json:"created_at"`
	FeatureNames []string               `json:"feature_names"`
	Slots        []Slot                 `json:"slots"`
	Enumerations map[string]Enumeration `json:"enumerations,omitempty"`
	Conditions   []string               `json:"conditions_used"`
	Labels       LabelMap               `json:"label_map"`
	Medians      map[string]float64     `json:"medians,omitempty"`
	Defaults     map[string]float64     `json:"defaults,omitempty"`
	Alternates   map[string]string      `json:"alternates,omitempty"`
	Required     []string               `json:"required,omitempty"`
}

func (s *Schema) finalize() {
	s.Version = SchemaVersion
	s.FeatureNames = make([]string, len(s.Slots))
	for i, slot := range s.Slots {
		s.FeatureNames[i] = slot.Name
	}
}

// Validate checks the schema is internally consistent after loading.
func (s *Schema) Validate() error {
	if s.Version != SchemaVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidSchema, s.Version, SchemaVersion)
	}
	if len(s.Slots) == 0 {
		return fmt.Errorf("%w: no slots", ErrInvalidSchema)
	}
	if len(s.FeatureNames) != len(s.Slots) {
		return fmt.Errorf("%w: %d feature names for %d slots", ErrInvalidSchema, len(s.FeatureNames), len(s.Slots))
	}
	for i, slot := range s.Slots {
		if s.FeatureNames[i] != slot.Name {
			return fmt.Errorf("%w: slot %d is %q but feature name is %q", ErrInvalidSchema, i, slot.Name, s.FeatureNames[i])
		}
		switch slot.Kind {
		case KindCategorical:
			if _, ok := s.Enumerations[slot.Enumeration]; !ok {
				return fmt.Errorf("%w: slot %s references missing enumeration %q", ErrInvalidSchema, slot.Name, slot.Enumeration)
			}
		case KindBucket:
			if slot.Bucket == nil || len(slot.Bucket.Labels) != len(slot.Bucket.Edges)+1 {
				return fmt.Errorf("%w: slot %s has malformed bucket", ErrInvalidSchema, slot.Name)
			}
			if _, ok := s.Enumerations[slot.Enumeration]; !ok {
				return fmt.Errorf("%w: slot %s references missing enumeration %q", ErrInvalidSchema, slot.Name, slot.Enumeration)
			}
		case KindFlag:
			if len(slot.Rules) != 1 {
				return fmt.Errorf("%w: flag slot %s needs exactly one rule", ErrInvalidSchema, slot.Name)
			}
		case KindNumeric, KindScore, KindCondition:
		default:
			return fmt.Errorf("%w: slot %s has unknown kind %q", ErrInvalidSchema, slot.Name, slot.Kind)
		}
	}
	if s.Labels.Len() == 0 {
		return fmt.Errorf("%w: empty label map", ErrInvalidSchema)
	}
	return nil
}

// Vector builds the feature row for r by walking the slots in order.
func (s *Schema) Vector(r Record) ([]float64, error) {
	for _, field := range s.Required {
		if _, ok := r.Value(field); !ok {
			return nil, &MissingFieldError{Field: field}
		}
	}
	present := make(map[string]struct{}, len(r.Conditions))
	for _, c := range r.Conditions {
		present[NormalizeToken(c)] = struct{}{}
	}

	out := make([]float64, len(s.Slots))
	for i, slot := range s.Slots {
		switch slot.Kind {
		case KindNumeric:
			v, err := s.value(r, slot.Field)
			if err != nil {
				return nil, err
			}
			out[i] = v
		case KindCategorical:
			code, err := s.encode(slot, r.Category(slot.Field))
			if err != nil {
				return nil, err
			}
			out[i] = float64(code)
		case KindBucket:
			v, err := s.value(r, slot.Field)
			if err != nil {
				return nil, err
			}
			code, err := s.encode(slot, slot.Bucket.Label(v))
			if err != nil {
				return nil, err
			}
			out[i] = float64(code)
		case KindFlag:
			hit, err := s.match(r, slot.Rules[0])
			if err != nil {
				return nil, err
			}
			if hit {
				out[i] = 1
			}
		case KindScore:
			var score int
			for _, rule := range slot.Rules {
				hit, err := s.match(r, rule)
				if err != nil {
					return nil, err
				}
				if hit {
					score++
				}
			}
			out[i] = float64(score)
		case KindCondition:
			if _, ok := present[slot.Condition]; ok {
				out[i] = 1
			}
		default:
			return nil, fmt.Errorf("%w: slot %s has unknown kind %q", ErrInvalidSchema, slot.Name, slot.Kind)
		}
	}
	return out, nil
}

func (s *Schema) Matrix(records []Record) ([][]float64, error) {
	out := make([][]float64, len(records))
	for i, r := range records {
		row, err := s.Vector(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = row
	}
	return out, nil
}

// value resolves a numeric field: the record itself, then its alternate
// field, then the fitted median, then the fixed default.
func (s *Schema) value(r Record, field string) (float64, error) {
	if v, ok := r.Value(field); ok {
		return v, nil
	}
	if alt, ok := s.Alternates[field]; ok {
		if v, ok := r.Value(alt); ok {
			return v, nil
		}
	}
	if v, ok := s.Medians[field]; ok {
		return v, nil
	}
	if v, ok := s.Defaults[field]; ok {
		return v, nil
	}
	return 0, &MissingFieldError{Field: field}
}

func (s *Schema) match(r Record, rule Rule) (bool, error) {
	v, err := s.value(r, rule.Field)
	if err != nil {
		return false, err
	}
	return rule.Match(v), nil
}

func (s *Schema) encode(slot Slot, value string) (int, error) {
	enum := s.Enumerations[slot.Enumeration]
	if value == "" {
		value = enum.Fallback
	}
	code, ok := enum.Code(value)
	if !ok {
		return 0, &UnknownCategoryError{Field: slot.Field, Value: value}
	}
	return code, nil
}

// Dataset is an engineered training corpus together with the schema that
// produced it.
type Dataset struct {
	Schema  *Schema
	Samples [][]float64
	Labels  []int
	Dropped int
}

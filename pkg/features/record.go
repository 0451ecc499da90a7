package features

import (
	"math"
	"strings"
	"time"
)

const (
	FieldHeartRate    = "heartRate"
	FieldAge          = "age"
	FieldSex          = "sex"
	FieldChestPain    = "cp"
	FieldRestingBP    = "trestbps"
	FieldCholesterol  = "chol"
	FieldFastingSugar = "fbs"
	FieldRestECG      = "restecg"
	FieldMaxHeartRate = "thalach"
	FieldAngina       = "exang"
	FieldOldpeak      = "oldpeak"
	FieldSlope        = "slope"
	FieldVessels      = "ca"
	FieldThal         = "thal"
	FieldWeight       = "weight"
	FieldHour         = "created_hour"
	FieldGender       = "gender"
)

// Record is one observation. Absent numeric fields are simply missing from
// Numeric; the schema decides how they are filled.
type Record struct {
	Numeric    map[string]float64 `json:"numeric"`
	Categories map[string]string  `json:"categories,omitempty"`
	Conditions []string           `json:"conditions,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

func (r Record) Value(field string) (float64, bool) {
	v, ok := r.Numeric[field]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func (r Record) Category(field string) string {
	return NormalizeToken(r.Categories[field])
}

// NormalizeToken lower-cases and trims a categorical value or condition name.
func NormalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

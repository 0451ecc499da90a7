package serving

import (
	"fmt"
	"strings"

	"github.com/synaptica-ai/cardiorisk/pkg/common/models"
	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/records"
)

// ValidationError marks a request the caller must fix.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ClinicalRecord maps a clinical request onto the static record fields.
// Unset fields stay missing so the schema defaults apply.
func ClinicalRecord(in models.ClinicalInput) features.Record {
	r := features.Record{Numeric: map[string]float64{}}
	fields := []struct {
		name  string
		value *float64
	}{
		{features.FieldAge, in.Age},
		{features.FieldSex, in.Sex},
		{features.FieldChestPain, in.CP},
		{features.FieldRestingBP, in.Trestbps},
		{features.FieldCholesterol, in.Chol},
		{features.FieldFastingSugar, in.FBS},
		{features.FieldRestECG, in.RestECG},
		{features.FieldMaxHeartRate, in.Thalach},
		{features.FieldAngina, in.Exang},
		{features.FieldOldpeak, in.Oldpeak},
		{features.FieldSlope, in.Slope},
		{features.FieldVessels, in.CA},
		{features.FieldThal, in.Thal},
		{features.FieldHeartRate, in.HeartRate},
	}
	for _, f := range fields {
		if f.value != nil {
			r.Numeric[f.name] = *f.value
		}
	}
	return r
}

// TelemetryRecord maps a live reading onto the history record fields. The
// hour comes from Hour, then Timestamp; otherwise the schema default applies.
func TelemetryRecord(in models.TelemetryInput) (features.Record, error) {
	if in.HeartRate == nil {
		return features.Record{}, &ValidationError{Message: "heart_rate is required"}
	}
	if *in.HeartRate <= 0 {
		return features.Record{}, &ValidationError{Message: "heart_rate must be positive"}
	}
	r := features.Record{
		Numeric:    map[string]float64{features.FieldHeartRate: *in.HeartRate},
		Categories: map[string]string{},
	}
	switch {
	case in.Hour != nil:
		if *in.Hour < 0 || *in.Hour > 23 {
			return features.Record{}, &ValidationError{Message: fmt.Sprintf("hour %d outside 0-23", *in.Hour)}
		}
		r.Numeric[features.FieldHour] = float64(*in.Hour)
	case in.Timestamp != nil:
		r.Timestamp = in.Timestamp.UTC()
		r.Numeric[features.FieldHour] = float64(r.Timestamp.Hour())
	}
	records.ApplyProfile(&r, records.Profile{
		Age:        in.Age,
		Gender:     in.Gender,
		Weight:     in.Weight,
		Conditions: in.Conditions,
	})
	return r, nil
}

// recordInput echoes the values a prediction was made from.
func recordInput(r features.Record) map[string]interface{} {
	in := map[string]interface{}{}
	for k, v := range r.Numeric {
		in[k] = v
	}
	for k, v := range r.Categories {
		if v != "" {
			in[k] = strings.TrimSpace(v)
		}
	}
	if len(r.Conditions) > 0 {
		in["conditions"] = r.Conditions
	}
	return in
}

// historyInput echoes a telemetry prediction with the request field names.
// Values the caller did not give are null; hour is the one the model saw.
func historyInput(r features.Record) map[string]interface{} {
	in := map[string]interface{}{
		"heartRate":  r.Numeric[features.FieldHeartRate],
		"age":        nil,
		"gender":     nil,
		"weight":     nil,
		"conditions": []string{},
		"hour":       features.DefaultHour,
	}
	for _, field := range []string{features.FieldAge, features.FieldWeight} {
		if v, ok := r.Numeric[field]; ok {
			in[field] = v
		}
	}
	if g := strings.TrimSpace(r.Categories[features.FieldGender]); g != "" {
		in["gender"] = g
	}
	if len(r.Conditions) > 0 {
		in["conditions"] = r.Conditions
	}
	if h, ok := r.Numeric[features.FieldHour]; ok {
		in["hour"] = int(h)
	}
	return in
}

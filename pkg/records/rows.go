package records

import (
	"fmt"

	"github.com/synaptica-ai/cardiorisk/pkg/features"
)

const (
	LabelFromSeverity = "aiDiagnosis.severity"
	LabelFromStatus   = "status"
	LabelAuto         = "auto"
)

// ValidLabelSource reports whether source names a supported label origin.
func ValidLabelSource(source string) bool {
	switch source {
	case LabelFromSeverity, LabelFromStatus, LabelAuto:
		return true
	}
	return false
}

// Label picks the training label of a document. Auto prefers the diagnosed
// severity and falls back to the reading status.
func Label(doc Document, source string) string {
	severity := ""
	if doc.AIDiagnosis != nil {
		severity = features.NormalizeToken(doc.AIDiagnosis.Severity)
	}
	status := features.NormalizeToken(doc.Status)
	switch source {
	case LabelFromSeverity:
		return severity
	case LabelFromStatus:
		return status
	default:
		if severity != "" {
			return severity
		}
		return status
	}
}

// BuildHistoryRows converts joined documents into feature records and their
// labels. Unlabelled documents and documents without a heart rate are
// skipped; the count of skipped documents is returned.
func BuildHistoryRows(docs []Document, source string) ([]features.Record, []string, int, error) {
	if !ValidLabelSource(source) {
		return nil, nil, 0, fmt.Errorf("unknown label source %q", source)
	}
	var out []features.Record
	var labels []string
	skipped := 0
	for _, doc := range docs {
		label := Label(doc, source)
		if label == "" || doc.HeartRate == nil {
			skipped++
			continue
		}
		out = append(out, HistoryRecord(doc))
		labels = append(labels, label)
	}
	return out, labels, skipped, nil
}

// HistoryRecord maps one document onto the telemetry record fields.
func HistoryRecord(doc Document) features.Record {
	r := features.Record{
		Numeric:    map[string]float64{},
		Categories: map[string]string{},
	}
	if doc.HeartRate != nil {
		r.Numeric[features.FieldHeartRate] = *doc.HeartRate
	}
	if doc.CreatedAt != nil {
		r.Timestamp = doc.CreatedAt.UTC()
		r.Numeric[features.FieldHour] = float64(r.Timestamp.Hour())
	}
	ApplyProfile(&r, doc.Profile)
	return r
}

// ApplyProfile copies profile attributes onto a record without overwriting
// values the record already carries.
func ApplyProfile(r *features.Record, p Profile) {
	if r.Numeric == nil {
		r.Numeric = map[string]float64{}
	}
	if r.Categories == nil {
		r.Categories = map[string]string{}
	}
	if _, ok := r.Numeric[features.FieldAge]; !ok && p.Age != nil {
		r.Numeric[features.FieldAge] = *p.Age
	}
	if _, ok := r.Numeric[features.FieldWeight]; !ok && p.Weight != nil {
		r.Numeric[features.FieldWeight] = *p.Weight
	}
	if r.Categories[features.FieldGender] == "" && p.Gender != "" {
		r.Categories[features.FieldGender] = p.Gender
	}
	if len(r.Conditions) == 0 && len(p.Conditions) > 0 {
		r.Conditions = append([]string(nil), p.Conditions...)
	}
}

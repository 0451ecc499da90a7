package features

import (
	"encoding/json"
	"fmt"
)

var (
	StaticLabelOrder  = []string{"0", "1", "2", "3", "4"}
	HistoryLabelOrder = []string{"low", "medium", "high", "critical", "normal", "warning"}
)

// LabelMap assigns contiguous class indices to the labels observed in one
// training run. Indices are only meaningful next to the artifact that
// recorded them.
type LabelMap struct {
	labels []string
}

// NewLabelMap keeps the canonical labels that were actually observed, in
// canonical order.
func NewLabelMap(canonical []string, observed []string) LabelMap {
	seen := map[string]struct{}{}
	for _, l := range observed {
		seen[l] = struct{}{}
	}
	var labels []string
	for _, l := range canonical {
		if _, ok := seen[l]; ok {
			labels = append(labels, l)
		}
	}
	return LabelMap{labels: labels}
}

func (m LabelMap) Index(label string) (int, bool) {
	for i, l := range m.labels {
		if l == label {
			return i, true
		}
	}
	return 0, false
}

func (m LabelMap) Label(index int) (string, bool) {
	if index < 0 || index >= len(m.labels) {
		return "", false
	}
	return m.labels[index], true
}

func (m LabelMap) Len() int {
	return len(m.labels)
}

func (m LabelMap) Labels() []string {
	return append([]string(nil), m.labels...)
}

func (m LabelMap) Map() map[string]int {
	out := make(map[string]int, len(m.labels))
	for i, l := range m.labels {
		out[l] = i
	}
	return out
}

func (m LabelMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

func (m *LabelMap) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	labels := make([]string, len(raw))
	for label, idx := range raw {
		if idx < 0 || idx >= len(raw) || labels[idx] != "" {
			return fmt.Errorf("%w: label map index %d for %q is not contiguous", ErrInvalidSchema, idx, label)
		}
		labels[idx] = label
	}
	m.labels = labels
	return nil
}

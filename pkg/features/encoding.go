package features

import "sort"

// Enumeration maps category strings to integer codes. The code of a value is
// its position in Values.
type Enumeration struct {
	Values   []string `json:"values"`
	Fallback string   `json:"fallback,omitempty"`
}

// NewEnumeration builds a lexicographically ordered enumeration from the
// distinct observed values.
func NewEnumeration(observed []string) Enumeration {
	seen := map[string]struct{}{}
	values := make([]string, 0, len(observed))
	for _, v := range observed {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return Enumeration{Values: values}
}

// OrdinalEnumeration keeps the declared order, for categories with a natural
// ranking such as bucket labels.
func OrdinalEnumeration(values ...string) Enumeration {
	return Enumeration{Values: append([]string(nil), values...)}
}

func (e Enumeration) Code(value string) (int, bool) {
	for i, v := range e.Values {
		if v == value {
			return i, true
		}
	}
	return 0, false
}

// Bucket assigns a value to the first right-closed range whose upper edge is
// not below it; values above every edge land in the open top bucket.
type Bucket struct {
	Edges  []float64 `json:"edges"`
	Labels []string  `json:"labels"`
}

func (b Bucket) Label(v float64) string {
	for i, edge := range b.Edges {
		if v <= edge {
			return b.Labels[i]
		}
	}
	return b.Labels[len(b.Labels)-1]
}

const (
	OpLess    = "lt"
	OpGreater = "gt"
	OpOutside = "outside"
)

// Rule is a threshold test on one numeric field. OpOutside matches values
// below Value or at/above Upper.
type Rule struct {
	Field string  `json:"field"`
	Op    string  `json:"op"`
	Value float64 `json:"value"`
	Upper float64 `json:"upper,omitempty"`
}

func (r Rule) Match(v float64) bool {
	switch r.Op {
	case OpLess:
		return v < r.Value
	case OpGreater:
		return v > r.Value
	case OpOutside:
		return v < r.Value || v >= r.Upper
	default:
		return false
	}
}

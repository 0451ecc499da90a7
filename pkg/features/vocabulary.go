package features

import "sort"

const DefaultConditionLimit = 20

// TopConditions ranks normalised condition names by frequency across the
// corpus and keeps at most limit of them. Equal counts keep the order in
// which the names were first seen.
func TopConditions(corpus [][]string, limit int) []string {
	if limit <= 0 {
		limit = DefaultConditionLimit
	}
	counts := map[string]int{}
	var order []string
	for _, conditions := range corpus {
		for _, c := range conditions {
			name := NormalizeToken(c)
			if name == "" {
				continue
			}
			if _, ok := counts[name]; !ok {
				order = append(order, name)
			}
			counts[name]++
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

func ConditionSlotName(condition string) string {
	return "cond_" + condition
}

package evaluate

import (
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices so every class is represented in
// both halves in roughly the requested proportion. Classes with at least two
// rows always contribute one row to each side.
func StratifiedSplit(labels []int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	for _, idx := range groupByClass(labels) {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		n := int(math.Round(float64(len(idx)) * testFraction))
		if n == 0 && len(idx) >= 2 {
			n = 1
		}
		if n >= len(idx) && len(idx) >= 2 {
			n = len(idx) - 1
		}
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// StratifiedKFold deals each class round-robin into k folds after a seeded
// shuffle and returns the held-out indices of every fold.
func StratifiedKFold(labels []int, k int, seed int64) [][]int {
	if k < 2 {
		k = 2
	}
	rng := rand.New(rand.NewSource(seed))
	folds := make([][]int, k)
	next := 0
	for _, idx := range groupByClass(labels) {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for _, i := range idx {
			folds[next%k] = append(folds[next%k], i)
			next++
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

// Complement returns the indices in [0, n) not present in held.
func Complement(n int, held []int) []int {
	skip := make(map[int]struct{}, len(held))
	for _, i := range held {
		skip[i] = struct{}{}
	}
	out := make([]int, 0, n-len(held))
	for i := 0; i < n; i++ {
		if _, ok := skip[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// Rows gathers the rows at idx.
func Rows(samples [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = samples[j]
	}
	return out
}

// Labels gathers the labels at idx.
func Labels(labels []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = labels[j]
	}
	return out
}

func groupByClass(labels []int) [][]int {
	byClass := map[int][]int{}
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	out := make([][]int, len(classes))
	for i, c := range classes {
		out[i] = byClass[c]
	}
	return out
}

package forest

import (
	"math/rand"
	"sort"
)

type builder struct {
	samples     [][]float64
	labels      []int
	weights     []float64
	classes     int
	opts        Options
	maxFeatures int
	rng         *rand.Rand
	nodes       []Node
	gain        []float64
}

func (b *builder) grow(idx []int, depth int) int {
	counts, total := b.tally(idx)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	impurity := gini(counts, total)
	if impurity == 0 ||
		len(idx) < b.opts.MinSamplesSplit ||
		len(idx) < 2*b.opts.MinSamplesLeaf ||
		(b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth) {
		b.nodes[id] = leafNode(counts, total)
		return id
	}

	feature, threshold, score, ok := b.bestSplit(idx, counts, total)
	if !ok || score >= total*impurity-1e-12 {
		b.nodes[id] = leafNode(counts, total)
		return id
	}
	b.gain[feature] += total*impurity - score

	var left, right []int
	for _, i := range idx {
		if b.samples[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

// bestSplit scans a random feature subset and returns the threshold with the
// lowest weighted child impurity that respects the minimum leaf size.
func (b *builder) bestSplit(idx []int, counts []float64, total float64) (int, float64, float64, bool) {
	dim := len(b.samples[0])
	candidates := b.rng.Perm(dim)[:b.maxFeatures]
	minLeaf := b.opts.MinSamplesLeaf

	bestFeature, bestThreshold := -1, 0.0
	bestScore := total * 2
	sorted := make([]int, len(idx))
	left := make([]float64, b.classes)
	right := make([]float64, b.classes)

	for _, f := range candidates {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.samples[sorted[a]][f] < b.samples[sorted[c]][f]
		})
		for c := range left {
			left[c] = 0
		}
		var leftW float64
		for p := 0; p < len(sorted)-1; p++ {
			i := sorted[p]
			left[b.labels[i]] += b.weights[i]
			leftW += b.weights[i]
			if p+1 < minLeaf || len(sorted)-(p+1) < minLeaf {
				continue
			}
			lo, hi := b.samples[i][f], b.samples[sorted[p+1]][f]
			if lo == hi {
				continue
			}
			rightW := total - leftW
			for c := range right {
				right[c] = counts[c] - left[c]
			}
			score := leftW*gini(left, leftW) + rightW*gini(right, rightW)
			if score < bestScore-1e-12 {
				bestScore = score
				bestFeature = f
				bestThreshold = (lo + hi) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestScore, bestFeature >= 0
}

func (b *builder) tally(idx []int) ([]float64, float64) {
	counts := make([]float64, b.classes)
	var total float64
	for _, i := range idx {
		counts[b.labels[i]] += b.weights[i]
		total += b.weights[i]
	}
	return counts, total
}

func leafNode(counts []float64, total float64) Node {
	proba := make([]float64, len(counts))
	if total > 0 {
		for c, v := range counts {
			proba[c] = v / total
		}
	}
	return Node{Leaf: true, Proba: proba}
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := c / total
		impurity -= p * p
	}
	return impurity
}

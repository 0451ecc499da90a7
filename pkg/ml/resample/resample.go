// Package resample rebalances class frequencies, either by synthesising
// minority samples or by weighting the loss.
package resample

import (
	"math/rand"
	"sort"
)

// SMOTE grows every class to the size of the largest one by interpolating
// between a random member and one of its k nearest same-class neighbours.
// Original rows keep their positions; synthetic rows are appended.
func SMOTE(samples [][]float64, labels []int, k int, seed int64) ([][]float64, []int) {
	if k <= 0 {
		k = 5
	}
	byClass := map[int][]int{}
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]int, 0, len(byClass))
	largest := 0
	for c, idx := range byClass {
		classes = append(classes, c)
		if len(idx) > largest {
			largest = len(idx)
		}
	}
	sort.Ints(classes)

	outX := append([][]float64(nil), samples...)
	outY := append([]int(nil), labels...)
	rng := rand.New(rand.NewSource(seed))

	for _, c := range classes {
		members := byClass[c]
		missing := largest - len(members)
		if missing == 0 {
			continue
		}
		neighbours := nearest(samples, members, k)
		for n := 0; n < missing; n++ {
			pick := rng.Intn(len(members))
			base := samples[members[pick]]
			synthetic := append([]float64(nil), base...)
			if nn := neighbours[pick]; len(nn) > 0 {
				other := samples[nn[rng.Intn(len(nn))]]
				gap := rng.Float64()
				for j := range synthetic {
					synthetic[j] += gap * (other[j] - base[j])
				}
			}
			outX = append(outX, synthetic)
			outY = append(outY, c)
		}
	}
	return outX, outY
}

// nearest returns, for each member, the indices of its k closest members.
func nearest(samples [][]float64, members []int, k int) [][]int {
	out := make([][]int, len(members))
	for a, i := range members {
		type candidate struct {
			idx  int
			dist float64
		}
		cands := make([]candidate, 0, len(members)-1)
		for _, j := range members {
			if j == i {
				continue
			}
			cands = append(cands, candidate{idx: j, dist: squaredDistance(samples[i], samples[j])})
		}
		sort.SliceStable(cands, func(x, y int) bool { return cands[x].dist < cands[y].dist })
		limit := k
		if limit > len(cands) {
			limit = len(cands)
		}
		for _, cand := range cands[:limit] {
			out[a] = append(out[a], cand.idx)
		}
	}
	return out
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// BalancedWeights returns n / (classes * count) for every observed class.
func BalancedWeights(labels []int) map[int]float64 {
	counts := map[int]int{}
	for _, y := range labels {
		counts[y]++
	}
	out := make(map[int]float64, len(counts))
	n := float64(len(labels))
	k := float64(len(counts))
	for c, count := range counts {
		out[c] = n / (k * float64(count))
	}
	return out
}

package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMOTEBalancesClasses(t *testing.T) {
	x := [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {10, 10}, {11, 11}}
	y := []int{0, 0, 0, 0, 1, 1}

	outX, outY := SMOTE(x, y, 5, 42)

	counts := map[int]int{}
	for _, c := range outY {
		counts[c]++
	}
	assert.Equal(t, map[int]int{0: 4, 1: 4}, counts)
	assert.Equal(t, x, outX[:len(x)], "original rows keep their order")

	for i := len(x); i < len(outX); i++ {
		row := outX[i]
		if row[0] < 10 || row[0] > 11 || row[1] < 10 || row[1] > 11 {
			t.Fatalf("synthetic row %v outside the minority segment", row)
		}
	}
}

func TestSMOTEIsSeeded(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {5}, {6}}
	y := []int{0, 0, 0, 1, 1}
	a, _ := SMOTE(x, y, 2, 7)
	b, _ := SMOTE(x, y, 2, 7)
	assert.Equal(t, a, b)
}

func TestSMOTESingletonClassDuplicates(t *testing.T) {
	x := [][]float64{{0}, {1}, {9}}
	y := []int{0, 0, 1}
	outX, outY := SMOTE(x, y, 5, 1)
	assert.Equal(t, []int{0, 0, 1, 1}, outY)
	assert.Equal(t, []float64{9}, outX[3])
}

func TestBalancedWeights(t *testing.T) {
	w := BalancedWeights([]int{0, 0, 0, 1})
	assert.InDelta(t, 4.0/6.0, w[0], 1e-12)
	assert.InDelta(t, 2.0, w[1], 1e-12)
}

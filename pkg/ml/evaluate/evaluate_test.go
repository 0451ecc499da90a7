package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratifiedSplitKeepsProportions(t *testing.T) {
	labels := make([]int, 0, 50)
	for i := 0; i < 40; i++ {
		labels = append(labels, 0)
	}
	for i := 0; i < 10; i++ {
		labels = append(labels, 1)
	}

	train, test := StratifiedSplit(labels, 0.2, 42)
	require.Len(t, test, 10)
	require.Len(t, train, 40)

	var testPositives int
	for _, i := range test {
		testPositives += labels[i]
	}
	assert.Equal(t, 2, testPositives)

	again, _ := StratifiedSplit(labels, 0.2, 42)
	assert.Equal(t, train, again)
}

func TestStratifiedSplitSmallClass(t *testing.T) {
	train, test := StratifiedSplit([]int{0, 0, 0, 0, 0, 1, 1}, 0.2, 1)
	var trainHas, testHas bool
	for _, i := range train {
		if i >= 5 {
			trainHas = true
		}
	}
	for _, i := range test {
		if i >= 5 {
			testHas = true
		}
	}
	assert.True(t, trainHas && testHas)
}

func TestStratifiedKFoldCoversEveryRowOnce(t *testing.T) {
	labels := []int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 2, 2, 2, 2, 2}
	folds := StratifiedKFold(labels, 5, 42)
	require.Len(t, folds, 5)

	seen := map[int]int{}
	for _, f := range folds {
		assert.Len(t, f, 3)
		for _, i := range f {
			seen[i]++
		}
	}
	assert.Len(t, seen, len(labels))

	rest := Complement(len(labels), folds[0])
	assert.Len(t, rest, 12)
}

func TestClassifyReport(t *testing.T) {
	truth := []int{0, 0, 1, 1, 2}
	pred := []int{0, 1, 1, 1, 2}

	r := Classify(truth, pred, 3)
	assert.InDelta(t, 0.8, r.Accuracy, 1e-12)
	assert.Equal(t, [][]int{{1, 1, 0}, {0, 2, 0}, {0, 0, 1}}, r.Confusion)

	// class 0: p=1 r=.5 f1=.667; class 1: p=.667 r=1 f1=.8; class 2: 1
	assert.InDelta(t, (2.0/3.0+0.8+1.0)/3, r.MacroF1, 1e-9)
	assert.Equal(t, 2, r.Classes[1].Support)
}

func TestMacroF1IgnoresAbsentClasses(t *testing.T) {
	assert.InDelta(t, 1.0, MacroF1([]int{1, 1}, []int{1, 1}, 4), 1e-12)
}

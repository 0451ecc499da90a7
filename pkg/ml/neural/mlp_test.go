package neural

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/cardiorisk/pkg/ml"
)

func xorish() ([][]float64, []int) {
	var x [][]float64
	var y []int
	for i := 0; i < 4; i++ {
		for _, p := range [][]float64{{-1, -1}, {1, 1}, {-1, 1}, {1, -1}} {
			jitter := float64(i) * 0.05
			x = append(x, []float64{p[0] + jitter, p[1] - jitter})
			if p[0]*p[1] > 0 {
				y = append(y, 0)
			} else {
				y = append(y, 1)
			}
		}
	}
	return x, y
}

func TestMLPLearnsNonLinearBoundary(t *testing.T) {
	x, y := xorish()
	m := New(ml.Spec{Classes: 2, Seed: 42}, Options{Hidden: []int{8, 8}, MaxIter: 2000, LearningRate: 0.02, BatchSize: 8, Patience: 200})
	require.NoError(t, m.Fit(x, y))

	pred, err := m.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, y, pred)
}

func TestMLPDefaultsAndProbabilities(t *testing.T) {
	m := New(ml.Spec{Classes: 3, Seed: 1}, Options{MaxIter: 5})
	assert.Equal(t, []int{64, 32, 16}, m.Options.Hidden)

	x := [][]float64{{0, 1}, {1, 0}, {1, 1}}
	require.NoError(t, m.Fit(x, []int{0, 1, 2}))
	require.Len(t, m.Layers, 4)

	proba, err := m.PredictProba(x)
	require.NoError(t, err)
	for _, p := range proba {
		var sum float64
		for _, v := range p {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestMLPSameSeedSameModel(t *testing.T) {
	x, y := xorish()
	a := New(ml.Spec{Classes: 2, Seed: 9}, Options{Hidden: []int{4}, MaxIter: 20})
	b := New(ml.Spec{Classes: 2, Seed: 9}, Options{Hidden: []int{4}, MaxIter: 20})
	require.NoError(t, a.Fit(x, y))
	require.NoError(t, b.Fit(x, y))
	assert.Equal(t, a.Layers, b.Layers)
}

func TestMLPShapeMismatch(t *testing.T) {
	m := New(ml.Spec{Classes: 2}, Options{Hidden: []int{2}, MaxIter: 1})
	require.NoError(t, m.Fit([][]float64{{0, 1}, {1, 0}}, []int{0, 1}))
	_, err := m.Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ml.ErrShapeMismatch)
}

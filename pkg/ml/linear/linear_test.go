package linear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/cardiorisk/pkg/ml"
)

// clusters returns three well separated point clouds.
func clusters() ([][]float64, []int) {
	centres := [][]float64{{-3, 0}, {3, 0}, {0, 4}}
	offsets := [][]float64{{0.2, 0.1}, {-0.1, 0.3}, {0.3, -0.2}, {-0.2, -0.1}, {0, 0}}
	var x [][]float64
	var y []int
	for c, centre := range centres {
		for _, o := range offsets {
			x = append(x, []float64{centre[0] + o[0], centre[1] + o[1]})
			y = append(y, c)
		}
	}
	return x, y
}

func TestLogisticSeparatesClusters(t *testing.T) {
	x, y := clusters()
	m := NewLogistic(ml.Spec{Classes: 3}, Options{Epochs: 400, LearningRate: 0.5})
	require.NoError(t, m.Fit(x, y))

	pred, err := m.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, y, pred)
	assert.Equal(t, 1.0, m.Metrics.Accuracy)
	assert.Less(t, m.Metrics.Loss, 0.5)
}

func TestSVMSeparatesClusters(t *testing.T) {
	x, y := clusters()
	m := NewSVM(ml.Spec{Classes: 3}, SVMOptions{})
	require.NoError(t, m.Fit(x, y))

	pred, err := m.Predict([][]float64{{-3, 0}, {3, 0}, {0, 4}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, pred)

	proba, err := m.PredictProba([][]float64{{3, 0}})
	require.NoError(t, err)
	assert.Len(t, proba[0], 3)
	assert.Equal(t, 1, ml.Argmax(proba[0]))
}

func TestLinearRejectsBadInput(t *testing.T) {
	m := NewLogistic(ml.Spec{}, Options{})
	assert.ErrorIs(t, m.Fit(nil, nil), ml.ErrEmptyDataset)

	_, err := m.Predict([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ml.ErrNotFitted)

	s := NewSVM(ml.Spec{}, SVMOptions{})
	err = s.Fit([][]float64{{1, 2}, {1}}, []int{0, 1})
	assert.ErrorIs(t, err, ml.ErrShapeMismatch)
}

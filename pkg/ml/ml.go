// Package ml defines the classifier capability shared by training and serving.
package ml

import "errors"

var (
	ErrNotFitted     = errors.New("classifier not fitted")
	ErrEmptyDataset  = errors.New("empty training set")
	ErrShapeMismatch = errors.New("feature dimension mismatch")
)

// Classifier is a trainable multi-class model over dense numeric rows.
// Class labels are contiguous indices in [0, classes).
type Classifier interface {
	Fit(samples [][]float64, labels []int) error
	Predict(samples [][]float64) ([]int, error)
	PredictProba(samples [][]float64) ([][]float64, error)
}

// Importancer is implemented by classifiers that expose per-feature importances.
type Importancer interface {
	FeatureImportances() []float64
}

// Spec carries the run-level parameters every candidate constructor receives.
type Spec struct {
	Classes      int
	Features     int
	ClassWeights map[int]float64
	Seed         int64
}

// Argmax returns the index of the largest value, lowest index on ties.
func Argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

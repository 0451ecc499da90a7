package linear

import (
	"fmt"
	"math"

	"github.com/synaptica-ai/cardiorisk/pkg/ml"
)

type Options struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	L2           float64 `json:"l2"`
}

type Metrics struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

// Weights holds one coefficient row and bias per class.
type Weights struct {
	Bias         []float64   `json:"bias"`
	Coefficients [][]float64 `json:"coefficients"`
}

// Logistic is a multinomial logistic regression trained by batch gradient
// descent on weighted softmax cross-entropy.
type Logistic struct {
	Options      Options         `json:"options"`
	Classes      int             `json:"classes"`
	ClassWeights map[int]float64 `json:"class_weights,omitempty"`
	Weights      Weights         `json:"weights"`
	Metrics      Metrics         `json:"metrics"`
}

func NewLogistic(spec ml.Spec, opts Options) *Logistic {
	if opts.Epochs <= 0 {
		opts.Epochs = 200
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.1
	}
	return &Logistic{Options: opts, Classes: spec.Classes, ClassWeights: spec.ClassWeights}
}

func (m *Logistic) Fit(samples [][]float64, labels []int) error {
	classes, dim, err := prepare(samples, labels, m.Classes)
	if err != nil {
		return fmt.Errorf("logistic: %w", err)
	}
	m.Classes = classes
	weights := sampleWeights(labels, m.ClassWeights)
	coef := zeros(classes, dim)
	bias := make([]float64, classes)

	n := float64(len(samples))
	for epoch := 0; epoch < m.Options.Epochs; epoch++ {
		grad := zeros(classes, dim)
		biasGrad := make([]float64, classes)
		for i, sample := range samples {
			proba := softmax(scores(coef, bias, sample))
			for c := 0; c < classes; c++ {
				target := 0.0
				if labels[i] == c {
					target = 1
				}
				diff := weights[i] * (proba[c] - target)
				for j := 0; j < dim; j++ {
					grad[c][j] += diff * sample[j]
				}
				biasGrad[c] += diff
			}
		}
		for c := 0; c < classes; c++ {
			for j := 0; j < dim; j++ {
				coef[c][j] -= m.Options.LearningRate * (grad[c][j]/n + m.Options.L2*coef[c][j])
			}
			bias[c] -= m.Options.LearningRate * biasGrad[c] / n
		}
	}

	m.Weights = Weights{Bias: bias, Coefficients: coef}
	m.Metrics = m.evaluate(samples, labels)
	return nil
}

func (m *Logistic) PredictProba(samples [][]float64) ([][]float64, error) {
	if len(m.Weights.Coefficients) == 0 {
		return nil, ml.ErrNotFitted
	}
	out := make([][]float64, len(samples))
	for i, sample := range samples {
		if len(sample) != len(m.Weights.Coefficients[0]) {
			return nil, fmt.Errorf("logistic: %w", ml.ErrShapeMismatch)
		}
		out[i] = softmax(scores(m.Weights.Coefficients, m.Weights.Bias, sample))
	}
	return out, nil
}

func (m *Logistic) Predict(samples [][]float64) ([]int, error) {
	return argmaxAll(m.PredictProba(samples))
}

func (m *Logistic) evaluate(samples [][]float64, labels []int) Metrics {
	var loss float64
	var correct int
	for i, sample := range samples {
		proba := softmax(scores(m.Weights.Coefficients, m.Weights.Bias, sample))
		loss -= math.Log(proba[labels[i]] + 1e-9)
		if ml.Argmax(proba) == labels[i] {
			correct++
		}
	}
	return Metrics{
		Loss:     loss / float64(len(samples)),
		Accuracy: float64(correct) / float64(len(samples)),
	}
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func scores(coef [][]float64, bias []float64, sample []float64) []float64 {
	out := make([]float64, len(coef))
	for c := range coef {
		out[c] = dot(coef[c], sample) + bias[c]
	}
	return out
}

func softmax(z []float64) []float64 {
	max := z[0]
	for _, v := range z[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func zeros(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	return out
}

func prepare(samples [][]float64, labels []int, classes int) (int, int, error) {
	if len(samples) == 0 {
		return 0, 0, ml.ErrEmptyDataset
	}
	if len(samples) != len(labels) {
		return 0, 0, fmt.Errorf("%d samples but %d labels", len(samples), len(labels))
	}
	dim := len(samples[0])
	for _, row := range samples {
		if len(row) != dim {
			return 0, 0, ml.ErrShapeMismatch
		}
	}
	for _, y := range labels {
		if y < 0 {
			return 0, 0, fmt.Errorf("negative label %d", y)
		}
		if y >= classes {
			classes = y + 1
		}
	}
	if classes < 2 {
		classes = 2
	}
	return classes, dim, nil
}

func sampleWeights(labels []int, classWeights map[int]float64) []float64 {
	out := make([]float64, len(labels))
	for i, y := range labels {
		out[i] = 1
		if w, ok := classWeights[y]; ok {
			out[i] = w
		}
	}
	return out
}

func argmaxAll(proba [][]float64, err error) ([]int, error) {
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = ml.Argmax(p)
	}
	return out, nil
}

package linear

import (
	"fmt"

	"github.com/synaptica-ai/cardiorisk/pkg/ml"
)

type SVMOptions struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	Lambda       float64 `json:"lambda"`
}

// SVM is a one-vs-rest linear margin classifier minimising the weighted hinge
// loss with an L2 penalty. Probabilities are a softmax over the margins.
type SVM struct {
	Options      SVMOptions      `json:"options"`
	Classes      int             `json:"classes"`
	ClassWeights map[int]float64 `json:"class_weights,omitempty"`
	Weights      Weights         `json:"weights"`
}

func NewSVM(spec ml.Spec, opts SVMOptions) *SVM {
	if opts.Epochs <= 0 {
		opts.Epochs = 300
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.05
	}
	if opts.Lambda <= 0 {
		opts.Lambda = 0.01
	}
	return &SVM{Options: opts, Classes: spec.Classes, ClassWeights: spec.ClassWeights}
}

func (m *SVM) Fit(samples [][]float64, labels []int) error {
	classes, dim, err := prepare(samples, labels, m.Classes)
	if err != nil {
		return fmt.Errorf("svm: %w", err)
	}
	m.Classes = classes
	weights := sampleWeights(labels, m.ClassWeights)
	coef := zeros(classes, dim)
	bias := make([]float64, classes)
	n := float64(len(samples))

	for c := 0; c < classes; c++ {
		w := coef[c]
		for epoch := 0; epoch < m.Options.Epochs; epoch++ {
			rate := m.Options.LearningRate / (1 + 0.01*float64(epoch))
			grad := make([]float64, dim)
			var biasGrad float64
			for i, sample := range samples {
				target := -1.0
				if labels[i] == c {
					target = 1
				}
				if target*(dot(w, sample)+bias[c]) < 1 {
					for j := range grad {
						grad[j] -= weights[i] * target * sample[j]
					}
					biasGrad -= weights[i] * target
				}
			}
			for j := range w {
				w[j] -= rate * (m.Options.Lambda*w[j] + grad[j]/n)
			}
			bias[c] -= rate * biasGrad / n
		}
	}
	m.Weights = Weights{Bias: bias, Coefficients: coef}
	return nil
}

func (m *SVM) Decision(sample []float64) ([]float64, error) {
	if len(m.Weights.Coefficients) == 0 {
		return nil, ml.ErrNotFitted
	}
	if len(sample) != len(m.Weights.Coefficients[0]) {
		return nil, fmt.Errorf("svm: %w", ml.ErrShapeMismatch)
	}
	return scores(m.Weights.Coefficients, m.Weights.Bias, sample), nil
}

func (m *SVM) PredictProba(samples [][]float64) ([][]float64, error) {
	out := make([][]float64, len(samples))
	for i, sample := range samples {
		margins, err := m.Decision(sample)
		if err != nil {
			return nil, err
		}
		out[i] = softmax(margins)
	}
	return out, nil
}

func (m *SVM) Predict(samples [][]float64) ([]int, error) {
	return argmaxAll(m.PredictProba(samples))
}

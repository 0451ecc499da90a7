// Package neural implements a feed-forward ReLU network with a softmax output
// trained by mini-batch Adam.
package neural

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/synaptica-ai/cardiorisk/pkg/ml"
)

type Options struct {
	Hidden       []int   `json:"hidden"`
	MaxIter      int     `json:"max_iter"`
	LearningRate float64 `json:"learning_rate"`
	Alpha        float64 `json:"alpha"`
	BatchSize    int     `json:"batch_size"`
	Tolerance    float64 `json:"tolerance"`
	Patience     int     `json:"patience"`
	Seed         int64   `json:"seed"`
}

type Layer struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

type MLP struct {
	Options      Options         `json:"options"`
	Classes      int             `json:"classes"`
	ClassWeights map[int]float64 `json:"class_weights,omitempty"`
	Layers       []Layer         `json:"layers"`
	Loss         float64         `json:"loss"`
	Iterations   int             `json:"iterations"`
}

func New(spec ml.Spec, opts Options) *MLP {
	if len(opts.Hidden) == 0 {
		opts.Hidden = []int{64, 32, 16}
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = 1000
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.001
	}
	if opts.Alpha < 0 {
		opts.Alpha = 0
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-4
	}
	if opts.Patience <= 0 {
		opts.Patience = 10
	}
	if opts.Seed == 0 {
		opts.Seed = spec.Seed
	}
	return &MLP{Options: opts, Classes: spec.Classes, ClassWeights: spec.ClassWeights}
}

func (m *MLP) Fit(samples [][]float64, labels []int) error {
	if len(samples) == 0 {
		return ml.ErrEmptyDataset
	}
	if len(samples) != len(labels) {
		return fmt.Errorf("mlp: %d samples but %d labels", len(samples), len(labels))
	}
	dim := len(samples[0])
	for _, row := range samples {
		if len(row) != dim {
			return fmt.Errorf("mlp: %w", ml.ErrShapeMismatch)
		}
	}
	classes := m.Classes
	for _, y := range labels {
		if y < 0 {
			return fmt.Errorf("mlp: negative label %d", y)
		}
		if y >= classes {
			classes = y + 1
		}
	}
	if classes < 2 {
		classes = 2
	}
	m.Classes = classes

	rng := rand.New(rand.NewSource(m.Options.Seed))
	sizes := append(append([]int{dim}, m.Options.Hidden...), classes)
	m.Layers = make([]Layer, len(sizes)-1)
	for l := range m.Layers {
		m.Layers[l] = initLayer(sizes[l], sizes[l+1], rng)
	}
	opt := newAdam(m.Layers, m.Options.LearningRate)

	weights := make([]float64, len(labels))
	for i, y := range labels {
		weights[i] = 1
		if w, ok := m.ClassWeights[y]; ok {
			weights[i] = w
		}
	}

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	best := math.Inf(1)
	stale := 0
	for iter := 0; iter < m.Options.MaxIter; iter++ {
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		var epochLoss float64
		for start := 0; start < len(order); start += m.Options.BatchSize {
			end := start + m.Options.BatchSize
			if end > len(order) {
				end = len(order)
			}
			grads := zeroGrads(m.Layers)
			for _, i := range order[start:end] {
				epochLoss += m.backprop(samples[i], labels[i], weights[i], grads)
			}
			batch := float64(end - start)
			for l, layer := range m.Layers {
				for o := range layer.Weights {
					for in := range layer.Weights[o] {
						grads[l].Weights[o][in] = grads[l].Weights[o][in]/batch + m.Options.Alpha*layer.Weights[o][in]/batch
					}
					grads[l].Bias[o] /= batch
				}
			}
			opt.step(m.Layers, grads)
		}
		epochLoss /= float64(len(order))
		m.Loss = epochLoss
		m.Iterations = iter + 1
		if epochLoss > best-m.Options.Tolerance {
			stale++
			if stale >= m.Options.Patience {
				break
			}
		} else {
			stale = 0
		}
		if epochLoss < best {
			best = epochLoss
		}
	}
	return nil
}

func (m *MLP) PredictProba(samples [][]float64) ([][]float64, error) {
	if len(m.Layers) == 0 {
		return nil, ml.ErrNotFitted
	}
	in := len(m.Layers[0].Weights[0])
	out := make([][]float64, len(samples))
	for i, row := range samples {
		if len(row) != in {
			return nil, fmt.Errorf("mlp: %w: got %d, want %d", ml.ErrShapeMismatch, len(row), in)
		}
		acts := m.forward(row)
		out[i] = acts[len(acts)-1]
	}
	return out, nil
}

func (m *MLP) Predict(samples [][]float64) ([]int, error) {
	proba, err := m.PredictProba(samples)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = ml.Argmax(p)
	}
	return out, nil
}

// forward returns the activations of every layer, input first.
func (m *MLP) forward(x []float64) [][]float64 {
	acts := make([][]float64, 0, len(m.Layers)+1)
	acts = append(acts, x)
	current := x
	for l, layer := range m.Layers {
		next := make([]float64, len(layer.Bias))
		for o := range next {
			sum := layer.Bias[o]
			for in, w := range layer.Weights[o] {
				sum += w * current[in]
			}
			next[o] = sum
		}
		if l == len(m.Layers)-1 {
			next = softmax(next)
		} else {
			for o := range next {
				if next[o] < 0 {
					next[o] = 0
				}
			}
		}
		acts = append(acts, next)
		current = next
	}
	return acts
}

// backprop accumulates the weighted cross-entropy gradient of one sample into
// grads and returns its loss.
func (m *MLP) backprop(x []float64, y int, weight float64, grads []Layer) float64 {
	acts := m.forward(x)
	output := acts[len(acts)-1]
	delta := make([]float64, len(output))
	for c, p := range output {
		target := 0.0
		if c == y {
			target = 1
		}
		delta[c] = weight * (p - target)
	}
	loss := -weight * math.Log(output[y]+1e-12)

	for l := len(m.Layers) - 1; l >= 0; l-- {
		input := acts[l]
		for o, d := range delta {
			row := grads[l].Weights[o]
			for in, a := range input {
				row[in] += d * a
			}
			grads[l].Bias[o] += d
		}
		if l == 0 {
			break
		}
		prev := make([]float64, len(input))
		for in := range prev {
			if input[in] <= 0 {
				continue
			}
			var sum float64
			for o, d := range delta {
				sum += m.Layers[l].Weights[o][in] * d
			}
			prev[in] = sum
		}
		delta = prev
	}
	return loss
}

func initLayer(in, out int, rng *rand.Rand) Layer {
	limit := math.Sqrt(6.0 / float64(in+out))
	layer := Layer{Weights: make([][]float64, out), Bias: make([]float64, out)}
	for o := range layer.Weights {
		layer.Weights[o] = make([]float64, in)
		for i := range layer.Weights[o] {
			layer.Weights[o][i] = (rng.Float64()*2 - 1) * limit
		}
	}
	return layer
}

func zeroGrads(layers []Layer) []Layer {
	out := make([]Layer, len(layers))
	for l, layer := range layers {
		out[l] = Layer{Weights: make([][]float64, len(layer.Weights)), Bias: make([]float64, len(layer.Bias))}
		for o := range layer.Weights {
			out[l].Weights[o] = make([]float64, len(layer.Weights[o]))
		}
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

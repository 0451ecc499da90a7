// Package forest implements a bagged ensemble of CART classification trees
// split on weighted Gini impurity.
package forest

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/synaptica-ai/cardiorisk/pkg/ml"
)

type Options struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	MaxFeatures     int   `json:"max_features"`
	Seed            int64 `json:"seed"`
}

type Node struct {
	Leaf      bool      `json:"leaf,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Proba     []float64 `json:"proba,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

type Forest struct {
	Options      Options         `json:"options"`
	Classes      int             `json:"classes"`
	Features     int             `json:"features"`
	ClassWeights map[int]float64 `json:"class_weights,omitempty"`
	Trees        []Tree          `json:"trees"`
	Importances  []float64       `json:"importances"`
}

func New(spec ml.Spec, opts Options) *Forest {
	if opts.Trees <= 0 {
		opts.Trees = 100
	}
	if opts.MinSamplesSplit < 2 {
		opts.MinSamplesSplit = 2
	}
	if opts.MinSamplesLeaf < 1 {
		opts.MinSamplesLeaf = 1
	}
	if opts.Seed == 0 {
		opts.Seed = spec.Seed
	}
	return &Forest{
		Options:      opts,
		Classes:      spec.Classes,
		Features:     spec.Features,
		ClassWeights: spec.ClassWeights,
	}
}

func (f *Forest) Fit(samples [][]float64, labels []int) error {
	if len(samples) == 0 {
		return ml.ErrEmptyDataset
	}
	if len(samples) != len(labels) {
		return fmt.Errorf("forest: %d samples but %d labels", len(samples), len(labels))
	}
	dim := len(samples[0])
	for _, row := range samples {
		if len(row) != dim {
			return fmt.Errorf("forest: %w", ml.ErrShapeMismatch)
		}
	}
	classes := f.Classes
	for _, y := range labels {
		if y < 0 {
			return fmt.Errorf("forest: negative label %d", y)
		}
		if y >= classes {
			classes = y + 1
		}
	}
	f.Classes = classes
	f.Features = dim

	weights := make([]float64, len(labels))
	for i, y := range labels {
		weights[i] = 1
		if w, ok := f.ClassWeights[y]; ok {
			weights[i] = w
		}
	}

	maxFeatures := f.Options.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > dim {
		maxFeatures = int(math.Sqrt(float64(dim)))
	}
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	rng := rand.New(rand.NewSource(f.Options.Seed))
	importances := make([]float64, dim)
	f.Trees = make([]Tree, 0, f.Options.Trees)
	for t := 0; t < f.Options.Trees; t++ {
		bag := make([]int, len(samples))
		for i := range bag {
			bag[i] = rng.Intn(len(samples))
		}
		b := &builder{
			samples:     samples,
			labels:      labels,
			weights:     weights,
			classes:     classes,
			opts:        f.Options,
			maxFeatures: maxFeatures,
			rng:         rng,
			gain:        make([]float64, dim),
		}
		b.grow(bag, 0)
		f.Trees = append(f.Trees, Tree{Nodes: b.nodes})

		var total float64
		for _, g := range b.gain {
			total += g
		}
		if total > 0 {
			for j, g := range b.gain {
				importances[j] += g / total
			}
		}
	}
	var sum float64
	for _, v := range importances {
		sum += v
	}
	if sum > 0 {
		for j := range importances {
			importances[j] /= sum
		}
	}
	f.Importances = importances
	return nil
}

func (f *Forest) PredictProba(samples [][]float64) ([][]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ml.ErrNotFitted
	}
	out := make([][]float64, len(samples))
	for i, row := range samples {
		if len(row) != f.Features {
			return nil, fmt.Errorf("forest: %w: got %d, want %d", ml.ErrShapeMismatch, len(row), f.Features)
		}
		proba := make([]float64, f.Classes)
		for _, tree := range f.Trees {
			leaf := tree.leaf(row)
			for c, p := range leaf.Proba {
				proba[c] += p
			}
		}
		for c := range proba {
			proba[c] /= float64(len(f.Trees))
		}
		out[i] = proba
	}
	return out, nil
}

func (f *Forest) Predict(samples [][]float64) ([]int, error) {
	proba, err := f.PredictProba(samples)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = ml.Argmax(p)
	}
	return out, nil
}

func (f *Forest) FeatureImportances() []float64 {
	return append([]float64(nil), f.Importances...)
}

func (t Tree) leaf(row []float64) Node {
	node := t.Nodes[0]
	for !node.Leaf {
		if row[node.Feature] <= node.Threshold {
			node = t.Nodes[node.Left]
		} else {
			node = t.Nodes[node.Right]
		}
	}
	return node
}

package training

import (
	"fmt"
	"strings"

	"github.com/synaptica-ai/cardiorisk/pkg/ml"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/forest"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/linear"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/neural"
)

const (
	CandidateForest   = "random_forest"
	CandidateSVM      = "svm"
	CandidateNeural   = "neural_network"
	CandidateLogistic = "logistic"
)

// Candidate is one named slot of the selection registry.
type Candidate struct {
	Name string
	New  func(spec ml.Spec) ml.Classifier
}

// StaticCandidate returns the clinical-dataset configuration of a candidate.
func StaticCandidate(name string) (Candidate, error) {
	switch name {
	case CandidateForest:
		return Candidate{Name: name, New: func(spec ml.Spec) ml.Classifier {
			return forest.New(spec, forest.Options{Trees: 200, MaxDepth: 10, MinSamplesSplit: 5, MinSamplesLeaf: 2})
		}}, nil
	case CandidateSVM:
		return Candidate{Name: name, New: func(spec ml.Spec) ml.Classifier {
			return linear.NewSVM(spec, linear.SVMOptions{Epochs: 300, LearningRate: 0.05, Lambda: 0.01})
		}}, nil
	case CandidateNeural:
		return Candidate{Name: name, New: func(spec ml.Spec) ml.Classifier {
			return neural.New(spec, neural.Options{Hidden: []int{64, 32, 16}, MaxIter: 1000, LearningRate: 0.001, Alpha: 0.001})
		}}, nil
	case CandidateLogistic:
		return Candidate{Name: name, New: func(spec ml.Spec) ml.Classifier {
			return linear.NewLogistic(spec, linear.Options{Epochs: 300, LearningRate: 0.1, L2: 0.001})
		}}, nil
	default:
		return Candidate{}, fmt.Errorf("unknown candidate %q", name)
	}
}

// HistoryCandidate returns the telemetry configuration of a candidate. The
// forest is larger and shallower-leafed than its clinical counterpart.
func HistoryCandidate(name string) (Candidate, error) {
	if name == CandidateForest {
		return Candidate{Name: name, New: func(spec ml.Spec) ml.Classifier {
			return forest.New(spec, forest.Options{Trees: 300, MinSamplesSplit: 4, MinSamplesLeaf: 2})
		}}, nil
	}
	return StaticCandidate(name)
}

// Registry resolves names in order, rejecting duplicates.
func Registry(names []string, lookup func(string) (Candidate, error)) ([]Candidate, error) {
	seen := map[string]struct{}{}
	var out []Candidate
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("candidate %q listed twice", name)
		}
		seen[name] = struct{}{}
		c, err := lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no candidates configured")
	}
	return out, nil
}

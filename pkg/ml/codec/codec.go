// Package codec persists classifiers as kind-tagged JSON envelopes.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/synaptica-ai/cardiorisk/pkg/ml"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/forest"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/linear"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/neural"
)

const (
	KindForest   = "random_forest"
	KindSVM      = "linear_svm"
	KindLogistic = "logistic_regression"
	KindMLP      = "mlp"
)

type Envelope struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

func Kind(c ml.Classifier) (string, error) {
	switch c.(type) {
	case *forest.Forest:
		return KindForest, nil
	case *linear.SVM:
		return KindSVM, nil
	case *linear.Logistic:
		return KindLogistic, nil
	case *neural.MLP:
		return KindMLP, nil
	default:
		return "", fmt.Errorf("unsupported classifier type %T", c)
	}
}

func Encode(c ml.Classifier) (Envelope, error) {
	kind, err := Kind(c)
	if err != nil {
		return Envelope{}, err
	}
	params, err := json.Marshal(c)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return Envelope{Kind: kind, Params: params}, nil
}

func Decode(env Envelope) (ml.Classifier, error) {
	var c ml.Classifier
	switch env.Kind {
	case KindForest:
		c = &forest.Forest{}
	case KindSVM:
		c = &linear.SVM{}
	case KindLogistic:
		c = &linear.Logistic{}
	case KindMLP:
		c = &neural.MLP{}
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Params, c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	return c, nil
}

package artifact

import (
	"errors"
	"fmt"
	"time"

	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/ml"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/evaluate"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/preprocess"
)

var ErrMissingArtifact = errors.New("artifact not found")

// MissingArtifactError names the file a load could not find.
type MissingArtifactError struct {
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("artifact not found: %s", e.Path)
}

func (e *MissingArtifactError) Unwrap() error {
	return ErrMissingArtifact
}

type CandidateSummary struct {
	Name         string          `json:"name"`
	Kind         string          `json:"kind"`
	CVMacroF1    float64         `json:"cv_macro_f1"`
	CVFolds      []float64       `json:"cv_folds"`
	TestAccuracy float64         `json:"test_accuracy"`
	Report       evaluate.Report `json:"report"`
	Winner       bool            `json:"winner"`
}

type Importance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

type FittedCandidate struct {
	Name  string
	Model ml.Classifier
}

// Artifact is everything a later process needs to reproduce inference for
// one training run. It is never modified after Save.
type Artifact struct {
	RunID       string
	Pipeline    string
	CreatedAt   time.Time
	Winner      string
	Schema      *features.Schema
	Scaler      *preprocess.StandardScaler
	Model       ml.Classifier
	Candidates  []FittedCandidate
	Summaries   []CandidateSummary
	Importances []Importance
	TrainRows   int
	TestRows    int
}

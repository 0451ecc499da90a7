package training

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/ml"
)

// telemetry builds a separable history corpus: low heart rates labelled
// "low", high ones labelled "high".
func telemetry(t *testing.T, perClass int) *features.Dataset {
	t.Helper()
	var records []features.Record
	var labels []string
	for i := 0; i < perClass; i++ {
		records = append(records, features.Record{Numeric: map[string]float64{
			features.FieldHeartRate: 50 + float64(i%10),
			features.FieldAge:       40 + float64(i%7),
			features.FieldWeight:    70,
			features.FieldHour:      10,
		}})
		labels = append(labels, "low")
		records = append(records, features.Record{Numeric: map[string]float64{
			features.FieldHeartRate: 110 + float64(i%10),
			features.FieldAge:       40 + float64(i%5),
			features.FieldWeight:    80,
			features.FieldHour:      23,
		}})
		labels = append(labels, "high")
	}
	ds, err := features.FitHistory(records, labels, features.HistoryOptions{})
	require.NoError(t, err)
	return ds
}

// constant always answers class zero.
type constant struct{ classes int }

func (c *constant) Fit(samples [][]float64, labels []int) error { return nil }

func (c *constant) Predict(samples [][]float64) ([]int, error) {
	return make([]int, len(samples)), nil
}

func (c *constant) PredictProba(samples [][]float64) ([][]float64, error) {
	out := make([][]float64, len(samples))
	for i := range out {
		out[i] = make([]float64, c.classes)
		out[i][0] = 1
	}
	return out, nil
}

// threshold predicts "high" when the scaled heart rate is positive.
type threshold struct {
	classes     int
	importances []float64
}

func (c *threshold) Fit(samples [][]float64, labels []int) error {
	if len(samples) > 0 {
		c.importances = make([]float64, len(samples[0]))
		c.importances[0] = 0.7
		if len(c.importances) > 1 {
			c.importances[1] = 0.3
		}
	}
	return nil
}

func (c *threshold) Predict(samples [][]float64) ([]int, error) {
	out := make([]int, len(samples))
	for i, row := range samples {
		if row[0] > 0 {
			out[i] = 1
		}
	}
	return out, nil
}

func (c *threshold) PredictProba(samples [][]float64) ([][]float64, error) {
	pred, _ := c.Predict(samples)
	out := make([][]float64, len(samples))
	for i, y := range pred {
		out[i] = make([]float64, c.classes)
		out[i][y] = 1
	}
	return out, nil
}

func (c *threshold) FeatureImportances() []float64 { return c.importances }

type failing struct{ err error }

func (c *failing) Fit(samples [][]float64, labels []int) error { return c.err }
func (c *failing) Predict(samples [][]float64) ([]int, error) {
	return nil, ml.ErrNotFitted
}
func (c *failing) PredictProba(samples [][]float64) ([][]float64, error) {
	return nil, ml.ErrNotFitted
}

func fake(name string, build func(ml.Spec) ml.Classifier) Candidate {
	return Candidate{Name: name, New: build}
}

func thresholdCandidate(name string) Candidate {
	return fake(name, func(s ml.Spec) ml.Classifier { return &threshold{classes: s.Classes} })
}

func TestTrainPicksMostAccurateCandidate(t *testing.T) {
	ds := telemetry(t, 30)
	trainer := NewTrainer(Options{
		Candidates: []Candidate{
			fake("always_low", func(s ml.Spec) ml.Classifier { return &constant{classes: s.Classes} }),
			thresholdCandidate("threshold"),
		},
		Workers: 2,
	})

	res, err := trainer.Train(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, "threshold", res.Winner)
	assert.Equal(t, features.PipelineHistory, res.Pipeline)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "always_low", res.Candidates[0].Name)
	assert.Equal(t, "threshold", res.Candidates[1].Name)
	assert.False(t, res.Candidates[0].Winner)
	assert.True(t, res.Candidates[1].Winner)
	assert.InDelta(t, 1.0, res.Candidates[1].TestAccuracy, 1e-9)
	assert.InDelta(t, 0.5, res.Candidates[0].TestAccuracy, 1e-9)
	assert.Len(t, res.Candidates[1].CVFolds, 5)

	art := res.Artifact
	require.NotNil(t, art)
	assert.Equal(t, res.RunID, art.RunID)
	assert.Equal(t, res.RunID, art.Schema.RunID)
	assert.Empty(t, ds.Schema.RunID, "dataset schema is left untouched")
	assert.Equal(t, 48, art.TrainRows)
	assert.Equal(t, 12, art.TestRows)
	require.NotEmpty(t, art.Importances)
	assert.Equal(t, features.FieldHeartRate, art.Importances[0].Feature)
	assert.Equal(t, features.FieldAge, art.Importances[1].Feature)

	cand, ok := res.Candidate("always_low")
	require.True(t, ok)
	assert.Equal(t, "always_low", cand.Name)
	_, ok = res.Candidate("missing")
	assert.False(t, ok)
}

func TestTrainTieKeepsFirstCandidate(t *testing.T) {
	ds := telemetry(t, 30)
	trainer := NewTrainer(Options{
		Candidates: []Candidate{thresholdCandidate("first"), thresholdCandidate("second")},
		Workers:    2,
	})

	res, err := trainer.Train(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Winner)
	assert.True(t, res.Candidates[0].Winner)
	assert.False(t, res.Candidates[1].Winner)
}

func TestTrainAbortsOnFailedFit(t *testing.T) {
	ds := telemetry(t, 30)
	cause := errors.New("diverged")
	trainer := NewTrainer(Options{
		Candidates: []Candidate{
			thresholdCandidate("threshold"),
			fake("broken", func(ml.Spec) ml.Classifier { return &failing{err: cause} }),
		},
	})

	res, err := trainer.Train(context.Background(), ds)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, cause)

	var fitErr *FitError
	require.ErrorAs(t, err, &fitErr)
	assert.Equal(t, "broken", fitErr.Candidate)
}

func TestTrainRejectsInsufficientData(t *testing.T) {
	candidates := []Candidate{thresholdCandidate("threshold")}

	_, err := NewTrainer(Options{Candidates: candidates, MinRows: 100}).Train(context.Background(), telemetry(t, 30))
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = NewTrainer(Options{Candidates: candidates}).Train(context.Background(), &features.Dataset{})
	assert.ErrorIs(t, err, ErrInsufficientData)

	records := make([]features.Record, 10)
	labels := make([]string, 10)
	for i := range records {
		records[i] = features.Record{Numeric: map[string]float64{features.FieldHeartRate: 70}}
		labels[i] = "normal"
	}
	single, err := features.FitHistory(records, labels, features.HistoryOptions{})
	require.NoError(t, err)
	_, err = NewTrainer(Options{Candidates: candidates}).Train(context.Background(), single)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTrainer(Options{Candidates: []Candidate{thresholdCandidate("threshold")}}).Train(ctx, telemetry(t, 30))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainWithRealForest(t *testing.T) {
	ds := telemetry(t, 30)
	c, err := HistoryCandidate(CandidateForest)
	require.NoError(t, err)

	res, err := NewTrainer(Options{Candidates: []Candidate{c}, ClassWeights: true}).Train(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, CandidateForest, res.Winner)
	assert.Equal(t, "random_forest", res.Candidates[0].Kind)
	assert.Greater(t, res.Candidates[0].TestAccuracy, 0.9)
	assert.NotEmpty(t, res.Artifact.Importances)
}

func TestRegistry(t *testing.T) {
	cs, err := Registry([]string{"SVM", " random_forest", "neural_network"}, StaticCandidate)
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, []string{CandidateSVM, CandidateForest, CandidateNeural}, []string{cs[0].Name, cs[1].Name, cs[2].Name})

	_, err = Registry([]string{"svm", "svm"}, StaticCandidate)
	assert.Error(t, err)
	_, err = Registry([]string{"gradient_boosting"}, StaticCandidate)
	assert.Error(t, err)
	_, err = Registry(nil, StaticCandidate)
	assert.Error(t, err)
}

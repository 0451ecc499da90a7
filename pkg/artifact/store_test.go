package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/ml"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/linear"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/preprocess"
)

func buildArtifact(t *testing.T, runID string) *Artifact {
	t.Helper()
	records := []features.Record{
		{Numeric: map[string]float64{"age": 35, "trestbps": 110, "chol": 180, "thalach": 170}},
		{Numeric: map[string]float64{"age": 38, "trestbps": 115, "chol": 190, "thalach": 160}},
		{Numeric: map[string]float64{"age": 66, "trestbps": 165, "chol": 310, "thalach": 100, "exang": 1}},
		{Numeric: map[string]float64{"age": 72, "trestbps": 170, "chol": 290, "thalach": 95, "exang": 1}},
	}
	ds, err := features.FitStatic(records, []string{"0", "0", "4", "4"})
	require.NoError(t, err)
	ds.Schema.RunID = runID

	scaler := &preprocess.StandardScaler{}
	require.NoError(t, scaler.Fit(ds.Samples))
	scaled, err := scaler.Transform(ds.Samples)
	require.NoError(t, err)

	model := linear.NewLogistic(ml.Spec{Classes: ds.Schema.Labels.Len()}, linear.Options{Epochs: 50})
	require.NoError(t, model.Fit(scaled, ds.Labels))

	return &Artifact{
		RunID:      runID,
		Pipeline:   features.PipelineStatic,
		CreatedAt:  time.Now().UTC(),
		Winner:     "logistic",
		Schema:     ds.Schema,
		Scaler:     scaler,
		Model:      model,
		Candidates: []FittedCandidate{{Name: "logistic", Model: model}},
		Summaries:  []CandidateSummary{{Name: "logistic", TestAccuracy: 1, Winner: true}},
	}
}

func TestSaveThenLoadReproducesInference(t *testing.T) {
	store := NewStore(t.TempDir())
	a := buildArtifact(t, "run-1")

	dir, err := store.Save(a)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "model.json"))
	assert.FileExists(t, filepath.Join(dir, "schema.json"))

	loaded, err := store.Load(features.PipelineStatic)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, a.Schema.FeatureNames, loaded.Schema.FeatureNames)
	assert.Equal(t, a.Schema.Labels.Map(), loaded.Schema.Labels.Map())
	require.Len(t, loaded.Candidates, 1)

	r := features.Record{Numeric: map[string]float64{"age": 45, "trestbps": 130, "chol": 220, "thalach": 85}}
	predict := func(art *Artifact) []float64 {
		row, err := art.Schema.Vector(r)
		require.NoError(t, err)
		scaled, err := art.Scaler.TransformRow(row)
		require.NoError(t, err)
		proba, err := art.Model.PredictProba([][]float64{scaled})
		require.NoError(t, err)
		return proba[0]
	}
	assert.Equal(t, predict(a), predict(loaded))
}

func TestLoadMissingArtifact(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load(features.PipelineHistory)

	var missing *MissingArtifactError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, store.PointerPath(features.PipelineHistory), missing.Path)
	assert.ErrorIs(t, err, ErrMissingArtifact)
}

func TestLoadRunWithoutSchemaIsMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Save(buildArtifact(t, "run-1"))
	require.NoError(t, err)

	schemaPath := filepath.Join(store.RunDir(features.PipelineStatic, "run-1"), "schema.json")
	require.NoError(t, os.Remove(schemaPath))

	_, err = store.Load(features.PipelineStatic)
	var missing *MissingArtifactError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, schemaPath, missing.Path)
}

func TestSaveSupersedesPreviousRun(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Save(buildArtifact(t, "run-1"))
	require.NoError(t, err)
	_, err = store.Save(buildArtifact(t, "run-2"))
	require.NoError(t, err)

	latest, err := store.Latest(features.PipelineStatic)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest)

	runs, err := store.Runs(features.PipelineStatic)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2"}, runs)

	old, err := store.LoadRun(features.PipelineStatic, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", old.Schema.RunID)

	entries, err := os.ReadDir(filepath.Join(store.Dir(), features.PipelineStatic))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "no temporary files left behind")
	}
}

func TestSaveRejectsIncompleteArtifact(t *testing.T) {
	store := NewStore(t.TempDir())
	a := buildArtifact(t, "run-1")
	a.Model = nil
	_, err := store.Save(a)
	assert.Error(t, err)

	_, err = store.Latest(features.PipelineStatic)
	assert.ErrorIs(t, err, ErrMissingArtifact)
}

package training

import (
	"context"
	"fmt"
	"time"

	"github.com/synaptica-ai/cardiorisk/pkg/artifact"
	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/observability/metrics"
	"github.com/synaptica-ai/cardiorisk/pkg/records"
)

// HistorySource supplies joined telemetry documents for a time window.
type HistorySource interface {
	Fetch(ctx context.Context, w records.Window) ([]records.Document, error)
}

type RunnerConfig struct {
	StaticDataPath    string
	StaticCandidates  []string
	HistoryCandidates []string
	ConditionLimit    int
	MinRows           int
	Workers           int
	Seed              int64
}

// Runner wires the record sources, feature engineering, the trainer and the
// artifact store into the two end-to-end training pipelines.
type Runner struct {
	cfg     RunnerConfig
	store   *artifact.Store
	history HistorySource
}

func NewRunner(cfg RunnerConfig, store *artifact.Store, history HistorySource) *Runner {
	return &Runner{cfg: cfg, store: store, history: history}
}

// StaticRequest overrides the configured dataset path and candidates.
type StaticRequest struct {
	DataPath   string
	Candidates []string
}

// HistoryRequest selects the telemetry window and label origin.
type HistoryRequest struct {
	Window      records.Window
	LabelSource string
	Candidates  []string
}

func (r *Runner) RunStatic(ctx context.Context, req StaticRequest) (*Result, error) {
	path := req.DataPath
	if path == "" {
		path = r.cfg.StaticDataPath
	}
	names := req.Candidates
	if len(names) == 0 {
		names = r.cfg.StaticCandidates
	}
	candidates, err := Registry(names, StaticCandidate)
	if err != nil {
		return nil, err
	}

	set, err := records.LoadClinicalCSV(path)
	if err != nil {
		return nil, err
	}
	ds, err := features.FitStatic(set.Records, set.Labels)
	if err != nil {
		return nil, err
	}
	ds.Dropped += set.Dropped
	logger.Log.WithFields(map[string]interface{}{
		"path":    path,
		"rows":    len(ds.Samples),
		"dropped": ds.Dropped,
		"labels":  ds.Schema.Labels.Labels(),
	}).Info("loaded clinical dataset")

	return r.run(ctx, ds, Options{
		Candidates: candidates,
		Oversample: true,
		MinRows:    r.cfg.MinRows,
		Workers:    r.cfg.Workers,
		Seed:       r.cfg.Seed,
	})
}

func (r *Runner) RunHistory(ctx context.Context, req HistoryRequest) (*Result, error) {
	if r.history == nil {
		return nil, fmt.Errorf("no telemetry source configured")
	}
	names := req.Candidates
	if len(names) == 0 {
		names = r.cfg.HistoryCandidates
	}
	candidates, err := Registry(names, HistoryCandidate)
	if err != nil {
		return nil, err
	}
	source := req.LabelSource
	if source == "" {
		source = records.LabelFromSeverity
	}

	docs, err := r.history.Fetch(ctx, req.Window)
	if err != nil {
		return nil, err
	}
	recs, labels, skipped, err := records.BuildHistoryRows(docs, source)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no labelled readings in window", ErrInsufficientData)
	}
	ds, err := features.FitHistory(recs, labels, features.HistoryOptions{ConditionLimit: r.cfg.ConditionLimit})
	if err != nil {
		return nil, err
	}
	ds.Dropped += skipped
	logger.Log.WithFields(map[string]interface{}{
		"documents":    len(docs),
		"rows":         len(ds.Samples),
		"dropped":      ds.Dropped,
		"label_source": source,
		"conditions":   len(ds.Schema.Conditions),
	}).Info("built telemetry dataset")

	return r.run(ctx, ds, Options{
		Candidates:   candidates,
		ClassWeights: true,
		MinRows:      r.cfg.MinRows,
		Workers:      r.cfg.Workers,
		Seed:         r.cfg.Seed,
	})
}

// run trains and publishes. Nothing is written unless every candidate
// succeeded.
func (r *Runner) run(ctx context.Context, ds *features.Dataset, opts Options) (*Result, error) {
	pipeline := ""
	if ds.Schema != nil {
		pipeline = ds.Schema.Pipeline
	}
	start := time.Now()
	res, err := NewTrainer(opts).Train(ctx, ds)
	if err != nil {
		metrics.ObserveTraining(pipeline, StatusFailed, time.Since(start))
		return nil, err
	}
	path, err := r.store.Save(res.Artifact)
	if err != nil {
		metrics.ObserveTraining(pipeline, StatusFailed, time.Since(start))
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	res.ArtifactPath = path
	metrics.ObserveTraining(pipeline, StatusCompleted, time.Since(start))
	logger.Log.WithFields(map[string]interface{}{
		"pipeline": pipeline,
		"run_id":   res.RunID,
		"winner":   res.Winner,
		"path":     path,
	}).Info("published training run")
	return res, nil
}

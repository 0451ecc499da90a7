package training

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/synaptica-ai/cardiorisk/pkg/artifact"
	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/ml"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/codec"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/evaluate"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/preprocess"
	"github.com/synaptica-ai/cardiorisk/pkg/ml/resample"
	"github.com/synaptica-ai/cardiorisk/pkg/observability/metrics"
)

// Options configure one trainer. Oversample synthesises minority rows before
// the split; ClassWeights passes balanced per-class weights into every
// candidate instead.
type Options struct {
	Candidates   []Candidate
	Oversample   bool
	ClassWeights bool
	TestFraction float64
	Folds        int
	Seed         int64
	MinRows      int
	Workers      int
}

type CandidateResult struct {
	artifact.CandidateSummary
	Model ml.Classifier `json:"-"`
}

// Result is the explicit registry of one training call: every candidate in
// registry order, the winner and the artifact ready to be saved.
type Result struct {
	RunID        string             `json:"run_id"`
	Pipeline     string             `json:"pipeline"`
	Winner       string             `json:"winner"`
	Candidates   []CandidateResult  `json:"candidates"`
	Artifact     *artifact.Artifact `json:"-"`
	ArtifactPath string             `json:"artifact_path,omitempty"`
	Rows         int                `json:"rows"`
	Dropped      int                `json:"dropped"`
	Duration     time.Duration      `json:"duration"`
}

func (r *Result) Candidate(name string) (CandidateResult, bool) {
	for _, c := range r.Candidates {
		if c.Name == name {
			return c, true
		}
	}
	return CandidateResult{}, false
}

type Trainer struct {
	opts Options
}

func NewTrainer(opts Options) *Trainer {
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		opts.TestFraction = 0.2
	}
	if opts.Folds < 2 {
		opts.Folds = 5
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Trainer{opts: opts}
}

// Train fits the scaler and every candidate on ds and selects the winner by
// held-out accuracy. Any candidate failure aborts the whole run.
func (t *Trainer) Train(ctx context.Context, ds *features.Dataset) (*Result, error) {
	start := time.Now()
	if len(t.opts.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates configured")
	}
	if ds == nil || ds.Schema == nil || len(ds.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty dataset", ErrInsufficientData)
	}
	if len(ds.Samples) < t.opts.MinRows {
		return nil, fmt.Errorf("%w: %d rows, need at least %d", ErrInsufficientData, len(ds.Samples), t.opts.MinRows)
	}
	pipeline := ds.Schema.Pipeline
	classes := ds.Schema.Labels.Len()

	samples, labels := ds.Samples, ds.Labels
	if t.opts.Oversample {
		samples, labels = resample.SMOTE(samples, labels, 5, t.opts.Seed)
		logger.Log.WithFields(map[string]interface{}{
			"pipeline": pipeline,
			"before":   len(ds.Samples),
			"after":    len(samples),
		}).Info("oversampled minority classes")
	}
	if err := checkClasses(labels); err != nil {
		return nil, err
	}

	trainIdx, testIdx := evaluate.StratifiedSplit(labels, t.opts.TestFraction, t.opts.Seed)
	scaler := &preprocess.StandardScaler{}
	if err := scaler.Fit(evaluate.Rows(samples, trainIdx)); err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	xTrain, err := scaler.Transform(evaluate.Rows(samples, trainIdx))
	if err != nil {
		return nil, err
	}
	xTest, err := scaler.Transform(evaluate.Rows(samples, testIdx))
	if err != nil {
		return nil, err
	}
	yTrain := evaluate.Labels(labels, trainIdx)
	yTest := evaluate.Labels(labels, testIdx)

	spec := ml.Spec{Classes: classes, Features: len(ds.Schema.Slots), Seed: t.opts.Seed}
	if t.opts.ClassWeights {
		spec.ClassWeights = resample.BalancedWeights(yTrain)
	}
	folds := evaluate.StratifiedKFold(yTrain, t.opts.Folds, t.opts.Seed)

	results := make([]CandidateResult, len(t.opts.Candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Workers)
	for i, c := range t.opts.Candidates {
		i, c := i, c
		g.Go(func() error {
			res, err := t.evaluate(gctx, c, spec, xTrain, yTrain, folds, xTest, yTest)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	winner := 0
	for i := 1; i < len(results); i++ {
		if results[i].TestAccuracy > results[winner].TestAccuracy {
			winner = i
		}
	}
	results[winner].Winner = true

	runID := uuid.New().String()
	schema := *ds.Schema
	schema.RunID = runID

	art := &artifact.Artifact{
		RunID:     runID,
		Pipeline:  pipeline,
		CreatedAt: time.Now().UTC(),
		Winner:    results[winner].Name,
		Schema:    &schema,
		Scaler:    scaler,
		Model:     results[winner].Model,
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
	}
	for _, r := range results {
		art.Candidates = append(art.Candidates, artifact.FittedCandidate{Name: r.Name, Model: r.Model})
		art.Summaries = append(art.Summaries, r.CandidateSummary)
		metrics.ObserveCandidate(pipeline, r.Name, r.CVMacroF1, r.TestAccuracy)
	}
	if imp, ok := results[winner].Model.(ml.Importancer); ok {
		art.Importances = rankImportances(schema.FeatureNames, imp.FeatureImportances())
	}

	logger.Log.WithFields(map[string]interface{}{
		"pipeline":      pipeline,
		"run_id":        runID,
		"winner":        art.Winner,
		"test_accuracy": results[winner].TestAccuracy,
		"train_rows":    len(trainIdx),
		"test_rows":     len(testIdx),
	}).Info("training run selected winner")

	return &Result{
		RunID:      runID,
		Pipeline:   pipeline,
		Winner:     art.Winner,
		Candidates: results,
		Artifact:   art,
		Rows:       len(ds.Samples),
		Dropped:    ds.Dropped,
		Duration:   time.Since(start),
	}, nil
}

func (t *Trainer) evaluate(ctx context.Context, c Candidate, spec ml.Spec, xTrain [][]float64, yTrain []int, folds [][]int, xTest [][]float64, yTest []int) (CandidateResult, error) {
	scores := make([]float64, 0, len(folds))
	for k, held := range folds {
		if err := ctx.Err(); err != nil {
			return CandidateResult{}, err
		}
		if len(held) == 0 {
			continue
		}
		fitIdx := evaluate.Complement(len(yTrain), held)
		model := c.New(spec)
		if err := model.Fit(evaluate.Rows(xTrain, fitIdx), evaluate.Labels(yTrain, fitIdx)); err != nil {
			return CandidateResult{}, &FitError{Candidate: c.Name, Stage: fmt.Sprintf("cross-validation fold %d", k+1), Err: err}
		}
		pred, err := model.Predict(evaluate.Rows(xTrain, held))
		if err != nil {
			return CandidateResult{}, &FitError{Candidate: c.Name, Stage: fmt.Sprintf("cross-validation fold %d", k+1), Err: err}
		}
		scores = append(scores, evaluate.MacroF1(evaluate.Labels(yTrain, held), pred, spec.Classes))
	}
	if err := ctx.Err(); err != nil {
		return CandidateResult{}, err
	}

	model := c.New(spec)
	if err := model.Fit(xTrain, yTrain); err != nil {
		return CandidateResult{}, &FitError{Candidate: c.Name, Stage: "fit", Err: err}
	}
	pred, err := model.Predict(xTest)
	if err != nil {
		return CandidateResult{}, &FitError{Candidate: c.Name, Stage: "test", Err: err}
	}
	kind, err := codec.Kind(model)
	if err != nil {
		kind = fmt.Sprintf("%T", model)
	}

	report := evaluate.Classify(yTest, pred, spec.Classes)
	res := CandidateResult{
		CandidateSummary: artifact.CandidateSummary{
			Name:         c.Name,
			Kind:         kind,
			CVMacroF1:    mean(scores),
			CVFolds:      scores,
			TestAccuracy: report.Accuracy,
			Report:       report,
		},
		Model: model,
	}
	logger.Log.WithFields(map[string]interface{}{
		"candidate":     c.Name,
		"cv_macro_f1":   res.CVMacroF1,
		"test_accuracy": res.TestAccuracy,
		"confusion":     report.Confusion,
	}).Info("candidate evaluated")
	return res, nil
}

func checkClasses(labels []int) error {
	counts := map[int]int{}
	for _, y := range labels {
		counts[y]++
	}
	if len(counts) < 2 {
		return fmt.Errorf("%w: need at least two classes, got %d", ErrInsufficientData, len(counts))
	}
	for c, n := range counts {
		if n < 2 {
			return fmt.Errorf("%w: class %d has %d row", ErrInsufficientData, c, n)
		}
	}
	return nil
}

func rankImportances(names []string, scores []float64) []artifact.Importance {
	out := make([]artifact.Importance, 0, len(scores))
	for i, s := range scores {
		if i < len(names) {
			out = append(out, artifact.Importance{Feature: names[i], Score: s})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

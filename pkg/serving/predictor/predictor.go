package predictor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/synaptica-ai/cardiorisk/pkg/artifact"
	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/ml"
	"github.com/synaptica-ai/cardiorisk/pkg/observability/metrics"
)

// RiskLevels names the static severities 0-4.
var RiskLevels = []string{"very_low", "low", "medium", "high", "critical"}

// historySeverity places telemetry labels on the 0-4 severity scale.
var historySeverity = map[string]int{
	"normal":   0,
	"low":      1,
	"medium":   2,
	"warning":  2,
	"high":     3,
	"critical": 4,
}

// Result is one scored record.
type Result struct {
	Pipeline      string         `json:"pipeline"`
	RunID         string         `json:"run_id"`
	Label         string         `json:"label"`
	LabelIndex    int            `json:"label_index"`
	Severity      *int           `json:"severity,omitempty"`
	RiskLevel     string         `json:"risk_level,omitempty"`
	Confidence    float64        `json:"confidence"`
	Probabilities []float64      `json:"probabilities"`
	LabelMap      map[string]int `json:"label_map"`
	FeatureCount  int            `json:"feature_count"`
	Conditions    int            `json:"conditions"`
}

// Source loads published artifacts.
type Source interface {
	Load(pipeline string) (*artifact.Artifact, error)
	Latest(pipeline string) (string, error)
	Modified(pipeline string) (time.Time, error)
}

// Predictor scores single records against the latest published run of a
// pipeline. Artifacts are cached until the pipeline pointer changes.
type Predictor struct {
	source Source
	cache  map[string]cachedArtifact
	mu     sync.RWMutex
}

type cachedArtifact struct {
	artifact *artifact.Artifact
	runID    string
	modTime  int64
}

func NewPredictor(source Source) *Predictor {
	return &Predictor{
		source: source,
		cache:  make(map[string]cachedArtifact),
	}
}

func (p *Predictor) Predict(ctx context.Context, pipeline string, record features.Record) (Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	art, err := p.Artifact(pipeline)
	if err != nil {
		metrics.ObservePredictionError(pipeline, "artifact")
		return Result{}, err
	}

	row, err := art.Schema.Vector(record)
	if err != nil {
		metrics.ObservePredictionError(pipeline, "features")
		return Result{}, err
	}
	scaled, err := art.Scaler.TransformRow(row)
	if err != nil {
		metrics.ObservePredictionError(pipeline, "scale")
		return Result{}, err
	}
	predicted, err := art.Model.Predict([][]float64{scaled})
	if err != nil {
		metrics.ObservePredictionError(pipeline, "model")
		return Result{}, err
	}
	proba, err := art.Model.PredictProba([][]float64{scaled})
	if err != nil {
		metrics.ObservePredictionError(pipeline, "model")
		return Result{}, err
	}
	dist := proba[0]
	idx := predicted[0]
	label, ok := art.Schema.Labels.Label(idx)
	if !ok {
		metrics.ObservePredictionError(pipeline, "label")
		return Result{}, fmt.Errorf("class index %d outside label map of run %s", idx, art.RunID)
	}

	res := Result{
		Pipeline:      pipeline,
		RunID:         art.RunID,
		Label:         label,
		LabelIndex:    idx,
		Confidence:    Confidence(dist),
		Probabilities: dist,
		LabelMap:      art.Schema.Labels.Map(),
		FeatureCount:  len(art.Schema.FeatureNames),
		Conditions:    len(art.Schema.Conditions),
	}
	if sev, ok := Severity(pipeline, label); ok {
		res.Severity = &sev
		res.RiskLevel = RiskLevels[sev]
	}
	metrics.ObservePrediction(pipeline, label, time.Since(start))
	return res, nil
}

// Artifact returns the cached latest run, reloading it when the pointer has
// been rewritten since the last load.
func (p *Predictor) Artifact(pipeline string) (*artifact.Artifact, error) {
	modified, err := p.source.Modified(pipeline)
	if err != nil {
		return nil, err
	}
	runID, err := p.source.Latest(pipeline)
	if err != nil {
		return nil, err
	}
	mod := modified.UnixNano()

	p.mu.RLock()
	cached, ok := p.cache[pipeline]
	p.mu.RUnlock()
	if ok && cached.modTime == mod && cached.runID == runID {
		return cached.artifact, nil
	}

	art, err := p.source.Load(pipeline)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.cache[pipeline] = cachedArtifact{artifact: art, runID: art.RunID, modTime: mod}
	p.mu.Unlock()
	logger.Log.WithFields(map[string]interface{}{
		"pipeline": pipeline,
		"run_id":   art.RunID,
		"winner":   art.Winner,
	}).Info("loaded model artifact")
	return art, nil
}

// Invalidate drops the cached run of pipeline, or of every pipeline when
// pipeline is empty.
func (p *Predictor) Invalidate(pipeline string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pipeline == "" {
		p.cache = make(map[string]cachedArtifact)
		return
	}
	delete(p.cache, pipeline)
}

// Confidence is the top class probability as a percentage rounded to two
// decimals.
func Confidence(dist []float64) float64 {
	if len(dist) == 0 {
		return 0
	}
	top := dist[ml.Argmax(dist)]
	return math.Round(top*10000) / 100
}

// Severity maps a predicted label onto the 0-4 scale.
func Severity(pipeline, label string) (int, bool) {
	if pipeline == features.PipelineStatic {
		v, err := strconv.Atoi(label)
		if err != nil || v < 0 || v >= len(RiskLevels) {
			return 0, false
		}
		return v, true
	}
	v, ok := historySeverity[label]
	return v, ok
}

// Package serving answers prediction, diagnosis and analysis requests
// against the latest published model runs.
package serving

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/synaptica-ai/cardiorisk/pkg/analysis"
	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
	"github.com/synaptica-ai/cardiorisk/pkg/common/models"
	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/insight"
	"github.com/synaptica-ai/cardiorisk/pkg/records"
	"github.com/synaptica-ai/cardiorisk/pkg/serving/predictor"
	"github.com/synaptica-ai/cardiorisk/pkg/storage"
)

const source = "serving-service"

// storedSeverity names the 0-4 scale the way telemetry documents record it.
var storedSeverity = []string{"low", "medium", "high", "high", "critical"}

var readingStatuses = map[string]bool{"normal": true, "warning": true, "critical": true}

// ErrNoTelemetry is returned by user-scoped operations when no telemetry
// store is configured.
var ErrNoTelemetry = errors.New("telemetry store not configured")

type Predictor interface {
	Predict(ctx context.Context, pipeline string, record features.Record) (predictor.Result, error)
}

// Telemetry is the system of record for readings and user profiles.
type Telemetry interface {
	Profile(ctx context.Context, userID string) (records.Profile, error)
	UserHistory(ctx context.Context, userID string, since time.Time, limit int) ([]records.Telemetry, error)
	Insert(ctx context.Context, t *records.Telemetry) error
}

// ProfileCache fronts Telemetry.Profile.
type ProfileCache interface {
	Profile(ctx context.Context, userID string, load storage.ProfileLoader) (records.Profile, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Deps wires the service. Telemetry, Profiles, Logs and Publisher are
// optional.
type Deps struct {
	Predictor Predictor
	Insights  *insight.Engine
	Telemetry Telemetry
	Profiles  ProfileCache
	Logs      PredictionLogger
	Publisher Publisher
}

type Options struct {
	AnalysisDays  int
	AnalysisLimit int
}

// Diagnosis is a prediction with the guidance derived from it.
type Diagnosis struct {
	Prediction predictor.Result       `json:"prediction"`
	Insights   *insight.Report        `json:"insights,omitempty"`
	Input      map[string]interface{} `json:"input"`
}

// Analysis is a user's heart-rate dashboard.
type Analysis struct {
	UserID    string                `json:"user_id"`
	Profile   records.Profile       `json:"profile"`
	Ideal     analysis.IdealMetrics `json:"heart_metrics"`
	Summary   analysis.Summary      `json:"analysis"`
	RiskNotes []string              `json:"risk_notes"`
	Latest    *records.Telemetry    `json:"latest_record,omitempty"`
	Since     time.Time             `json:"since"`
}

type Service struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Insights == nil {
		deps.Insights = insight.NewEngine(insight.DefaultCatalog())
	}
	if opts.AnalysisDays <= 0 {
		opts.AnalysisDays = 7
	}
	return &Service{deps: deps, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// PredictStatic scores a clinical record and attaches insights.
func (s *Service) PredictStatic(ctx context.Context, userID string, in models.ClinicalInput) (Diagnosis, error) {
	record := ClinicalRecord(in)
	return s.diagnose(ctx, userID, features.PipelineStatic, record, insight.Vitals{HeartRate: in.HeartRate})
}

// PredictHistory scores a live reading. When a user id is given, the stored
// profile fills any attribute the request leaves out.
func (s *Service) PredictHistory(ctx context.Context, in models.TelemetryInput) (Diagnosis, error) {
	record, err := TelemetryRecord(in)
	if err != nil {
		return Diagnosis{}, err
	}
	if in.UserID != "" && s.deps.Telemetry != nil {
		profile, err := s.profile(ctx, in.UserID)
		if err != nil {
			return Diagnosis{}, err
		}
		records.ApplyProfile(&record, profile)
	}
	return s.diagnose(ctx, in.UserID, features.PipelineHistory, record, insight.Vitals{HeartRate: in.HeartRate})
}

func (s *Service) diagnose(ctx context.Context, userID, pipeline string, record features.Record, vitals insight.Vitals) (Diagnosis, error) {
	start := time.Now()
	res, err := s.deps.Predictor.Predict(ctx, pipeline, record)
	if err != nil {
		return Diagnosis{}, err
	}
	d := Diagnosis{Prediction: res, Input: recordInput(record)}
	if pipeline == features.PipelineHistory {
		d.Input = historyInput(record)
	}
	if res.Severity != nil {
		report := s.deps.Insights.Generate(*res.Severity, res.Confidence, vitals)
		d.Insights = &report
	}
	latency := time.Since(start)

	logger.Log.WithFields(map[string]interface{}{
		"pipeline":   pipeline,
		"run_id":     res.RunID,
		"label":      res.Label,
		"confidence": res.Confidence,
		"latency_ms": latency.Milliseconds(),
	}).Info("prediction completed")

	if s.deps.Logs != nil {
		err := s.deps.Logs.RecordPrediction(ctx, LogEntry{UserID: userID, Request: d.Input, Result: res, Latency: latency})
		if err != nil {
			logger.Log.WithError(err).Warn("failed to record prediction")
		}
	}
	if s.deps.Publisher != nil {
		data := map[string]interface{}{
			"pipeline":   pipeline,
			"run_id":     res.RunID,
			"label":      res.Label,
			"confidence": res.Confidence,
		}
		if userID != "" {
			data["user_id"] = userID
		}
		if res.Severity != nil {
			data["severity"] = *res.Severity
		}
		if err := s.deps.Publisher.PublishEvent(ctx, models.EventPredictionCompleted, source, data); err != nil {
			logger.Log.WithError(err).Warn("failed to publish prediction event")
		}
	}
	return d, nil
}

// Analysis summarises the user's readings over the configured look-back.
func (s *Service) Analysis(ctx context.Context, userID string) (Analysis, error) {
	if userID == "" {
		return Analysis{}, &ValidationError{Message: "user id is required"}
	}
	if s.deps.Telemetry == nil {
		return Analysis{}, ErrNoTelemetry
	}
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return Analysis{}, err
	}
	now := s.now()
	since := now.AddDate(0, 0, -s.opts.AnalysisDays)
	history, err := s.deps.Telemetry.UserHistory(ctx, userID, since, s.opts.AnalysisLimit)
	if err != nil {
		return Analysis{}, err
	}

	a := Analysis{
		UserID:    userID,
		Profile:   profile,
		Ideal:     analysis.Ideal(profile),
		Summary:   analysis.Summarize(analysis.Samples(history), now),
		RiskNotes: analysis.RiskNotes(profile.Conditions),
		Since:     since,
	}
	if n := len(history); n > 0 {
		latest := history[n-1]
		a.Latest = &latest
	}
	return a, nil
}

// RecordHeartMetric stores a reading together with the diagnosis of the
// static model. A reading is still stored when no model is published yet.
func (s *Service) RecordHeartMetric(ctx context.Context, in models.HeartMetricInput) (*records.Telemetry, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, &ValidationError{Message: "user_id is required"}
	}
	if in.HeartRate <= 0 {
		return nil, &ValidationError{Message: "heart_rate must be positive"}
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = "normal"
	}
	if !readingStatuses[status] {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown status %q", in.Status)}
	}
	if s.deps.Telemetry == nil {
		return nil, ErrNoTelemetry
	}

	hr := in.HeartRate
	t := &records.Telemetry{
		UserID:    in.UserID,
		HeartRate: &hr,
		Status:    status,
		Notes:     in.Notes,
	}
	if in.Timestamp != nil {
		at := in.Timestamp.UTC()
		t.CreatedAt = &at
	}

	clinical := models.ClinicalInput{HeartRate: &hr}
	if profile, err := s.profile(ctx, in.UserID); err == nil && profile.Age != nil {
		clinical.Age = profile.Age
	}
	d, err := s.PredictStatic(ctx, in.UserID, clinical)
	switch {
	case err != nil:
		logger.Log.WithError(err).WithField("user_id", in.UserID).Warn("storing reading without diagnosis")
	case d.Insights != nil:
		t.AIDiagnosis = storedDiagnosis(d, s.now())
	}

	if err := s.deps.Telemetry.Insert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) profile(ctx context.Context, userID string) (records.Profile, error) {
	if s.deps.Profiles != nil {
		return s.deps.Profiles.Profile(ctx, userID, s.deps.Telemetry.Profile)
	}
	return s.deps.Telemetry.Profile(ctx, userID)
}

func storedDiagnosis(d Diagnosis, at time.Time) *records.Diagnosis {
	r := d.Insights
	severity := ""
	if r.Severity >= 0 && r.Severity < len(storedSeverity) {
		severity = storedSeverity[r.Severity]
	}
	return &records.Diagnosis{
		Diagnosis:       r.Title,
		Severity:        severity,
		Analysis:        r.Assessment,
		Recommendations: r.Recommendations,
		RiskFactors:     r.RiskFactors,
		NeedsAttention:  r.NeedsAttention,
		UrgencyLevel:    r.UrgencyLevel,
		Model:           fmt.Sprintf("%s/%s", d.Prediction.Pipeline, d.Prediction.RunID),
		DiagnosedAt:     &at,
	}
}

package serving

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/synaptica-ai/cardiorisk/pkg/serving/predictor"
)

// PredictionLog is the persistence model for served predictions.
type PredictionLog struct {
	ID         uuid.UUID         `gorm:"primaryKey;column:id"`
	UserID     string            `gorm:"column:user_id;index"`
	Pipeline   string            `gorm:"column:pipeline;index"`
	RunID      string            `gorm:"column:run_id"`
	Label      string            `gorm:"column:label"`
	Severity   *int              `gorm:"column:severity"`
	Request    datatypes.JSONMap `gorm:"column:request"`
	Response   datatypes.JSONMap `gorm:"column:response"`
	LatencyMs  float64           `gorm:"column:latency_ms"`
	Confidence float64           `gorm:"column:confidence"`
	CreatedAt  time.Time         `gorm:"column:created_at"`
}

// TableName overrides gorm naming.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// LogEntry is one served prediction handed to the log.
type LogEntry struct {
	UserID  string
	Request map[string]interface{}
	Result  predictor.Result
	Latency time.Duration
}

// PredictionLogger persists served predictions.
type PredictionLogger interface {
	RecordPrediction(ctx context.Context, entry LogEntry) error
}

// Repository handles prediction log queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

func (r *Repository) RecordPrediction(ctx context.Context, entry LogEntry) error {
	res := entry.Result
	log := PredictionLog{
		ID:       uuid.New(),
		UserID:   entry.UserID,
		Pipeline: res.Pipeline,
		RunID:    res.RunID,
		Label:    res.Label,
		Severity: res.Severity,
		Request:  datatypes.JSONMap(entry.Request),
		Response: datatypes.JSONMap{
			"label":         res.Label,
			"label_index":   res.LabelIndex,
			"risk_level":    res.RiskLevel,
			"probabilities": res.Probabilities,
		},
		LatencyMs:  float64(entry.Latency.Microseconds()) / 1000.0,
		Confidence: res.Confidence,
		CreatedAt:  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&log).Error
}

// Recent returns the most recent prediction logs of a pipeline, or of all
// pipelines when pipeline is empty.
func (r *Repository) Recent(ctx context.Context, pipeline string, limit int) ([]PredictionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if pipeline != "" {
		q = q.Where("pipeline = ?", pipeline)
	}
	var logs []PredictionLog
	err := q.Find(&logs).Error
	return logs, err
}

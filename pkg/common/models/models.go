package models

import (
	"time"

	"github.com/google/uuid"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // model.trained, prediction.completed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	EventModelTrained        = "model.trained"
	EventPredictionCompleted = "prediction.completed"
)

// Training
type TrainingJob struct {
	ID           uuid.UUID              `json:"id"`
	Pipeline     string                 `json:"pipeline"` // static, history
	Request      map[string]interface{} `json:"request,omitempty"`
	Status       string                 `json:"status"`
	RunID        string                 `json:"run_id,omitempty"`
	Winner       string                 `json:"winner,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
	ArtifactPath string                 `json:"artifact_path,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

type TrainingJobRequest struct {
	Pipeline    string     `json:"pipeline"`
	Candidates  []string   `json:"candidates,omitempty"`
	DataPath    string     `json:"data_path,omitempty"`
	Days        int        `json:"days,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	LabelSource string     `json:"label_source,omitempty"`
}

// Serving
type ClinicalInput struct {
	Age      *float64 `json:"age,omitempty"`
	Sex      *float64 `json:"sex,omitempty"`
	CP       *float64 `json:"cp,omitempty"`
	Trestbps *float64 `json:"trestbps,omitempty"`
	Chol     *float64 `json:"chol,omitempty"`
	FBS      *float64 `json:"fbs,omitempty"`
	RestECG  *float64 `json:"restecg,omitempty"`
	Thalach  *float64 `json:"thalach,omitempty"`
	Exang    *float64 `json:"exang,omitempty"`
	Oldpeak  *float64 `json:"oldpeak,omitempty"`
	Slope    *float64 `json:"slope,omitempty"`
	CA       *float64 `json:"ca,omitempty"`
	Thal     *float64 `json:"thal,omitempty"`
	// HeartRate stands in for thalach when only a live reading is known.
	HeartRate *float64 `json:"heartRate,omitempty"`
}

type TelemetryInput struct {
	UserID     string     `json:"user_id,omitempty"`
	HeartRate  *float64   `json:"heart_rate"`
	Age        *float64   `json:"age,omitempty"`
	Gender     string     `json:"gender,omitempty"`
	Weight     *float64   `json:"weight,omitempty"`
	Conditions []string   `json:"conditions,omitempty"`
	Hour       *int       `json:"hour,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

type HeartMetricInput struct {
	UserID    string     `json:"user_id"`
	HeartRate float64    `json:"heart_rate"`
	Status    string     `json:"status,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type JobModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	Pipeline     string            `gorm:"column:pipeline;index"`
	Request      datatypes.JSONMap `gorm:"column:request"`
	Status       string            `gorm:"column:status"`
	RunID        string            `gorm:"column:run_id"`
	Winner       string            `gorm:"column:winner"`
	Metrics      datatypes.JSONMap `gorm:"column:metrics"`
	ArtifactPath string            `gorm:"column:artifact_path"`
	ErrorMessage string            `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at"`
	StartedAt    *time.Time        `gorm:"column:started_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at"`
}

func (JobModel) TableName() string {
	return "training_jobs"
}

// Outcome is what a finished job records.
type Outcome struct {
	RunID        string
	Winner       string
	ArtifactPath string
	Metrics      map[string]interface{}
}

// JobArtifact points a job at its published run.
type JobArtifact struct {
	JobID    uuid.UUID              `json:"job_id"`
	Pipeline string                 `json:"pipeline"`
	RunID    string                 `json:"run_id"`
	Path     string                 `json:"path"`
	Metrics  map[string]interface{} `json:"metrics"`
}

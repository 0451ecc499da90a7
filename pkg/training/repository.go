package training

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("training job not found")

// JobStore persists training jobs.
type JobStore interface {
	Create(ctx context.Context, job *JobModel) error
	MarkRunning(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error
	MarkCompleted(ctx context.Context, jobID uuid.UUID, out Outcome, completedAt time.Time) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, message string, completedAt time.Time) error
	Get(ctx context.Context, jobID uuid.UUID) (*JobModel, error)
	List(ctx context.Context, pipeline string, limit int) ([]JobModel, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&JobModel{})
}

func (r *Repository) Create(ctx context.Context, job *JobModel) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repository) MarkRunning(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error {
	return r.update(ctx, jobID, map[string]interface{}{
		"status":     StatusRunning,
		"started_at": startedAt,
	})
}

func (r *Repository) MarkCompleted(ctx context.Context, jobID uuid.UUID, out Outcome, completedAt time.Time) error {
	updates := map[string]interface{}{
		"status":        StatusCompleted,
		"run_id":        out.RunID,
		"winner":        out.Winner,
		"artifact_path": out.ArtifactPath,
		"error_message": "",
		"completed_at":  completedAt,
	}
	if out.Metrics != nil {
		updates["metrics"] = datatypes.JSONMap(out.Metrics)
	}
	return r.update(ctx, jobID, updates)
}

func (r *Repository) MarkFailed(ctx context.Context, jobID uuid.UUID, message string, completedAt time.Time) error {
	return r.update(ctx, jobID, map[string]interface{}{
		"status":        StatusFailed,
		"error_message": message,
		"completed_at":  completedAt,
	})
}

func (r *Repository) update(ctx context.Context, jobID uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&JobModel{}).Where("id = ?", jobID).Updates(updates).Error
}

func (r *Repository) Get(ctx context.Context, jobID uuid.UUID) (*JobModel, error) {
	var job JobModel
	result := r.db.WithContext(ctx).First(&job, "id = ?", jobID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	return &job, result.Error
}

func (r *Repository) List(ctx context.Context, pipeline string, limit int) ([]JobModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []JobModel
	q := r.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if pipeline != "" {
		q = q.Where("pipeline = ?", pipeline)
	}
	result := q.Find(&jobs)
	return jobs, result.Error
}

package training

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
	"github.com/synaptica-ai/cardiorisk/pkg/common/models"
	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/records"
)

// Pipelines runs the two training pipelines end to end.
type Pipelines interface {
	RunStatic(ctx context.Context, req StaticRequest) (*Result, error)
	RunHistory(ctx context.Context, req HistoryRequest) (*Result, error)
}

// Publisher announces finished runs.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// ValidationError marks a job request the caller must fix.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const statusWriteTimeout = 5 * time.Second

// Service queues training jobs and runs them in the background, at most
// maxWorkers at a time.
type Service struct {
	repo      JobStore
	pipelines Pipelines
	publisher Publisher
	workerSem chan struct{}
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewService(repo JobStore, pipelines Pipelines, publisher Publisher, maxWorkers int, timeout time.Duration) *Service {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Service{
		repo:      repo,
		pipelines: pipelines,
		publisher: publisher,
		workerSem: make(chan struct{}, maxWorkers),
		timeout:   timeout,
	}
}

func (s *Service) Create(ctx context.Context, req models.TrainingJobRequest) (models.TrainingJob, error) {
	if err := validateRequest(req); err != nil {
		return models.TrainingJob{}, err
	}
	now := time.Now().UTC()
	job := &JobModel{
		ID:        uuid.New(),
		Pipeline:  req.Pipeline,
		Request:   datatypes.JSONMap(requestMap(req)),
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return models.TrainingJob{}, err
	}
	s.wg.Add(1)
	go s.run(job.ID, req)
	return toDomain(job), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.TrainingJob, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.TrainingJob{}, err
	}
	return toDomain(job), nil
}

func (s *Service) List(ctx context.Context, pipeline string, limit int) ([]models.TrainingJob, error) {
	jobs, err := s.repo.List(ctx, pipeline, limit)
	if err != nil {
		return nil, err
	}
	results := make([]models.TrainingJob, 0, len(jobs))
	for _, job := range jobs {
		copy := job
		results = append(results, toDomain(&copy))
	}
	return results, nil
}

func (s *Service) GetArtifact(ctx context.Context, id uuid.UUID) (JobArtifact, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return JobArtifact{}, err
	}
	if job.Status != StatusCompleted {
		return JobArtifact{}, fmt.Errorf("%w: job %s is %s", ErrJobNotComplete, id, job.Status)
	}
	metrics := map[string]interface{}{}
	if job.Metrics != nil {
		metrics = map[string]interface{}(job.Metrics)
	}
	return JobArtifact{JobID: job.ID, Pipeline: job.Pipeline, RunID: job.RunID, Path: job.ArtifactPath, Metrics: metrics}, nil
}

// Wait blocks until every started job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) run(jobID uuid.UUID, req models.TrainingJobRequest) {
	defer s.wg.Done()
	s.workerSem <- struct{}{}
	defer func() { <-s.workerSem }()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.repo.MarkRunning(ctx, jobID, time.Now().UTC()); err != nil {
		logger.Log.WithError(err).Error("failed to mark job running")
	}

	var (
		res *Result
		err error
	)
	switch req.Pipeline {
	case features.PipelineStatic:
		res, err = s.pipelines.RunStatic(ctx, StaticRequest{DataPath: req.DataPath, Candidates: req.Candidates})
	default:
		res, err = s.pipelines.RunHistory(ctx, HistoryRequest{
			Window:      records.Window{Days: req.Days, Start: req.Start, End: req.End},
			LabelSource: req.LabelSource,
			Candidates:  req.Candidates,
		})
	}
	if err != nil {
		s.failJob(jobID, err)
		return
	}

	out := Outcome{
		RunID:        res.RunID,
		Winner:       res.Winner,
		ArtifactPath: res.ArtifactPath,
		Metrics:      resultMetrics(res),
	}
	statusCtx, cancelStatus := statusContext()
	defer cancelStatus()
	if err := s.repo.MarkCompleted(statusCtx, jobID, out, time.Now().UTC()); err != nil {
		logger.Log.WithError(err).WithField("job_id", jobID).Error("failed to mark job complete")
	}

	if s.publisher != nil {
		err := s.publisher.PublishEvent(statusCtx, models.EventModelTrained, "training-service", map[string]interface{}{
			"job_id":   jobID.String(),
			"pipeline": res.Pipeline,
			"run_id":   res.RunID,
			"winner":   res.Winner,
		})
		if err != nil {
			logger.Log.WithError(err).WithField("job_id", jobID).Warn("failed to announce trained model")
		}
	}
}

func (s *Service) failJob(jobID uuid.UUID, err error) {
	log := logger.Log.WithField("job_id", jobID)
	log.WithError(err).Error("training job failed")
	ctx, cancel := statusContext()
	defer cancel()
	if merr := s.repo.MarkFailed(ctx, jobID, err.Error(), time.Now().UTC()); merr != nil {
		log.WithError(merr).Error("failed to mark job failed")
	}
}

// statusContext bounds job status writes independently of the job's own
// deadline, which may already have passed.
func statusContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), statusWriteTimeout)
}

func validateRequest(req models.TrainingJobRequest) error {
	switch req.Pipeline {
	case features.PipelineStatic:
	case features.PipelineHistory:
		if req.LabelSource != "" && !records.ValidLabelSource(req.LabelSource) {
			return &ValidationError{Message: fmt.Sprintf("unknown label source %q", req.LabelSource)}
		}
		if req.Days < 0 {
			return &ValidationError{Message: "days must not be negative"}
		}
		if req.Start != nil && req.End != nil && req.End.Before(*req.Start) {
			return &ValidationError{Message: "end precedes start"}
		}
	default:
		return &ValidationError{Message: fmt.Sprintf("unknown pipeline %q", req.Pipeline)}
	}
	return nil
}

func requestMap(req models.TrainingJobRequest) map[string]interface{} {
	m := map[string]interface{}{"pipeline": req.Pipeline}
	if len(req.Candidates) > 0 {
		m["candidates"] = req.Candidates
	}
	if req.DataPath != "" {
		m["data_path"] = req.DataPath
	}
	if req.Days > 0 {
		m["days"] = req.Days
	}
	if req.Start != nil {
		m["start"] = req.Start.UTC().Format(time.RFC3339)
	}
	if req.End != nil {
		m["end"] = req.End.UTC().Format(time.RFC3339)
	}
	if req.LabelSource != "" {
		m["label_source"] = req.LabelSource
	}
	return m
}

func resultMetrics(res *Result) map[string]interface{} {
	candidates := make([]map[string]interface{}, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		candidates = append(candidates, map[string]interface{}{
			"name":          c.Name,
			"cv_macro_f1":   c.CVMacroF1,
			"test_accuracy": c.TestAccuracy,
			"winner":        c.Winner,
		})
	}
	return map[string]interface{}{
		"rows":             res.Rows,
		"dropped":          res.Dropped,
		"candidates":       candidates,
		"duration_seconds": res.Duration.Seconds(),
	}
}

func toDomain(job *JobModel) models.TrainingJob {
	result := models.TrainingJob{
		ID:           job.ID,
		Pipeline:     job.Pipeline,
		Status:       job.Status,
		RunID:        job.RunID,
		Winner:       job.Winner,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ArtifactPath: job.ArtifactPath,
		ErrorMessage: job.ErrorMessage,
	}
	if job.Request != nil {
		result.Request = map[string]interface{}(job.Request)
	}
	if job.Metrics != nil {
		result.Metrics = map[string]interface{}(job.Metrics)
	}
	return result
}

package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/cardiorisk/pkg/artifact"
	"github.com/synaptica-ai/cardiorisk/pkg/common/models"
	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/records"
)

type memJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*JobModel
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[uuid.UUID]*JobModel{}}
}

func (m *memJobs) Create(ctx context.Context, job *JobModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *job
	m.jobs[job.ID] = &copy
	return nil
}

func (m *memJobs) MarkRunning(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.with(ctx, id, func(j *JobModel) {
		j.Status = StatusRunning
		j.StartedAt = &at
	})
}

func (m *memJobs) MarkCompleted(ctx context.Context, id uuid.UUID, out Outcome, at time.Time) error {
	return m.with(ctx, id, func(j *JobModel) {
		j.Status = StatusCompleted
		j.RunID = out.RunID
		j.Winner = out.Winner
		j.ArtifactPath = out.ArtifactPath
		j.Metrics = out.Metrics
		j.CompletedAt = &at
	})
}

func (m *memJobs) MarkFailed(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	return m.with(ctx, id, func(j *JobModel) {
		j.Status = StatusFailed
		j.ErrorMessage = message
		j.CompletedAt = &at
	})
}

func (m *memJobs) Get(ctx context.Context, id uuid.UUID) (*JobModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	copy := *j
	return &copy, nil
}

func (m *memJobs) List(ctx context.Context, pipeline string, limit int) ([]JobModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []JobModel
	for _, j := range m.jobs {
		if pipeline == "" || j.Pipeline == pipeline {
			out = append(out, *j)
		}
	}
	return out, nil
}

// with refuses writes on a finished context the way gorm's WithContext does.
func (m *memJobs) with(ctx context.Context, id uuid.UUID, fn func(*JobModel)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	fn(j)
	return nil
}

type stubPipelines struct {
	err     error
	history []HistoryRequest
	mu      sync.Mutex
}

func (p *stubPipelines) RunStatic(ctx context.Context, req StaticRequest) (*Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &Result{RunID: "run-static", Pipeline: features.PipelineStatic, Winner: CandidateForest, ArtifactPath: "/artifacts/static/runs/run-static", Rows: 10}, nil
}

func (p *stubPipelines) RunHistory(ctx context.Context, req HistoryRequest) (*Result, error) {
	p.mu.Lock()
	p.history = append(p.history, req)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &Result{RunID: "run-history", Pipeline: features.PipelineHistory, Winner: CandidateForest}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []map[string]interface{}
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	data["type"] = eventType
	p.events = append(p.events, data)
	return nil
}

func TestServiceCompletesJob(t *testing.T) {
	jobs := newMemJobs()
	pub := &recordingPublisher{}
	svc := NewService(jobs, &stubPipelines{}, pub, 2, time.Minute)

	job, err := svc.Create(context.Background(), models.TrainingJobRequest{Pipeline: features.PipelineStatic})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, job.Status)
	svc.Wait()

	done, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, "run-static", done.RunID)
	assert.Equal(t, CandidateForest, done.Winner)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, 10, done.Metrics["rows"])

	art, err := svc.GetArtifact(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "run-static", art.RunID)
	assert.Equal(t, "/artifacts/static/runs/run-static", art.Path)

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventModelTrained, pub.events[0]["type"])
	assert.Equal(t, "run-static", pub.events[0]["run_id"])
}

func TestServiceRecordsFailure(t *testing.T) {
	jobs := newMemJobs()
	pub := &recordingPublisher{}
	svc := NewService(jobs, &stubPipelines{err: fmt.Errorf("%w: 3 rows", ErrInsufficientData)}, pub, 1, 0)

	job, err := svc.Create(context.Background(), models.TrainingJobRequest{Pipeline: features.PipelineHistory, Days: 7})
	require.NoError(t, err)
	svc.Wait()

	failed, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "insufficient training data")
	assert.Empty(t, pub.events)

	_, err = svc.GetArtifact(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrJobNotComplete)
}

type blockingPipelines struct{}

func (blockingPipelines) RunStatic(ctx context.Context, req StaticRequest) (*Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingPipelines) RunHistory(ctx context.Context, req HistoryRequest) (*Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestServiceMarksTimedOutJobFailed(t *testing.T) {
	jobs := newMemJobs()
	svc := NewService(jobs, blockingPipelines{}, nil, 1, 20*time.Millisecond)

	job, err := svc.Create(context.Background(), models.TrainingJobRequest{Pipeline: features.PipelineStatic})
	require.NoError(t, err)
	svc.Wait()

	failed, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, context.DeadlineExceeded.Error())
	assert.NotNil(t, failed.CompletedAt)
}

type slowFinishPipelines struct{ stubPipelines }

func (p *slowFinishPipelines) RunStatic(ctx context.Context, req StaticRequest) (*Result, error) {
	<-ctx.Done()
	return p.stubPipelines.RunStatic(context.Background(), req)
}

func TestServiceCompletesJobFinishingAtDeadline(t *testing.T) {
	jobs := newMemJobs()
	pub := &recordingPublisher{}
	svc := NewService(jobs, &slowFinishPipelines{}, pub, 1, 20*time.Millisecond)

	job, err := svc.Create(context.Background(), models.TrainingJobRequest{Pipeline: features.PipelineStatic})
	require.NoError(t, err)
	svc.Wait()

	done, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, "run-static", done.RunID)
	assert.Len(t, pub.events, 1)
}

func TestServicePassesHistoryWindow(t *testing.T) {
	pipelines := &stubPipelines{}
	svc := NewService(newMemJobs(), pipelines, nil, 1, 0)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	job, err := svc.Create(context.Background(), models.TrainingJobRequest{
		Pipeline:    features.PipelineHistory,
		Start:       &start,
		LabelSource: records.LabelFromStatus,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00Z", job.Request["start"])
	svc.Wait()

	require.Len(t, pipelines.history, 1)
	assert.Equal(t, &start, pipelines.history[0].Window.Start)
	assert.Equal(t, records.LabelFromStatus, pipelines.history[0].LabelSource)
}

func TestServiceValidatesRequests(t *testing.T) {
	svc := NewService(newMemJobs(), &stubPipelines{}, nil, 1, 0)
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	bad := []models.TrainingJobRequest{
		{Pipeline: "nightly"},
		{Pipeline: features.PipelineHistory, LabelSource: "doctor"},
		{Pipeline: features.PipelineHistory, Days: -1},
		{Pipeline: features.PipelineHistory, Start: &start, End: &end},
	}
	for _, req := range bad {
		_, err := svc.Create(context.Background(), req)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "%+v", req)
	}

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

// clinicalCSV writes a separable two-class dataset: younger patients with
// high max heart rate are healthy.
func clinicalCSV(t *testing.T, perClass int) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < perClass; i++ {
		fmt.Fprintf(&b, "%d,1,1,%d,%d,0,0,%d,0,0.5,1,0,3,0\n", 35+i%10, 115+i%10, 190+i%15, 165+i%10)
		fmt.Fprintf(&b, "%d,1,4,%d,%d,1,2,%d,1,2.5,2,2,7,1\n", 62+i%10, 150+i%10, 270+i%20, 105+i%10)
	}
	b.WriteString("50,1,3,130,?,0,0,150,0,1.0,1,0,3,0\n")
	path := filepath.Join(t.TempDir(), "heart.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRunnerStaticPublishesLoadableRun(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	runner := NewRunner(RunnerConfig{
		StaticDataPath:   clinicalCSV(t, 25),
		StaticCandidates: []string{CandidateLogistic},
		Workers:          1,
	}, store, nil)

	res, err := runner.RunStatic(context.Background(), StaticRequest{})
	require.NoError(t, err)
	assert.Equal(t, features.PipelineStatic, res.Pipeline)
	assert.Equal(t, CandidateLogistic, res.Winner)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, store.RunDir(features.PipelineStatic, res.RunID), res.ArtifactPath)

	latest, err := store.Latest(features.PipelineStatic)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, latest)

	loaded, err := store.Load(features.PipelineStatic)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, loaded.Schema.Labels.Labels())
	assert.Len(t, loaded.Schema.FeatureNames, 17)
}

func TestRunnerStaticFailureLeavesStoreEmpty(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	runner := NewRunner(RunnerConfig{
		StaticDataPath:   clinicalCSV(t, 5),
		StaticCandidates: []string{CandidateLogistic},
		MinRows:          50,
	}, store, nil)

	_, err := runner.RunStatic(context.Background(), StaticRequest{})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = store.Load(features.PipelineStatic)
	assert.ErrorIs(t, err, artifact.ErrMissingArtifact)
}

type fixedSource struct {
	docs []records.Document
	got  records.Window
}

func (s *fixedSource) Fetch(ctx context.Context, w records.Window) ([]records.Document, error) {
	s.got = w
	return s.docs, nil
}

func TestRunnerHistory(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	at := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	var docs []records.Document
	for i := 0; i < 30; i++ {
		low := records.Document{
			Telemetry: records.Telemetry{HeartRate: f(55 + float64(i%5)), Status: "normal", CreatedAt: &at},
			Profile:   records.Profile{Age: f(30), Gender: "female", Conditions: []string{"asthma"}},
		}
		high := records.Document{
			Telemetry: records.Telemetry{HeartRate: f(120 + float64(i%5)), Status: "critical", CreatedAt: &at},
			Profile:   records.Profile{Age: f(65), Gender: "male", Conditions: []string{"hypertension"}},
		}
		docs = append(docs, low, high)
	}
	docs = append(docs, records.Document{Telemetry: records.Telemetry{Status: "normal"}})
	source := &fixedSource{docs: docs}

	store := artifact.NewStore(t.TempDir())
	runner := NewRunner(RunnerConfig{HistoryCandidates: []string{CandidateLogistic}}, store, source)

	res, err := runner.RunHistory(context.Background(), HistoryRequest{
		Window:      records.Window{Days: 30},
		LabelSource: records.LabelFromStatus,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, source.got.Days)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 60, res.Rows)

	loaded, err := store.Load(features.PipelineHistory)
	require.NoError(t, err)
	assert.Equal(t, []string{"critical", "normal"}, loaded.Schema.Labels.Labels())
	assert.Equal(t, []string{"asthma", "hypertension"}, loaded.Schema.Conditions)

	_, err = NewRunner(RunnerConfig{}, store, nil).RunHistory(context.Background(), HistoryRequest{})
	assert.Error(t, err)
}

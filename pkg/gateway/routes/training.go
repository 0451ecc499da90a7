package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/synaptica-ai/cardiorisk/pkg/artifact"
	"github.com/synaptica-ai/cardiorisk/pkg/common/models"
	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/training"
)

// TrainingJobs is implemented by training.Service.
type TrainingJobs interface {
	Create(ctx context.Context, req models.TrainingJobRequest) (models.TrainingJob, error)
	Get(ctx context.Context, id uuid.UUID) (models.TrainingJob, error)
	List(ctx context.Context, pipeline string, limit int) ([]models.TrainingJob, error)
	GetArtifact(ctx context.Context, id uuid.UUID) (training.JobArtifact, error)
}

// RunCatalog is implemented by artifact.Store.
type RunCatalog interface {
	Runs(pipeline string) ([]string, error)
	Latest(pipeline string) (string, error)
}

type TrainingHandler struct {
	jobs TrainingJobs
	runs RunCatalog
}

func NewTrainingHandler(jobs TrainingJobs, runs RunCatalog) *TrainingHandler {
	return &TrainingHandler{jobs: jobs, runs: runs}
}

func (h *TrainingHandler) Register(r *mux.Router) {
	r.HandleFunc("/training/jobs", h.handleCreateJob).Methods(http.MethodPost)
	r.HandleFunc("/training/jobs", h.handleListJobs).Methods(http.MethodGet)
	r.HandleFunc("/training/jobs/{id}", h.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/training/jobs/{id}/artifact", h.handleArtifact).Methods(http.MethodGet)
	r.HandleFunc("/training/runs/{pipeline}", h.handleRuns).Methods(http.MethodGet)
}

func (h *TrainingHandler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req models.TrainingJobRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	job, err := h.jobs.Create(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

func (h *TrainingHandler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, r, &training.ValidationError{Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	jobs, err := h.jobs.List(r.Context(), r.URL.Query().Get("pipeline"), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs, "count": len(jobs)})
}

func (h *TrainingHandler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (h *TrainingHandler) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	art, err := h.jobs.GetArtifact(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, art)
}

func (h *TrainingHandler) handleRuns(w http.ResponseWriter, r *http.Request) {
	pipeline := mux.Vars(r)["pipeline"]
	if pipeline != features.PipelineStatic && pipeline != features.PipelineHistory {
		respondError(w, r, &training.ValidationError{Message: "unknown pipeline " + strconv.Quote(pipeline)})
		return
	}
	runs, err := h.runs.Runs(pipeline)
	if err != nil {
		respondError(w, r, err)
		return
	}
	latest, err := h.runs.Latest(pipeline)
	if err != nil && !errors.Is(err, artifact.ErrMissingArtifact) {
		respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"pipeline": pipeline,
		"runs":     runs,
		"latest":   latest,
	})
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, &training.ValidationError{Message: "invalid job id"})
		return uuid.UUID{}, false
	}
	return id, true
}

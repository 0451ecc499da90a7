package routes

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/cardiorisk/pkg/common/models"
	"github.com/synaptica-ai/cardiorisk/pkg/records"
	"github.com/synaptica-ai/cardiorisk/pkg/serving"
)

// Diagnoser is implemented by serving.Service.
type Diagnoser interface {
	PredictStatic(ctx context.Context, userID string, in models.ClinicalInput) (serving.Diagnosis, error)
	PredictHistory(ctx context.Context, in models.TelemetryInput) (serving.Diagnosis, error)
	Analysis(ctx context.Context, userID string) (serving.Analysis, error)
	RecordHeartMetric(ctx context.Context, in models.HeartMetricInput) (*records.Telemetry, error)
}

// PredictionHistory is implemented by serving.Repository.
type PredictionHistory interface {
	Recent(ctx context.Context, pipeline string, limit int) ([]serving.PredictionLog, error)
}

type ServingHandler struct {
	svc  Diagnoser
	logs PredictionHistory
}

// NewServingHandler wires the prediction routes. logs may be nil, in which
// case the recent-predictions route is not registered.
func NewServingHandler(svc Diagnoser, logs PredictionHistory) *ServingHandler {
	return &ServingHandler{svc: svc, logs: logs}
}

func (h *ServingHandler) Register(r *mux.Router) {
	r.HandleFunc("/predict/static", h.handlePredictStatic).Methods(http.MethodPost)
	r.HandleFunc("/predict/history", h.handlePredictHistory).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/analysis", h.handleAnalysis).Methods(http.MethodGet)
	r.HandleFunc("/heart-metrics", h.handleHeartMetric).Methods(http.MethodPost)
	if h.logs != nil {
		r.HandleFunc("/predictions/recent", h.handleRecent).Methods(http.MethodGet)
	}
}

type staticRequest struct {
	UserID string `json:"user_id,omitempty"`
	models.ClinicalInput
}

func (h *ServingHandler) handlePredictStatic(w http.ResponseWriter, r *http.Request) {
	var req staticRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	d, err := h.svc.PredictStatic(r.Context(), req.UserID, req.ClinicalInput)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, serving.NewEnvelope(d))
}

func (h *ServingHandler) handlePredictHistory(w http.ResponseWriter, r *http.Request) {
	var req models.TelemetryInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	d, err := h.svc.PredictHistory(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, serving.NewEnvelope(d))
}

func (h *ServingHandler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Analysis(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "analysis": a})
}

func (h *ServingHandler) handleHeartMetric(w http.ResponseWriter, r *http.Request) {
	var req models.HeartMetricInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	stored, err := h.svc.RecordHeartMetric(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, stored)
}

func (h *ServingHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, r, &serving.ValidationError{Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	logs, err := h.logs.Recent(r.Context(), r.URL.Query().Get("pipeline"), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"predictions": logs, "count": len(logs)})
}

// RegisterHealth adds the liveness probe.
func RegisterHealth(r *mux.Router, service string) {
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": service})
	}).Methods(http.MethodGet)
}

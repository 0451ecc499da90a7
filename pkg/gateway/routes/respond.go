package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/synaptica-ai/cardiorisk/pkg/artifact"
	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
	"github.com/synaptica-ai/cardiorisk/pkg/common/models"
	"github.com/synaptica-ai/cardiorisk/pkg/features"
	"github.com/synaptica-ai/cardiorisk/pkg/serving"
	"github.com/synaptica-ai/cardiorisk/pkg/training"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}

// respondError maps domain errors onto status codes.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		trainingInvalid *training.ValidationError
		servingInvalid  *serving.ValidationError
		missing         *artifact.MissingArtifactError
		tooLarge        *http.MaxBytesError
	)
	body := models.ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &missing):
		status = http.StatusNotFound
		body = models.ErrorResponse{Error: "Model file not found", Path: missing.Path}
	case errors.As(err, &trainingInvalid), errors.As(err, &servingInvalid):
		status = http.StatusBadRequest
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, training.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, training.ErrJobNotComplete):
		status = http.StatusConflict
	case errors.Is(err, features.ErrUnknownCategory),
		errors.Is(err, features.ErrMissingField),
		errors.Is(err, training.ErrInsufficientData):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, serving.ErrNoTelemetry):
		status = http.StatusServiceUnavailable
	}

	entry := logger.Log.WithError(err).WithFields(map[string]interface{}{
		"path":       r.URL.Path,
		"status":     status,
		"request_id": r.Header.Get("X-Request-ID"),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	respondJSON(w, status, body)
}

// decodeJSON rejects unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return &serving.ValidationError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}

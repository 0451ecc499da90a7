// Package metrics exposes training and serving counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	trainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardiorisk_training_runs_total",
			Help: "Training runs by pipeline and outcome.",
		},
		[]string{"pipeline", "status"},
	)

	trainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardiorisk_training_duration_seconds",
			Help:    "Wall time of completed training runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"pipeline"},
	)

	candidateScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardiorisk_candidate_score",
			Help: "Latest evaluation score of each candidate classifier.",
		},
		[]string{"pipeline", "candidate", "metric"},
	)

	predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardiorisk_predictions_total",
			Help: "Predictions served by pipeline and predicted label.",
		},
		[]string{"pipeline", "label"},
	)

	predictionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardiorisk_prediction_errors_total",
			Help: "Failed predictions by pipeline and reason.",
		},
		[]string{"pipeline", "reason"},
	)

	predictionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardiorisk_prediction_duration_seconds",
			Help:    "Latency of single-record predictions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardiorisk_http_requests_total",
			Help: "HTTP requests by route and status code.",
		},
		[]string{"route", "method", "status"},
	)
)

func ObserveTraining(pipeline, status string, elapsed time.Duration) {
	trainingRuns.WithLabelValues(pipeline, status).Inc()
	if status == "completed" {
		trainingDuration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
	}
}

func ObserveCandidate(pipeline, candidate string, cvMacroF1, testAccuracy float64) {
	candidateScore.WithLabelValues(pipeline, candidate, "cv_macro_f1").Set(cvMacroF1)
	candidateScore.WithLabelValues(pipeline, candidate, "test_accuracy").Set(testAccuracy)
}

func ObservePrediction(pipeline, label string, elapsed time.Duration) {
	predictions.WithLabelValues(pipeline, label).Inc()
	predictionLatency.WithLabelValues(pipeline).Observe(elapsed.Seconds())
}

func ObservePredictionError(pipeline, reason string) {
	predictionErrors.WithLabelValues(pipeline, reason).Inc()
}

func ObserveHTTP(route, method string, status int) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

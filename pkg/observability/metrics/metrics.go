package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/synaptica-ai/healthrisk/pkg/common/models"
)

// Prediction outcomes.
const (
	OutcomeSuccess        = "success"
	OutcomeInvalid        = "invalid"
	OutcomeSchemaMismatch = "schema_mismatch"
	OutcomeInference      = "inference_failed"
	OutcomeUnavailable    = "unavailable"
	OutcomeTimeout        = "timeout"
	OutcomeCanceled       = "canceled"
)

var (
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthrisk_predictions_total",
			Help: "Prediction requests by outcome",
		},
		[]string{"outcome"},
	)

	PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthrisk_prediction_duration_seconds",
			Help:    "Time spent scoring one profile",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	RiskPercent = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthrisk_risk_percent",
			Help:    "Distribution of returned risk percentages",
			Buckets: []float64{5, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"category"},
	)

	ArtifactReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthrisk_artifact_reloads_total",
			Help: "Artifact bundle reload attempts by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	ActiveBundle = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "healthrisk_artifact_bundle_info",
			Help: "Set to 1 for the active artifact bundle",
		},
		[]string{"version", "checksum"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthrisk_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(PredictionsTotal)
		prometheus.MustRegister(PredictionDuration)
		prometheus.MustRegister(RiskPercent)
		prometheus.MustRegister(ArtifactReloads)
		prometheus.MustRegister(ActiveBundle)
		prometheus.MustRegister(RateLimited)
	})
}

// ObservePrediction records one finished prediction. card is nil on failure.
func ObservePrediction(outcome string, elapsed time.Duration, card models.RiskScorecard) {
	PredictionsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSuccess {
		return
	}
	PredictionDuration.Observe(elapsed.Seconds())
	for _, score := range card {
		RiskPercent.WithLabelValues(score.Category).Observe(score.Percent)
	}
}

// ObserveReload records a reload attempt and, on success, moves the active
// bundle marker.
func ObserveReload(trigger string, err error, active models.BundleInfo, previous *models.BundleInfo) {
	if err != nil {
		ArtifactReloads.WithLabelValues(trigger, "rejected").Inc()
		return
	}
	ArtifactReloads.WithLabelValues(trigger, "activated").Inc()
	if previous != nil {
		ActiveBundle.DeleteLabelValues(previous.Version, previous.Checksum)
	}
	ActiveBundle.WithLabelValues(active.Version, active.Checksum).Set(1)
}

func ObserveRateLimited() {
	RateLimited.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

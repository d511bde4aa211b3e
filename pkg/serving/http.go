package serving

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/healthrisk/pkg/common/logger"
	"github.com/synaptica-ai/healthrisk/pkg/common/models"
	"github.com/synaptica-ai/healthrisk/pkg/gateway/middleware"
	"github.com/synaptica-ai/healthrisk/pkg/observability/metrics"
	"github.com/synaptica-ai/healthrisk/pkg/serving/predictor"
)

// Service exposes the active bundle over HTTP.
type Service struct {
	predictor      *predictor.Predictor
	releases       ReleaseStore
	predictTimeout time.Duration
}

// NewService builds the HTTP surface. releases may be nil when the release
// audit is disabled.
func NewService(p *predictor.Predictor, releases ReleaseStore, predictTimeout time.Duration) *Service {
	return &Service{predictor: p, releases: releases, predictTimeout: predictTimeout}
}

func (s *Service) Routes(router *mux.Router) {
	router.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/predict", s.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/models", s.handleListModels).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/models/releases", s.handleListReleases).Methods(http.MethodGet)
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	bundle := s.predictor.Current()
	if bundle == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"version": bundle.Info.Version,
	})
}

func (s *Service) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.ObservePrediction(metrics.OutcomeInvalid, time.Since(start), nil)
			middleware.WriteError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", nil)
			return
		}
		s.fail(w, r, start, models.NewValidationError(err))
		return
	}
	profile, err := req.ToProfile()
	if err != nil {
		s.fail(w, r, start, err)
		return
	}

	// Scores and model_version must come from the same bundle.
	bundle := s.predictor.Current()
	if bundle == nil {
		s.fail(w, r, start, predictor.ErrNotReady)
		return
	}
	card, err := s.predictWithin(r.Context(), bundle, profile)
	if err != nil {
		s.fail(w, r, start, err)
		return
	}

	latency := time.Since(start)
	metrics.ObservePrediction(metrics.OutcomeSuccess, latency, card)

	resp := models.PredictionResponse{
		RequestID:    middleware.RequestID(r.Context()),
		ModelVersion: bundle.Info.Version,
		Risks:        card,
		Latency:      latency,
	}

	logger.WithFields(logrus.Fields{
		"request_id":    resp.RequestID,
		"model_version": resp.ModelVersion,
		"latency_ms":    float64(latency.Microseconds()) / 1000.0,
	}).Info("Prediction completed")

	writeJSON(w, http.StatusOK, resp)
}

type prediction struct {
	card models.RiskScorecard
	err  error
}

// predictWithin bounds a prediction by predictTimeout and the request context.
// A late result is dropped.
func (s *Service) predictWithin(ctx context.Context, bundle *predictor.Bundle, profile models.HealthProfile) (models.RiskScorecard, error) {
	if s.predictTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.predictTimeout)
		defer cancel()
	}

	done := make(chan prediction, 1)
	go func() {
		card, err := bundle.Predict(profile)
		done <- prediction{card: card, err: err}
	}()

	select {
	case res := <-done:
		return res.card, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fail maps pipeline errors to responses. Nothing here ever substitutes a
// score for a failure.
func (s *Service) fail(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	log := logger.WithError(err).WithField("request_id", middleware.RequestID(r.Context()))

	var ve models.ValidationError
	switch {
	case errors.As(err, &ve):
		metrics.ObservePrediction(metrics.OutcomeInvalid, time.Since(start), nil)
		log.Debug("Rejected invalid profile")
		var details interface{}
		if len(ve.Fields) > 0 {
			details = ve.Fields
		}
		middleware.WriteError(w, r, http.StatusUnprocessableEntity, "invalid_request", ve.Error(), details)
	case errors.Is(err, predictor.ErrNotReady):
		metrics.ObservePrediction(metrics.OutcomeUnavailable, time.Since(start), nil)
		log.Warn("Prediction requested before any bundle was loaded")
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "not_ready", "no model bundle loaded", nil)
	case errors.Is(err, context.DeadlineExceeded):
		metrics.ObservePrediction(metrics.OutcomeTimeout, time.Since(start), nil)
		log.Warn("Prediction timed out")
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "timeout", "prediction timed out", nil)
	case errors.Is(err, context.Canceled):
		metrics.ObservePrediction(metrics.OutcomeCanceled, time.Since(start), nil)
		log.Debug("Client went away before the prediction finished")
	case predictor.IsSchemaMismatch(err):
		metrics.ObservePrediction(metrics.OutcomeSchemaMismatch, time.Since(start), nil)
		log.Error("Artifact schema mismatch")
		middleware.WriteError(w, r, http.StatusInternalServerError, "schema_mismatch", "model artifacts are inconsistent", nil)
	case predictor.IsInferenceError(err):
		metrics.ObservePrediction(metrics.OutcomeInference, time.Since(start), nil)
		log.Error("Model inference failed")
		var ie predictor.InferenceError
		errors.As(err, &ie)
		middleware.WriteError(w, r, http.StatusInternalServerError, "inference_failed", "model inference failed",
			map[string]string{"category": ie.Category})
	default:
		metrics.ObservePrediction(metrics.OutcomeInference, time.Since(start), nil)
		log.Error("Prediction failed")
		middleware.WriteError(w, r, http.StatusInternalServerError, "internal", "internal server error", nil)
	}
}

func (s *Service) handleListModels(w http.ResponseWriter, r *http.Request) {
	bundle := s.predictor.Current()
	if bundle == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "not_ready", "no model bundle loaded", nil)
		return
	}
	writeJSON(w, http.StatusOK, bundle.Info)
}

func (s *Service) handleListReleases(w http.ResponseWriter, r *http.Request) {
	if s.releases == nil {
		middleware.WriteError(w, r, http.StatusNotFound, "audit_disabled", "release audit is not enabled", nil)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			middleware.WriteError(w, r, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 500", nil)
			return
		}
		limit = n
	}
	releases, err := s.releases.Recent(r.Context(), limit)
	if err != nil {
		logger.WithError(err).Error("Failed to list artifact releases")
		middleware.WriteError(w, r, http.StatusInternalServerError, "internal", "failed to list releases", nil)
		return
	}
	writeJSON(w, http.StatusOK, releases)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("Failed to write response")
	}
}

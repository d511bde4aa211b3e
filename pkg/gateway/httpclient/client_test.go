package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	cause := errors.New("bad request")
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return permanent(cause)
	})
	if !errors.Is(err, cause) || calls != 1 {
		t.Fatalf("expected one call returning the cause, got %d calls / %v", calls, err)
	}
}

func TestRetryBacksOff(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got %d calls / %v", calls, err)
	}
}

func TestPredictRetriesUnavailable(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"no model bundle loaded","code":"not_ready"}`))
			return
		}
		_, _ = w.Write([]byte(`{"model_version":"v2","predicted_risks_percent":{"liver":12.34}}`))
	}))
	defer srv.Close()

	c := NewRiskClient(srv.URL+"/", time.Second)
	c.delay = time.Millisecond
	resp, err := c.Predict(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if v, _ := resp.Risks.Get("liver"); v != 12.34 || resp.ModelVersion != "v2" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits.Load())
	}
}

func TestPredictDoesNotRetryValidationErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"invalid health profile","code":"invalid_request"}`))
	}))
	defer srv.Close()

	_, err := NewRiskClient(srv.URL, time.Second).Predict(context.Background(), []byte(`{}`))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity || apiErr.Body.Code != "invalid_request" {
		t.Fatalf("expected 422 APIError, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("validation failures must not be retried, got %d attempts", hits.Load())
	}
}

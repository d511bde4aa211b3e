package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/healthrisk/pkg/common/models"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(RequestID(r.Context())))
	})
}

func TestLoggingAssignsRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	Logging(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	id := rec.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("expected a generated request id")
	}
	if rec.Body.String() != id {
		t.Fatalf("handler saw request id %q, response header %q", rec.Body.String(), id)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	Logging(okHandler()).ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("incoming request id should be kept, got %q", rec.Header().Get(RequestIDHeader))
	}
}

func TestRecoveryReturnsJSON500(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := httptest.NewRecorder()
	Recovery(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "internal" {
		t.Fatalf("unexpected error code %q", body.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	CORS([]string{"*"})(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing Access-Control-Allow-Origin")
	}
}

func TestBodyLimit(t *testing.T) {
	reader := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	body := `{"pad":"` + strings.Repeat("x", 200) + `"}`
	rec := httptest.NewRecorder()
	BodyLimit(64)(reader).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(2, 2)
	now := time.Unix(1700000000, 0)
	tb.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := tb.Allow(ctx, "10.0.0.1"); !ok {
			t.Fatalf("request %d should fit the burst", i)
		}
	}
	if ok, _ := tb.Allow(ctx, "10.0.0.1"); ok {
		t.Fatal("third request should be limited")
	}
	if ok, _ := tb.Allow(ctx, "10.0.0.2"); !ok {
		t.Fatal("other clients have their own bucket")
	}

	now = now.Add(500 * time.Millisecond)
	if ok, _ := tb.Allow(ctx, "10.0.0.1"); !ok {
		t.Fatal("half a second at 2 rps should refill one token")
	}
}

func TestTokenBucketEvictsIdleBuckets(t *testing.T) {
	tb := NewTokenBucket(2, 2)
	now := time.Unix(1700000000, 0)
	tb.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_, _ = tb.Allow(ctx, fmt.Sprintf("10.1.%d.%d", i/256, i%256))
	}
	if len(tb.buckets) != 1000 {
		t.Fatalf("expected 1000 buckets, got %d", len(tb.buckets))
	}

	now = now.Add(500 * time.Millisecond)
	for i := 0; i < 2; i++ {
		_, _ = tb.Allow(ctx, "10.0.0.1")
	}

	// Full refill takes burst/rps = 1s; the sprayed keys are now idle that long.
	now = now.Add(600 * time.Millisecond)
	if ok, _ := tb.Allow(ctx, "10.0.0.2"); !ok {
		t.Fatal("new client should be allowed")
	}
	if len(tb.buckets) != 2 {
		t.Fatalf("expected idle buckets to be evicted, %d retained", len(tb.buckets))
	}

	// The drained bucket was kept: 0.6s at 2 rps refilled one token only.
	if ok, _ := tb.Allow(ctx, "10.0.0.1"); !ok {
		t.Fatal("refilled token should be available")
	}
	if ok, _ := tb.Allow(ctx, "10.0.0.1"); ok {
		t.Fatal("recently drained bucket must not be reset to full")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimit(NewTokenBucket(1, 1))(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/predict", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/predict", nil))

	if first.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("limited response should carry Retry-After")
	}
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	allowed, err := NewRedisLimiter(client, "healthrisk:ratelimit", 10).Allow(context.Background(), "10.0.0.1")
	if err == nil {
		t.Fatal("expected a connection error")
	}
	if !allowed {
		t.Fatal("limiter must allow requests when Redis is down")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:51234"
	if got := ClientKey(req); got != "192.168.1.7" {
		t.Fatalf("expected host only, got %q", got)
	}
}

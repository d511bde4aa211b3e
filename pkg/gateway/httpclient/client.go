package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/synaptica-ai/healthrisk/pkg/common/models"
)

// New creates an HTTP client tuned for outbound service-to-service communication.
func New(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// APIError is a non-2xx answer from the serving API.
type APIError struct {
	Status int
	Body   models.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.Code != "" {
		return fmt.Sprintf("serving api %d %s: %s", e.Status, e.Body.Code, e.Body.Error)
	}
	return fmt.Sprintf("serving api %d", e.Status)
}

// RiskClient calls a running serving-service.
type RiskClient struct {
	baseURL  string
	http     *http.Client
	attempts int
	delay    time.Duration
}

func NewRiskClient(baseURL string, timeout time.Duration) *RiskClient {
	return &RiskClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     New(timeout),
		attempts: 3,
		delay:    200 * time.Millisecond,
	}
}

// Predict posts a raw profile document and returns the scorecard.
func (c *RiskClient) Predict(ctx context.Context, profile []byte) (*models.PredictionResponse, error) {
	var resp models.PredictionResponse
	err := Retry(ctx, c.attempts, c.delay, func() error {
		return c.do(ctx, http.MethodPost, "/api/v1/predict", profile, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Models returns the active bundle description.
func (c *RiskClient) Models(ctx context.Context) (*models.BundleInfo, error) {
	var info models.BundleInfo
	err := Retry(ctx, c.attempts, c.delay, func() error {
		return c.do(ctx, http.MethodGet, "/api/v1/models", nil, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *RiskClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return permanent(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		if IsRetriable(err) {
			return err
		}
		return permanent(err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		apiErr := &APIError{Status: res.StatusCode}
		_ = json.NewDecoder(res.Body).Decode(&apiErr.Body)
		if res.StatusCode == http.StatusServiceUnavailable || res.StatusCode == http.StatusTooManyRequests {
			return apiErr
		}
		return permanent(apiErr)
	}
	return permanent(json.NewDecoder(res.Body).Decode(out))
}

// permanentError stops Retry early.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry executes fn with simple exponential backoff retry semantics. Errors
// marked permanent are returned immediately, unwrapped.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		var p permanentError
		if errors.As(err, &p) {
			return p.err
		}

		// Do not sleep after last attempt
		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		// exponential backoff with cap
		delay *= 2
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}
	}

	return err
}

// IsRetriable determines if the error is worth retrying.
func IsRetriable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/synaptica-ai/healthrisk/pkg/common/models"
)

func TestObservePrediction(t *testing.T) {
	before := testutil.ToFloat64(PredictionsTotal.WithLabelValues(OutcomeSuccess))
	card := models.RiskScorecard{
		{Category: models.CategoryLiver, Percent: 42.5},
	}
	ObservePrediction(OutcomeSuccess, 3*time.Millisecond, card)
	ObservePrediction(OutcomeInvalid, time.Millisecond, nil)

	if got := testutil.ToFloat64(PredictionsTotal.WithLabelValues(OutcomeSuccess)); got != before+1 {
		t.Fatalf("expected success counter %v, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(PredictionsTotal.WithLabelValues(OutcomeInvalid)); got < 1 {
		t.Fatalf("invalid outcome not counted: %v", got)
	}
}

func TestObserveReloadMovesActiveMarker(t *testing.T) {
	first := models.BundleInfo{Version: "v1", Checksum: "aaa"}
	second := models.BundleInfo{Version: "v2", Checksum: "bbb"}

	ObserveReload("startup", nil, first, nil)
	ObserveReload("watch", nil, second, &first)
	ObserveReload("watch", errors.New("bad manifest"), models.BundleInfo{}, nil)

	if got := testutil.ToFloat64(ActiveBundle.WithLabelValues("v2", "bbb")); got != 1 {
		t.Fatalf("expected v2 active, got %v", got)
	}
	if got := testutil.ToFloat64(ArtifactReloads.WithLabelValues("watch", "rejected")); got != 1 {
		t.Fatalf("expected one rejected reload, got %v", got)
	}
	if n := testutil.CollectAndCount(ActiveBundle); n != 1 {
		t.Fatalf("only the active bundle should be exported, got %d series", n)
	}
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	Init()
	Init()
	ObserveRateLimited()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthrisk_rate_limited_total") {
		t.Fatal("rate limit counter missing from exposition")
	}
}

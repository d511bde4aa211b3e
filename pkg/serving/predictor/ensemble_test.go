package predictor

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/synaptica-ai/healthrisk/pkg/common/models"
)

func TestNewEnsembleValidation(t *testing.T) {
	stub := &stubModel{}
	tests := []struct {
		name    string
		members []Member
	}{
		{name: "empty", members: nil},
		{name: "no category", members: []Member{{Model: stub}}},
		{name: "no model", members: []Member{{Category: "liver"}}},
		{name: "duplicate", members: []Member{{Category: "liver", Model: stub}, {Category: "liver", Model: stub}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEnsemble(tt.members...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestScoreAllFeedsIdenticalVector(t *testing.T) {
	ens, stubs := fiveStubEnsemble(t, 0.1, 0.2, 0.3, 0.4, 0.5)
	features := FeatureVector{0.5, -1.25, 3}

	scores, err := ens.ScoreAll(features)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores) != len(models.RiskCategories) {
		t.Fatalf("expected %d scores, got %d", len(models.RiskCategories), len(scores))
	}
	for i, stub := range stubs {
		if len(stub.rows) != 1 {
			t.Fatalf("model %d called %d times", i, len(stub.rows))
		}
		if !reflect.DeepEqual(stub.rows[0], []float64(features)) {
			t.Fatalf("model %d saw %v, want %v", i, stub.rows[0], features)
		}
		if scores[i].Category != models.RiskCategories[i] {
			t.Fatalf("score %d category %s, want %s", i, scores[i].Category, models.RiskCategories[i])
		}
	}
	if scores[3].Value != 0.4 {
		t.Fatalf("expected liver raw 0.4, got %v", scores[3].Value)
	}
}

func TestScoreAllFailsAtomically(t *testing.T) {
	modelErr := errors.New("numeric overflow")
	tests := []struct {
		name  string
		model *stubModel
	}{
		{name: "model error", model: &stubModel{err: modelErr}},
		{name: "nan output", model: &stubModel{value: math.NaN()}},
		{name: "inf output", model: &stubModel{value: math.Inf(1)}},
		{name: "panic", model: &stubModel{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ens, err := NewEnsemble(
				Member{Category: models.CategoryCardiovascular, Model: &stubModel{value: 0.3}},
				Member{Category: models.CategoryRespiratory, Model: tt.model},
			)
			if err != nil {
				t.Fatalf("ensemble: %v", err)
			}
			scores, err := ens.ScoreAll(FeatureVector{1, 2})
			if scores != nil {
				t.Fatalf("partial scores returned: %v", scores)
			}
			if !errors.Is(err, ErrInference) {
				t.Fatalf("expected inference error, got %v", err)
			}
			var ie InferenceError
			if !errors.As(err, &ie) || ie.Category != models.CategoryRespiratory {
				t.Fatalf("expected failure attributed to respiratory, got %v", err)
			}
		})
	}
}

func TestInferenceErrorKeepsCause(t *testing.T) {
	cause := errors.New("bad dimensionality")
	err := error(InferenceError{Category: "liver", Err: cause})
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable through errors.Is")
	}
	if !IsInferenceError(err) {
		t.Fatal("IsInferenceError should recognise the error")
	}
}

func TestFormatClipsAndRounds(t *testing.T) {
	raw := RawScores{
		{Category: models.CategoryCardiovascular, Value: 1.5},
		{Category: models.CategoryMetabolic, Value: -0.3},
		{Category: models.CategoryRespiratory, Value: 0.123456},
		{Category: models.CategoryLiver, Value: 0.98765},
		{Category: models.CategoryNutritional, Value: 1},
	}
	card := Format(raw)
	want := []float64{100, 0, 12.35, 98.77, 100}
	for i, score := range card {
		if score.Category != raw[i].Category {
			t.Fatalf("category order changed: %v", card.Categories())
		}
		if score.Percent != want[i] {
			t.Fatalf("%s: expected %v, got %v", score.Category, want[i], score.Percent)
		}
	}
}

func TestToPercentRoundsHalfToEven(t *testing.T) {
	cases := []struct {
		value float64
		want  float64
	}{
		{0.00125, 0.12},
		{0.00375, 0.38},
		{0.00625, 0.62},
		// 12.345 is stored just above the tie.
		{0.12345, 12.35},
		{0.00285, 0.29},
		{0.99995, 100},
	}
	for _, tc := range cases {
		if got := toPercent(tc.value); got != tc.want {
			t.Fatalf("toPercent(%v): expected %v, got %v", tc.value, tc.want, got)
		}
	}
}

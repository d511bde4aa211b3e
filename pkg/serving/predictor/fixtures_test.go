package predictor

import (
	"errors"
	"sync"
	"testing"

	"github.com/synaptica-ai/healthrisk/pkg/common/models"
)

var trainingColumns = []string{
	models.ColumnAge,
	models.ColumnGender,
	models.ColumnHeight,
	models.ColumnWeight,
	models.ColumnBMI,
	models.ColumnSmokingStatus,
	models.ColumnAlcoholUse,
	models.ColumnActivityLevel,
	models.ColumnSleepHours,
	models.ColumnFruitVegIntake,
	models.ColumnExistingConditions,
	models.ColumnFamilyHeart,
	models.ColumnFamilyDiabetes,
	models.ColumnBPSystolic,
	models.ColumnBPDiastolic,
	models.ColumnFastingGlucose,
	models.ColumnCholesterol,
}

var fittedLabels = map[string][]string{
	models.ColumnGender:             {"female", "male"},
	models.ColumnSmokingStatus:      {"current", "former", "never"},
	models.ColumnAlcoholUse:         {"heavy", "none", "occasional", "regular"},
	models.ColumnActivityLevel:      {"high", "low", "moderate"},
	models.ColumnExistingConditions: {"asthma", "copd", "diabetes", "hypertension", "none"},
}

func mustEncoders(t *testing.T) map[string]*LabelEncoder {
	t.Helper()
	out := make(map[string]*LabelEncoder, len(fittedLabels))
	for col, labels := range fittedLabels {
		enc, err := NewLabelEncoder(labels)
		if err != nil {
			t.Fatalf("encoder %s: %v", col, err)
		}
		out[col] = enc
	}
	return out
}

func identityScaler(t *testing.T, width int) *StandardScaler {
	t.Helper()
	mean := make([]float64, width)
	scale := make([]float64, width)
	for i := range scale {
		scale[i] = 1
	}
	s, err := NewStandardScaler(mean, scale)
	if err != nil {
		t.Fatalf("scaler: %v", err)
	}
	return s
}

// testSchema leaves features unscaled so assertions can read raw values.
func testSchema(t *testing.T) *Schema {
	t.Helper()
	return NewSchema(trainingColumns, mustEncoders(t), identityScaler(t, len(trainingColumns)))
}

func strPtr(s string) *string { return &s }

func highRiskProfile() models.HealthProfile {
	return models.HealthProfile{
		Age:                       45,
		Gender:                    "male",
		HeightCm:                  175,
		WeightKg:                  90,
		BMI:                       29.4,
		SmokingStatus:             "current",
		AlcoholUse:                "regular",
		ActivityLevel:             "low",
		SleepHours:                5,
		FruitVegIntake:            1,
		ExistingConditions:        strPtr("hypertension"),
		FamilyHistoryHeartDisease: true,
		FamilyHistoryDiabetes:     false,
		BPSystolic:                150,
		BPDiastolic:               95,
		FastingGlucose:            130,
		Cholesterol:               240,
	}
}

// stubModel returns a fixed value and records the rows it saw.
type stubModel struct {
	value float64
	err   error
	panic bool

	mu   sync.Mutex
	rows [][]float64
}

func (m *stubModel) Infer(features []float64) (float64, error) {
	m.mu.Lock()
	row := make([]float64, len(features))
	copy(row, features)
	m.rows = append(m.rows, row)
	m.mu.Unlock()
	if m.panic {
		panic("boom")
	}
	return m.value, m.err
}

// sumModel scores a weighted sum of its features.
type sumModel struct {
	weights []float64
}

func (m sumModel) Infer(features []float64) (float64, error) {
	if len(features) != len(m.weights) {
		return 0, errors.New("width mismatch")
	}
	var total float64
	for i, w := range m.weights {
		total += w * features[i]
	}
	return total, nil
}

func fiveStubEnsemble(t *testing.T, values ...float64) (*Ensemble, []*stubModel) {
	t.Helper()
	stubs := make([]*stubModel, len(models.RiskCategories))
	members := make([]Member, len(models.RiskCategories))
	for i, category := range models.RiskCategories {
		v := 0.5
		if i < len(values) {
			v = values[i]
		}
		stubs[i] = &stubModel{value: v}
		members[i] = Member{Category: category, Model: stubs[i]}
	}
	ens, err := NewEnsemble(members...)
	if err != nil {
		t.Fatalf("ensemble: %v", err)
	}
	return ens, stubs
}

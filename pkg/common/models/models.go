package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Risk categories scored by every deployed ensemble, in response order.
const (
	CategoryCardiovascular = "cardiovascular"
	CategoryMetabolic      = "metabolic"
	CategoryRespiratory    = "respiratory"
	CategoryLiver          = "liver"
	CategoryNutritional    = "nutritional"
)

var RiskCategories = []string{
	CategoryCardiovascular,
	CategoryMetabolic,
	CategoryRespiratory,
	CategoryLiver,
	CategoryNutritional,
}

// Training column names. They double as the JSON field names of the request.
const (
	ColumnAge                = "Age"
	ColumnGender             = "Gender"
	ColumnHeight             = "Height_cm"
	ColumnWeight             = "Weight_kg"
	ColumnBMI                = "BMI"
	ColumnSmokingStatus      = "SmokingStatus"
	ColumnAlcoholUse         = "AlcoholUse"
	ColumnActivityLevel      = "ActivityLevel"
	ColumnSleepHours         = "SleepHours"
	ColumnFruitVegIntake     = "FruitVegIntake"
	ColumnExistingConditions = "ExistingConditions"
	ColumnFamilyHeart        = "FamilyHistory_HeartDisease"
	ColumnFamilyDiabetes     = "FamilyHistory_Diabetes"
	ColumnBPSystolic         = "BP_Systolic"
	ColumnBPDiastolic        = "BP_Diastolic"
	ColumnFastingGlucose     = "FastingGlucose"
	ColumnCholesterol        = "Cholesterol"
)

// CategoricalColumns lists the label-encoded inputs.
var CategoricalColumns = []string{
	ColumnGender,
	ColumnSmokingStatus,
	ColumnAlcoholUse,
	ColumnActivityLevel,
	ColumnExistingConditions,
}

// NoneLabel stands in for an omitted optional category.
const NoneLabel = "none"

// HealthProfile is a validated scoring request. Categorical values are
// members of their enumerations by the time a profile is constructed.
type HealthProfile struct {
	Age                       float64
	Gender                    string
	HeightCm                  float64
	WeightKg                  float64
	BMI                       float64
	SmokingStatus             string
	AlcoholUse                string
	ActivityLevel             string
	SleepHours                float64
	FruitVegIntake            float64
	ExistingConditions        *string
	FamilyHistoryHeartDisease bool
	FamilyHistoryDiabetes     bool
	BPSystolic                float64
	BPDiastolic               float64
	FastingGlucose            float64
	Cholesterol               float64
}

// NumericFields returns the numeric and boolean inputs keyed by training
// column name. Booleans map to 1 and 0.
func (p HealthProfile) NumericFields() map[string]float64 {
	return map[string]float64{
		ColumnAge:            p.Age,
		ColumnHeight:         p.HeightCm,
		ColumnWeight:         p.WeightKg,
		ColumnBMI:            p.BMI,
		ColumnSleepHours:     p.SleepHours,
		ColumnFruitVegIntake: p.FruitVegIntake,
		ColumnFamilyHeart:    boolToFloat(p.FamilyHistoryHeartDisease),
		ColumnFamilyDiabetes: boolToFloat(p.FamilyHistoryDiabetes),
		ColumnBPSystolic:     p.BPSystolic,
		ColumnBPDiastolic:    p.BPDiastolic,
		ColumnFastingGlucose: p.FastingGlucose,
		ColumnCholesterol:    p.Cholesterol,
	}
}

// CategoricalFields returns the raw categorical labels keyed by training
// column name. An absent optional field is omitted rather than blanked.
func (p HealthProfile) CategoricalFields() map[string]string {
	fields := map[string]string{
		ColumnGender:        p.Gender,
		ColumnSmokingStatus: p.SmokingStatus,
		ColumnAlcoholUse:    p.AlcoholUse,
		ColumnActivityLevel: p.ActivityLevel,
	}
	if p.ExistingConditions != nil {
		fields[ColumnExistingConditions] = *p.ExistingConditions
	}
	return fields
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RiskScore is one category's bounded percentage.
type RiskScore struct {
	Category string
	Percent  float64
}

// RiskScorecard keeps category order stable in responses.
type RiskScorecard []RiskScore

// Get returns the percentage for category.
func (s RiskScorecard) Get(category string) (float64, bool) {
	for _, score := range s {
		if score.Category == category {
			return score.Percent, true
		}
	}
	return 0, false
}

// Categories returns the category names in scorecard order.
func (s RiskScorecard) Categories() []string {
	names := make([]string, len(s))
	for i, score := range s {
		names[i] = score.Category
	}
	return names
}

func (s RiskScorecard) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, score := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(score.Category)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(score.Percent)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of category percentages, keeping the order
// the keys appear in.
func (s *RiskScorecard) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("risk scorecard must be an object, got %v", tok)
	}
	out := RiskScorecard{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		category, _ := tok.(string)
		var percent float64
		if err := dec.Decode(&percent); err != nil {
			return fmt.Errorf("risk %s: %w", category, err)
		}
		out = append(out, RiskScore{Category: category, Percent: percent})
	}
	*s = out
	return nil
}

// PredictionResponse is the body returned by the predict endpoint.
type PredictionResponse struct {
	RequestID    string        `json:"request_id"`
	ModelVersion string        `json:"model_version"`
	Risks        RiskScorecard `json:"predicted_risks_percent"`
	Latency      time.Duration `json:"-"`
}

// ErrorResponse is the body returned for every failed request.
type ErrorResponse struct {
	Error     string      `json:"error"`
	Code      string      `json:"code"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ModelInfo describes one member of the active ensemble.
type ModelInfo struct {
	Category  string `json:"category"`
	Type      string `json:"type"`
	Algorithm string `json:"algorithm,omitempty"`
	Features  int    `json:"features"`
}

// BundleInfo describes the active artifact bundle.
type BundleInfo struct {
	Version  string      `json:"version"`
	Checksum string      `json:"checksum"`
	Columns  []string    `json:"columns"`
	Models   []ModelInfo `json:"models"`
	LoadedAt time.Time   `json:"loaded_at"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // artifacts.published, artifacts.loaded, artifacts.rejected
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

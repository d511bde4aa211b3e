package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var errInvalidProfile = errors.New("invalid health profile")

// ValidationError reports a request that failed its declared type,
// enumeration or range constraints. It never reaches the scoring pipeline.
type ValidationError struct {
	reason error
	Fields []FieldViolation
}

// FieldViolation names one failed constraint.
type FieldViolation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Param      string `json:"param,omitempty"`
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.reason.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Constraint)
	}
	return fmt.Sprintf("%s (%s)", e.reason.Error(), strings.Join(parts, ", "))
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// NewValidationError wraps reason, typically a decode failure.
func NewValidationError(reason error) ValidationError {
	return ValidationError{reason: fmt.Errorf("%w: %v", errInvalidProfile, reason)}
}

// PredictRequest is the wire form of a HealthProfile. Pointers distinguish
// an omitted field from a zero value.
type PredictRequest struct {
	Age                       *float64 `json:"Age" validate:"required,gte=1,lte=130"`
	Gender                    *string  `json:"Gender" validate:"required,oneof=male female"`
	HeightCm                  *float64 `json:"Height_cm" validate:"required,gte=1,lte=300"`
	WeightKg                  *float64 `json:"Weight_kg" validate:"required,gte=1,lte=500"`
	BMI                       *float64 `json:"BMI" validate:"required,gte=1,lte=100"`
	SmokingStatus             *string  `json:"SmokingStatus" validate:"required,oneof=never former occasional passive current current_light current_heavy"`
	AlcoholUse                *string  `json:"AlcoholUse" validate:"required,oneof=none occasional regular heavy"`
	ActivityLevel             *string  `json:"ActivityLevel" validate:"required,oneof=low moderate high"`
	SleepHours                *float64 `json:"SleepHours" validate:"required,gte=1,lte=24"`
	FruitVegIntake            *float64 `json:"FruitVegIntake" validate:"required,gte=0"`
	ExistingConditions        *string  `json:"ExistingConditions" validate:"omitempty,oneof=asthma copd hypertension diabetes chronic_kidney_disease none hepatitis hepatitis_b hepatitis_c"`
	FamilyHistoryHeartDisease *bool    `json:"FamilyHistory_HeartDisease" validate:"required"`
	FamilyHistoryDiabetes     *bool    `json:"FamilyHistory_Diabetes" validate:"required"`
	BPSystolic                *float64 `json:"BP_Systolic" validate:"required,gte=70,lte=250"`
	BPDiastolic               *float64 `json:"BP_Diastolic" validate:"required,gte=40,lte=150"`
	FastingGlucose            *float64 `json:"FastingGlucose" validate:"required,gte=50,lte=400"`
	Cholesterol               *float64 `json:"Cholesterol" validate:"required,gte=100,lte=500"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every declared constraint and reports all violations at once.
func (r PredictRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(err)
	}
	out := ValidationError{reason: errInvalidProfile}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldViolation{
			Field:      fe.Field(),
			Constraint: fe.Tag(),
			Param:      fe.Param(),
		})
	}
	return out
}

// ToProfile validates the request and converts it to a HealthProfile.
func (r PredictRequest) ToProfile() (HealthProfile, error) {
	if err := r.Validate(); err != nil {
		return HealthProfile{}, err
	}
	profile := HealthProfile{
		Age:                       *r.Age,
		Gender:                    *r.Gender,
		HeightCm:                  *r.HeightCm,
		WeightKg:                  *r.WeightKg,
		BMI:                       *r.BMI,
		SmokingStatus:             *r.SmokingStatus,
		AlcoholUse:                *r.AlcoholUse,
		ActivityLevel:             *r.ActivityLevel,
		SleepHours:                *r.SleepHours,
		FruitVegIntake:            *r.FruitVegIntake,
		FamilyHistoryHeartDisease: *r.FamilyHistoryHeartDisease,
		FamilyHistoryDiabetes:     *r.FamilyHistoryDiabetes,
		BPSystolic:                *r.BPSystolic,
		BPDiastolic:               *r.BPDiastolic,
		FastingGlucose:            *r.FastingGlucose,
		Cholesterol:               *r.Cholesterol,
	}
	if r.ExistingConditions != nil && *r.ExistingConditions != "" {
		condition := *r.ExistingConditions
		profile.ExistingConditions = &condition
	}
	return profile, nil
}

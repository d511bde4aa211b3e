package predictor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/synaptica-ai/healthrisk/pkg/common/models"
)

// TargetPrefix marks training label columns, which must never be features.
const TargetPrefix = "Risk_"

// LabelEncoder maps the labels seen at fit time to their integer codes. Codes
// are positions in the fitted label order.
type LabelEncoder struct {
	labels []string
	index  map[string]int
}

func NewLabelEncoder(labels []string) (*LabelEncoder, error) {
	if len(labels) == 0 {
		return nil, errors.New("label encoder has no labels")
	}
	enc := &LabelEncoder{
		labels: make([]string, len(labels)),
		index:  make(map[string]int, len(labels)),
	}
	for i, label := range labels {
		if _, dup := enc.index[label]; dup {
			return nil, fmt.Errorf("duplicate label %q", label)
		}
		enc.labels[i] = label
		enc.index[label] = i
	}
	return enc, nil
}

// Labels returns the fitted labels in code order.
func (e *LabelEncoder) Labels() []string {
	out := make([]string, len(e.labels))
	copy(out, e.labels)
	return out
}

// Fallback is the label substituted for values the encoder never saw.
func (e *LabelEncoder) Fallback() string {
	return e.labels[0]
}

// Transform returns the code for raw, using the fallback label's code for
// unseen values.
func (e *LabelEncoder) Transform(raw string) int {
	if code, ok := e.index[raw]; ok {
		return code
	}
	return e.index[e.Fallback()]
}

// StandardScaler holds per-column centring and scaling parameters.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("scaler has %d means but %d scales", len(mean), len(scale))
	}
	s := &StandardScaler{
		mean:  make([]float64, len(mean)),
		scale: make([]float64, len(scale)),
	}
	for i := range mean {
		if math.IsNaN(mean[i]) || math.IsInf(mean[i], 0) || math.IsNaN(scale[i]) || math.IsInf(scale[i], 0) {
			return nil, fmt.Errorf("scaler parameter %d is not finite", i)
		}
		s.mean[i] = mean[i]
		s.scale[i] = scale[i]
		// A constant column was fitted with zero variance.
		if s.scale[i] == 0 {
			s.scale[i] = 1
		}
	}
	return s, nil
}

// Width is the dimensionality the scaler was fitted on.
func (s *StandardScaler) Width() int {
	return len(s.mean)
}

// Schema is the training-time preprocessing contract: column order, fitted
// encoders and the fitted scaler. It is never modified after construction.
type Schema struct {
	columns  []string
	position map[string]int
	encoders map[string]*LabelEncoder
	scaler   *StandardScaler
}

// NewSchema copies its inputs. Consistency is checked by Validate and, for
// every request, by the pipeline stages themselves.
func NewSchema(columns []string, encoders map[string]*LabelEncoder, scaler *StandardScaler) *Schema {
	s := &Schema{
		columns:  make([]string, len(columns)),
		position: make(map[string]int, len(columns)),
		encoders: make(map[string]*LabelEncoder, len(encoders)),
		scaler:   scaler,
	}
	copy(s.columns, columns)
	for i, col := range columns {
		if _, seen := s.position[col]; !seen {
			s.position[col] = i
		}
	}
	for col, enc := range encoders {
		s.encoders[col] = enc
	}
	return s
}

func (s *Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

func (s *Schema) Width() int {
	return len(s.columns)
}

func (s *Schema) HasColumn(column string) bool {
	_, ok := s.position[column]
	return ok
}

func (s *Schema) Encoder(column string) (*LabelEncoder, bool) {
	enc, ok := s.encoders[column]
	return enc, ok
}

// Validate reports every inconsistency between columns, encoders and scaler.
func (s *Schema) Validate() error {
	var problems []string
	if len(s.columns) == 0 {
		problems = append(problems, "no feature columns")
	}
	seen := make(map[string]struct{}, len(s.columns))
	for i, col := range s.columns {
		if strings.TrimSpace(col) == "" {
			problems = append(problems, fmt.Sprintf("column %d has no name", i))
			continue
		}
		if _, dup := seen[col]; dup {
			problems = append(problems, fmt.Sprintf("column %q listed twice", col))
		}
		seen[col] = struct{}{}
		if strings.HasPrefix(col, TargetPrefix) {
			problems = append(problems, fmt.Sprintf("target column %q listed as a feature", col))
		}
	}
	for _, col := range models.CategoricalColumns {
		if _, ok := seen[col]; !ok {
			continue
		}
		if _, ok := s.encoders[col]; !ok {
			problems = append(problems, fmt.Sprintf("categorical column %q has no encoder", col))
		}
	}
	switch {
	case s.scaler == nil:
		problems = append(problems, "no scaler")
	case s.scaler.Width() != len(s.columns):
		problems = append(problems, fmt.Sprintf("scaler fitted on %d columns, schema has %d", s.scaler.Width(), len(s.columns)))
	}
	if len(problems) > 0 {
		return schemaMismatch("%s", strings.Join(problems, "; "))
	}
	return nil
}

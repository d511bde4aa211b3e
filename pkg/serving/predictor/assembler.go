package predictor

import (
	"strings"

	"github.com/synaptica-ai/healthrisk/pkg/common/models"
)

// FeatureVector is one row in schema column order.
type FeatureVector []float64

// Assemble builds the unscaled row for profile. Numeric inputs pass through,
// categorical inputs come from codes, and any other schema column defaults to
// zero. Inputs the schema does not list are dropped.
func (s *Schema) Assemble(profile models.HealthProfile, codes map[string]int) (FeatureVector, error) {
	if len(s.columns) == 0 {
		return nil, schemaMismatch("schema has no feature columns")
	}

	numeric := profile.NumericFields()
	categorical := make(map[string]struct{}, len(models.CategoricalColumns))
	for _, col := range models.CategoricalColumns {
		categorical[col] = struct{}{}
	}

	vector := make(FeatureVector, len(s.columns))
	for i, column := range s.columns {
		if strings.TrimSpace(column) == "" {
			return nil, schemaMismatch("column %d has no name", i)
		}
		if s.position[column] != i {
			return nil, schemaMismatch("column %q listed twice", column)
		}
		if code, ok := codes[column]; ok {
			vector[i] = float64(code)
			continue
		}
		// A raw label cannot stand in for its code.
		if _, ok := categorical[column]; ok {
			return nil, schemaMismatch("categorical column %q was not encoded", column)
		}
		if value, ok := numeric[column]; ok {
			vector[i] = value
			continue
		}
		vector[i] = 0
	}
	return vector, nil
}

package predictor

import "github.com/synaptica-ai/healthrisk/pkg/common/models"

// Encode maps a raw categorical value to the code fitted for column. Values
// the encoder never saw resolve to its fallback label.
func (s *Schema) Encode(column, raw string) (int, error) {
	enc, ok := s.encoders[column]
	if !ok {
		return 0, schemaMismatch("no encoder fitted for column %q", column)
	}
	return enc.Transform(raw), nil
}

// EncodeProfile encodes every categorical column the schema uses. An omitted
// optional field is looked up as the "none" label.
func (s *Schema) EncodeProfile(profile models.HealthProfile) (map[string]int, error) {
	raw := profile.CategoricalFields()
	codes := make(map[string]int, len(models.CategoricalColumns))
	for _, column := range models.CategoricalColumns {
		if !s.HasColumn(column) {
			continue
		}
		value, ok := raw[column]
		if !ok {
			value = models.NoneLabel
		}
		code, err := s.Encode(column, value)
		if err != nil {
			return nil, err
		}
		codes[column] = code
	}
	return codes, nil
}

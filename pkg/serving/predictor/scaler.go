package predictor

// Scale applies the fitted scaler to vector and returns a new vector.
func (s *Schema) Scale(vector FeatureVector) (FeatureVector, error) {
	if s.scaler == nil {
		return nil, schemaMismatch("schema has no fitted scaler")
	}
	if len(vector) != s.scaler.Width() {
		return nil, schemaMismatch("scaler fitted on %d columns, feature vector has %d", s.scaler.Width(), len(vector))
	}
	scaled := make(FeatureVector, len(vector))
	for i, value := range vector {
		scaled[i] = (value - s.scaler.mean[i]) / s.scaler.scale[i]
	}
	return scaled, nil
}

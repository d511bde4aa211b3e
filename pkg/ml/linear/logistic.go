package linear

import (
	"errors"
	"fmt"
	"math"
)

const (
	KindLogistic = "logistic"
	KindLinear   = "linear"
)

var ErrDimension = errors.New("feature dimension mismatch")

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

// Model is a fitted linear scorer. Logistic models squash the score with a
// sigmoid; linear models return it unbounded.
type Model struct {
	Kind    string
	Weights Weights
}

func NewModel(kind string, weights Weights) (*Model, error) {
	switch kind {
	case KindLogistic, KindLinear:
	default:
		return nil, fmt.Errorf("unsupported model type %q", kind)
	}
	if len(weights.Coefficients) == 0 {
		return nil, errors.New("model has no coefficients")
	}
	coeffs := make([]float64, len(weights.Coefficients))
	copy(coeffs, weights.Coefficients)
	return &Model{Kind: kind, Weights: Weights{Bias: weights.Bias, Coefficients: coeffs}}, nil
}

// Width is the number of features the model was fitted on.
func (m *Model) Width() int {
	return len(m.Weights.Coefficients)
}

func (m *Model) Infer(sample []float64) (float64, error) {
	if len(sample) != len(m.Weights.Coefficients) {
		return 0, fmt.Errorf("%w: model expects %d features, got %d", ErrDimension, len(m.Weights.Coefficients), len(sample))
	}
	score := dot(m.Weights.Coefficients, sample) + m.Weights.Bias
	if m.Kind == KindLogistic {
		return sigmoid(score), nil
	}
	return score, nil
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

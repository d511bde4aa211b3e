package predictor

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// RiskModel scores one scaled feature row. The output is the raw model value
// and may fall outside [0, 1].
type RiskModel interface {
	Infer(features []float64) (float64, error)
}

// Member binds a model to the risk category it predicts.
type Member struct {
	Category string
	Model    RiskModel
}

// Ensemble is a fixed, ordered set of independent per-category models.
type Ensemble struct {
	members []Member
}

func NewEnsemble(members ...Member) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, errors.New("ensemble has no models")
	}
	seen := make(map[string]struct{}, len(members))
	out := make([]Member, len(members))
	for i, m := range members {
		if m.Category == "" {
			return nil, fmt.Errorf("ensemble member %d has no category", i)
		}
		if m.Model == nil {
			return nil, fmt.Errorf("category %q has no model", m.Category)
		}
		if _, dup := seen[m.Category]; dup {
			return nil, fmt.Errorf("category %q bound twice", m.Category)
		}
		seen[m.Category] = struct{}{}
		out[i] = m
	}
	return &Ensemble{members: out}, nil
}

// Categories returns the category names in ensemble order.
func (e *Ensemble) Categories() []string {
	names := make([]string, len(e.members))
	for i, m := range e.members {
		names[i] = m.Category
	}
	return names
}

func (e *Ensemble) Len() int {
	return len(e.members)
}

// RawScore is an unbounded model output for one category.
type RawScore struct {
	Category string
	Value    float64
}

type RawScores []RawScore

// ScoreAll runs every member on the same features concurrently. Any single
// failure fails the whole call; no partial result is returned.
func (e *Ensemble) ScoreAll(features FeatureVector) (RawScores, error) {
	scores := make(RawScores, len(e.members))
	var g errgroup.Group
	for i, member := range e.members {
		i, member := i, member
		row := make([]float64, len(features))
		copy(row, features)
		g.Go(func() error {
			value, err := infer(member.Model, row)
			if err != nil {
				return InferenceError{Category: member.Category, Err: err}
			}
			scores[i] = RawScore{Category: member.Category, Value: value}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func infer(model RiskModel, row []float64) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	value, err = model.Infer(row)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("model returned non-finite value %v", value)
	}
	return value, nil
}

package predictor

import (
	"errors"
	"sync/atomic"

	"github.com/synaptica-ai/healthrisk/pkg/common/models"
)

// Bundle is one consistent schema and ensemble pair plus its provenance.
// Bundles are immutable; reloading replaces the whole bundle.
type Bundle struct {
	Schema   *Schema
	Ensemble *Ensemble
	Info     models.BundleInfo
}

func NewBundle(schema *Schema, ensemble *Ensemble, info models.BundleInfo) (*Bundle, error) {
	if schema == nil {
		return nil, errors.New("bundle has no schema")
	}
	if ensemble == nil {
		return nil, errors.New("bundle has no ensemble")
	}
	return &Bundle{Schema: schema, Ensemble: ensemble, Info: info}, nil
}

// Predict runs the full pipeline for one profile.
func (b *Bundle) Predict(profile models.HealthProfile) (models.RiskScorecard, error) {
	codes, err := b.Schema.EncodeProfile(profile)
	if err != nil {
		return nil, err
	}
	vector, err := b.Schema.Assemble(profile, codes)
	if err != nil {
		return nil, err
	}
	scaled, err := b.Schema.Scale(vector)
	if err != nil {
		return nil, err
	}
	raw, err := b.Ensemble.ScoreAll(scaled)
	if err != nil {
		return nil, err
	}
	return Format(raw), nil
}

// Predictor serves predictions from the currently active bundle.
type Predictor struct {
	current atomic.Pointer[Bundle]
}

func NewPredictor(bundle *Bundle) *Predictor {
	p := &Predictor{}
	if bundle != nil {
		p.current.Store(bundle)
	}
	return p
}

// Current returns the active bundle, or nil before the first load.
func (p *Predictor) Current() *Bundle {
	return p.current.Load()
}

// Swap activates bundle and returns the one it replaced.
func (p *Predictor) Swap(bundle *Bundle) *Bundle {
	return p.current.Swap(bundle)
}

func (p *Predictor) Ready() bool {
	return p.current.Load() != nil
}

// Predict scores profile against the bundle active at call time.
func (p *Predictor) Predict(profile models.HealthProfile) (models.RiskScorecard, error) {
	bundle := p.current.Load()
	if bundle == nil {
		return nil, ErrNotReady
	}
	return bundle.Predict(profile)
}

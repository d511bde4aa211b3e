package artifacts

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synaptica-ai/healthrisk/pkg/common/logger"
	"github.com/synaptica-ai/healthrisk/pkg/serving/predictor"
)

// What caused a reload.
const (
	TriggerStartup = "startup"
	TriggerWatch   = "watch"
	TriggerEvent   = "event"
	TriggerManual  = "manual"
)

// Outcome reports one reload attempt. Err is set when the bundle was
// rejected, in which case Previous is still the active bundle.
type Outcome struct {
	Dir      string
	Trigger  string
	Bundle   *predictor.Bundle
	Previous *predictor.Bundle
	Err      error
	At       time.Time
}

// Hook observes reload outcomes. Hooks run synchronously after the swap.
type Hook func(ctx context.Context, outcome Outcome)

// Reloader loads bundles from a directory into a Predictor. A bundle that
// fails to load never replaces the active one.
type Reloader struct {
	dir       string
	predictor *predictor.Predictor

	mu    sync.Mutex
	hooks []Hook
}

func NewReloader(dir string, p *predictor.Predictor, hooks ...Hook) *Reloader {
	return &Reloader{dir: dir, predictor: p, hooks: hooks}
}

func (r *Reloader) Dir() string {
	return r.dir
}

func (r *Reloader) OnReload(hook Hook) {
	r.mu.Lock()
	r.hooks = append(r.hooks, hook)
	r.mu.Unlock()
}

// Reload loads the directory and activates the result. Reloading a bundle
// whose checksum matches the active one is a no-op.
func (r *Reloader) Reload(ctx context.Context, trigger string) (*predictor.Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := logger.WithFields(logrus.Fields{"dir": r.dir, "trigger": trigger})
	outcome := Outcome{Dir: r.dir, Trigger: trigger, At: time.Now().UTC()}

	bundle, err := Load(r.dir)
	if err != nil {
		outcome.Err = err
		outcome.Previous = r.predictor.Current()
		log.WithError(err).Error("Artifact bundle rejected")
		r.notify(ctx, outcome)
		return nil, err
	}

	if current := r.predictor.Current(); current != nil && current.Info.Checksum == bundle.Info.Checksum {
		log.WithField("version", current.Info.Version).Debug("Artifact bundle unchanged")
		return current, nil
	}

	outcome.Bundle = bundle
	outcome.Previous = r.predictor.Swap(bundle)
	log.WithFields(logrus.Fields{
		"version":  bundle.Info.Version,
		"checksum": bundle.Info.Checksum,
	}).Info("Artifact bundle activated")
	r.notify(ctx, outcome)
	return bundle, nil
}

func (r *Reloader) notify(ctx context.Context, outcome Outcome) {
	for _, hook := range r.hooks {
		hook(ctx, outcome)
	}
}

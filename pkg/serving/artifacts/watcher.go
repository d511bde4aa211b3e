package artifacts

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/synaptica-ai/healthrisk/pkg/common/logger"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the bundle when files in its directory change. Bursts of
// events, such as a deploy rewriting every model file, collapse into a single
// reload once the directory has been quiet for the debounce interval.
type Watcher struct {
	reloader *Reloader
	debounce time.Duration
}

func NewWatcher(reloader *Reloader, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{reloader: reloader, debounce: debounce}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.reloader.Dir()); err != nil {
		return err
	}
	logger.WithField("dir", w.reloader.Dir()).Info("Watching artifact directory")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Artifact watcher error")
		case <-timer.C:
			// Rejections are logged and reported to hooks by the reloader.
			_, _ = w.reloader.Reload(ctx, TriggerWatch)
		}
	}
}

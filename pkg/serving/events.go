package serving

import (
	"context"

	"github.com/synaptica-ai/healthrisk/pkg/common/logger"
	"github.com/synaptica-ai/healthrisk/pkg/common/models"
	"github.com/synaptica-ai/healthrisk/pkg/observability/metrics"
	"github.com/synaptica-ai/healthrisk/pkg/serving/artifacts"
)

// Artifact lifecycle event types.
const (
	EventArtifactsPublished = "artifacts.published"
	EventArtifactsLoaded    = "artifacts.loaded"
	EventArtifactsRejected  = "artifacts.rejected"
)

const EventSource = "serving-service"

// EventPublisher is satisfied by kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// PublishHook announces every reload outcome on the artifact topic.
func PublishHook(publisher EventPublisher) artifacts.Hook {
	return func(ctx context.Context, outcome artifacts.Outcome) {
		eventType, data := outcomeEvent(outcome)
		if err := publisher.PublishEvent(ctx, eventType, EventSource, data); err != nil {
			logger.WithError(err).WithField("event_type", eventType).Warn("Failed to announce artifact reload")
		}
	}
}

func outcomeEvent(outcome artifacts.Outcome) (string, map[string]interface{}) {
	data := map[string]interface{}{
		"dir":     outcome.Dir,
		"trigger": outcome.Trigger,
	}
	if outcome.Err != nil {
		data["error"] = outcome.Err.Error()
		if outcome.Previous != nil {
			data["active_version"] = outcome.Previous.Info.Version
		}
		return EventArtifactsRejected, data
	}
	data["version"] = outcome.Bundle.Info.Version
	data["checksum"] = outcome.Bundle.Info.Checksum
	return EventArtifactsLoaded, data
}

// ReloadOnPublished returns a consumer handler that reloads the bundle when a
// new one is published. Our own loaded/rejected events are ignored. A
// rejected bundle is not retried; the event is acknowledged.
func ReloadOnPublished(reloader *artifacts.Reloader) func(ctx context.Context, event models.Event) error {
	return func(ctx context.Context, event models.Event) error {
		if event.Type != EventArtifactsPublished {
			return nil
		}
		logger.WithField("event_id", event.ID).Info("Artifact bundle published")
		_, _ = reloader.Reload(ctx, artifacts.TriggerEvent)
		return nil
	}
}

// MetricsHook exports reload outcomes and the active bundle marker.
func MetricsHook() artifacts.Hook {
	return func(_ context.Context, outcome artifacts.Outcome) {
		var active models.BundleInfo
		if outcome.Bundle != nil {
			active = outcome.Bundle.Info
		}
		var previous *models.BundleInfo
		if outcome.Previous != nil {
			previous = &outcome.Previous.Info
		}
		metrics.ObserveReload(outcome.Trigger, outcome.Err, active, previous)
	}
}

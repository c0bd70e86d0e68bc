// Package bus provides event bus implementations for pipeline events.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic. Delivery to subscribers is
	// asynchronous; Publish never waits for handlers.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type, equal to the topic it was published on.
	Type string `json:"type"`

	// Source is the component that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created (unix milliseconds).
	Timestamp int64 `json:"timestamp"`

	// RunID links the events of one pipeline run.
	RunID string `json:"run_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(eventType, source, runID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		RunID:     runID,
		Payload:   payload,
	}
}

// Topics for pipeline events.
const (
	TopicFeaturesPrepared    = "pipeline.features.prepared"
	TopicModelTrained        = "pipeline.model.trained"
	TopicModelCrossValidated = "pipeline.model.cross_validated"
	TopicModelSaved          = "pipeline.model.saved"
	TopicEvaluationCompleted = "pipeline.evaluation.completed"
)

// Topics lists every pipeline topic.
var Topics = []string{
	TopicFeaturesPrepared,
	TopicModelTrained,
	TopicModelCrossValidated,
	TopicModelSaved,
	TopicEvaluationCompleted,
}

// Package stream defines the bus event stream port (interface).
package stream

import "context"

// Handler processes an event received from the stream.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Stream is the port interface for publishing and subscribing to bus
// lifecycle events. Publishing is always best-effort from the bus's point
// of view: a stream failure is logged, never returned to the sender.
type Stream interface {
	// Publish sends an event to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for events on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	// Pending events are processed; no new events are accepted.
	Drain() error

	// Close shuts down the stream connection immediately.
	Close() error

	// IsConnected reports whether the stream is currently connected.
	IsConnected() bool
}

// Subject constants for the Switchboard event stream.
const (
	SubjectMessageSent    = "messages.sent"
	SubjectMessageAcked   = "messages.acked"
	SubjectMessageExpired = "messages.expired" // emitted by the optional compaction sweep

	SubjectTaskDelegated = "tasks.delegated"
	SubjectTaskUpdated   = "tasks.updated" // any non-terminal -> non-terminal or failure transition
	SubjectTaskCompleted = "tasks.completed"

	SubjectAgentRegistered  = "agents.registered"
	SubjectAgentDeactivated = "agents.deactivated"
)

// Package notifier defines the delivery notification port (interface) and
// capabilities. Notification is a best-effort optimization: mailbox
// durability is the bus's contract, a failed notice never fails a send.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Delivery is the notice sent through a Notifier when an envelope lands in
// a mailbox.
type Delivery struct {
	MessageID string `json:"message_id"`
	From      string `json:"from_agent_id"`
	To        string `json:"to_agent_id"`
	Kind      string `json:"message_type"`
	Summary   string `json:"summary"`
}

// Capabilities declares which delivery properties a notifier provides.
type Capabilities struct {
	// Realtime notifiers push to a live connection; the notice is lost if
	// the recipient is not connected.
	Realtime bool `json:"realtime"`
	// Durable notifiers hand the notice to a store-and-forward system that
	// outlives the recipient's connection.
	Durable bool `json:"durable"`
}

// Notifier is the port interface for emitting delivery notices.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "ws", "nats").
	Name() string

	// Capabilities returns what this notifier provides.
	Capabilities() Capabilities

	// Notify emits a delivery notice. Failures are logged by the caller and
	// never propagate to the send path.
	Notify(ctx context.Context, delivery Delivery) error
}

package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arbiterhq/Switchboard/internal/port/notifier"
)

const frameTypeDelivery = "message.delivered"

// Notifier pushes delivery notices over the hub. Realtime only: a notice
// for a disconnected agent is dropped, the envelope stays in the mailbox.
type Notifier struct {
	hub *Hub
}

// NewNotifier creates a Notifier over the given hub.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// Name implements notifier.Notifier.
func (n *Notifier) Name() string { return "ws" }

// Capabilities implements notifier.Notifier.
func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{Realtime: true}
}

// Notify pushes the delivery notice to the recipient's connections.
func (n *Notifier) Notify(ctx context.Context, d notifier.Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delivery notice: %w", err)
	}
	n.hub.Push(ctx, d.To, Message{Type: frameTypeDelivery, Payload: payload})
	return nil
}

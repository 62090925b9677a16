package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/arbiterhq/Switchboard/internal/port/notifier"
)

const providerName = "nats"

// Notifier publishes delivery notices on a per-recipient core NATS subject
// ("notify.<agent_id>"). Durable in the sense that any number of consumers
// can bridge the subject into their own store; the bus itself keeps no
// redelivery state.
type Notifier struct {
	nc *nats.Conn
}

// NewNotifier creates a Notifier over an existing NATS connection.
func NewNotifier(nc *nats.Conn) *Notifier {
	return &Notifier{nc: nc}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{Durable: true}
}

// Notify publishes the delivery notice to the recipient's notify subject.
func (n *Notifier) Notify(_ context.Context, d notifier.Delivery) error {
	if n.nc == nil {
		return notifier.ErrNotConfigured
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delivery notice: %w", err)
	}
	if err := n.nc.Publish(NotifySubject(d.To), data); err != nil {
		return fmt.Errorf("publish delivery notice: %w", err)
	}
	return nil
}

// NotifySubject returns the notice subject for an agent.
func NotifySubject(agentID string) string {
	return "notify." + agentID
}

// Conn exposes the underlying connection for adapters that share it
// (the KV cache, the idempotency middleware).
func (s *Stream) Conn() *nats.Conn {
	return s.nc
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	sbotel "github.com/arbiterhq/Switchboard/internal/adapter/otel"
	"github.com/arbiterhq/Switchboard/internal/domain"
	"github.com/arbiterhq/Switchboard/internal/domain/message"
	"github.com/arbiterhq/Switchboard/internal/mailbox"
	"github.com/arbiterhq/Switchboard/internal/port/directory"
	"github.com/arbiterhq/Switchboard/internal/port/notifier"
	"github.com/arbiterhq/Switchboard/internal/port/stream"
)

const summaryMaxLen = 140

// BusService routes envelopes between agent mailboxes. Send validates both
// identities, finalizes the envelope and enqueues it into the recipient's
// mailbox. Everything after the enqueue (delivery notices, stream events)
// is best-effort: once Send returns nil the envelope is pending, whatever
// the observers did.
type BusService struct {
	boxes    *mailbox.Store
	resolver directory.Resolver
	notify   *NotificationService
	events   stream.Stream
	metrics  *sbotel.Metrics
	now      func() time.Time // for testing
}

// NewBusService creates a BusService over the given mailboxes and identity
// resolver. Notification and stream collaborators are optional and attached
// with the Set methods.
func NewBusService(boxes *mailbox.Store, resolver directory.Resolver) *BusService {
	return &BusService{
		boxes:    boxes,
		resolver: resolver,
		now:      time.Now,
	}
}

// SetNotificationService attaches the optional delivery notice fan-out.
func (s *BusService) SetNotificationService(n *NotificationService) {
	s.notify = n
}

// SetStream attaches the optional bus event stream.
func (s *BusService) SetStream(es stream.Stream) {
	s.events = es
}

// SetMetrics attaches the optional metric instruments.
func (s *BusService) SetMetrics(m *sbotel.Metrics) {
	s.metrics = m
}

// Send validates both identities, assigns id and timestamp when unset,
// defaults the priority, and enqueues the envelope into the recipient's
// mailbox. The returned envelope is the finalized copy. Identity failures
// are symmetric: an unknown or non-agent identifier is rejected whether it
// is the sender or the recipient.
func (s *BusService) Send(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
	if env == nil {
		return nil, fmt.Errorf("send: nil envelope: %w", domain.ErrValidation)
	}

	ctx, span := sbotel.StartSendSpan(ctx, env.From, env.To, string(env.Kind))
	defer span.End()

	if err := s.ValidateParticipants(ctx, env.From, env.To); err != nil {
		return nil, err
	}

	msg := env.Clone()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.Priority == "" {
		msg.Priority = message.PriorityNormal
	}

	if err := s.boxes.Enqueue(msg.To, msg); err != nil {
		return nil, fmt.Errorf("send %s to %s: %w", msg.ID, msg.To, err)
	}

	if s.metrics != nil {
		s.metrics.MessagesSent.Add(ctx, 1)
	}
	slog.Debug("message enqueued",
		"message_id", msg.ID,
		"from", msg.From,
		"to", msg.To,
		"type", msg.Kind,
		"priority", msg.Priority,
	)

	s.afterSend(ctx, msg)

	return msg, nil
}

// SendServiceRequest builds and sends a service-request envelope.
func (s *BusService) SendServiceRequest(ctx context.Context, from, to, service string, params map[string]any) (*message.Envelope, error) {
	return s.Send(ctx, message.NewServiceRequest(from, to, service, params))
}

// SendPaymentRequest builds and sends a payment-request envelope.
// Payment requests are always High priority.
func (s *BusService) SendPaymentRequest(ctx context.Context, from, to string, amount float64, currency, description string) (*message.Envelope, error) {
	return s.Send(ctx, message.NewPaymentRequest(from, to, amount, currency, description))
}

// Pending returns the recipient's pending envelopes, highest priority first,
// oldest first within a priority. Expired envelopes are filtered out.
// An agent with no mailbox has no pending messages, not an error.
func (s *BusService) Pending(_ context.Context, agentID string) []*message.Envelope {
	return s.boxes.ListPending(agentID)
}

// PendingCount returns how many unexpired envelopes await the agent.
func (s *BusService) PendingCount(_ context.Context, agentID string) int {
	return s.boxes.PendingCount(agentID)
}

// Acknowledge removes the envelope with the given id from the agent's
// mailbox. Returns domain.ErrNotFound when neither the mailbox nor the id
// exists. Expired envelopes are still acknowledgeable.
func (s *BusService) Acknowledge(ctx context.Context, agentID, messageID string) error {
	if err := s.boxes.Acknowledge(agentID, messageID); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.MessagesAcked.Add(ctx, 1)
	}
	slog.Debug("message acknowledged", "message_id", messageID, "agent_id", agentID)

	publishEvent(ctx, s.events, stream.SubjectMessageAcked, stream.MessageAckedPayload{
		MessageID: messageID,
		AgentID:   agentID,
	})
	return nil
}

// ValidateParticipants checks that both identifiers resolve to existing
// agent identities. The check is the same for both sides; only the error
// context differs.
func (s *BusService) ValidateParticipants(ctx context.Context, from, to string) error {
	if err := s.checkParticipant(ctx, from, "sender"); err != nil {
		return err
	}
	return s.checkParticipant(ctx, to, "recipient")
}

func (s *BusService) checkParticipant(ctx context.Context, agentID, role string) error {
	// An empty identifier is a malformed request, not a directory miss:
	// it reports ErrValidation (InvalidParams on the wire), while ids
	// that fail to resolve report ErrUnknownAgent.
	if agentID == "" {
		return fmt.Errorf("%s agent id is required: %w", role, domain.ErrValidation)
	}
	identity, err := s.resolver.Resolve(ctx, agentID)
	if err != nil {
		return fmt.Errorf("resolve %s %s: %w", role, agentID, err)
	}
	if !identity.Exists {
		return fmt.Errorf("%s %s: %w", role, agentID, domain.ErrUnknownAgent)
	}
	if !identity.IsAgent {
		return fmt.Errorf("%s %s: %w", role, agentID, domain.ErrNotAnAgent)
	}
	return nil
}

// afterSend runs the best-effort side effects of a completed send: the
// delivery notice fan-out and the stream event. The notice runs on its own
// goroutine with cancellation detached, so an impatient sender hanging up
// cannot cut the notification short.
func (s *BusService) afterSend(ctx context.Context, msg *message.Envelope) {
	if s.notify != nil {
		go s.notify.Notify(context.WithoutCancel(ctx), notifier.Delivery{
			MessageID: msg.ID,
			From:      msg.From,
			To:        msg.To,
			Kind:      string(msg.Kind),
			Summary:   truncate(msg.Content, summaryMaxLen),
		})
	}

	publishEvent(ctx, s.events, stream.SubjectMessageSent, stream.MessageSentPayload{
		MessageID: msg.ID,
		From:      msg.From,
		To:        msg.To,
		Kind:      string(msg.Kind),
		Priority:  string(msg.Priority),
		SentAt:    msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// StartCompaction launches the optional periodic sweep that physically
// removes expired envelopes. Pending listings filter expired entries either
// way; the sweep only reclaims memory in unread mailboxes. Runs until ctx
// is cancelled. A non-positive interval disables the sweep.
func (s *BusService) StartCompaction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := s.boxes.RemoveExpired()
				if removed == 0 {
					continue
				}
				if s.metrics != nil {
					s.metrics.MessagesExpired.Add(ctx, int64(removed))
				}
				slog.Debug("expired envelopes swept", "removed", removed)
				publishEvent(ctx, s.events, stream.SubjectMessageExpired, stream.MessageExpiredPayload{
					Removed: removed,
					SweptAt: s.now().UTC().Format(time.RFC3339),
				})
			}
		}
	}()
}

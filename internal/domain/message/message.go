// Package message defines the Envelope domain entity, the unit of
// agent-to-agent communication.
package message

import "time"

// Kind identifies the purpose of an envelope. The set is closed; the wire
// protocol maps each kind to a JSON-RPC method name in internal/protocol.
type Kind string

const (
	KindCapabilityQuery     Kind = "capability_query"
	KindCapabilityResponse  Kind = "capability_response"
	KindServiceRequest      Kind = "service_request"
	KindServiceOffer        Kind = "service_offer"
	KindTaskDelegation      Kind = "task_delegation"
	KindTaskAcceptance      Kind = "task_acceptance"
	KindTaskRejection       Kind = "task_rejection"
	KindTaskUpdate          Kind = "task_update"
	KindTaskCompletion      Kind = "task_completion"
	KindPaymentRequest      Kind = "payment_request"
	KindPaymentConfirmation Kind = "payment_confirmation"
	KindPaymentRejection    Kind = "payment_rejection"
	KindNegotiationStart    Kind = "negotiation_start"
	KindNegotiationOffer    Kind = "negotiation_offer"
	KindNegotiationAccept   Kind = "negotiation_accept"
	KindNegotiationReject   Kind = "negotiation_reject"
	KindPing                Kind = "ping"
	KindPong                Kind = "pong"

	// KindError is reserved for inbound wire methods that map to no known
	// kind. It never appears on the outbound wire as itself.
	KindError Kind = "error"
)

// Priority orders delivery within a mailbox. High is served before Normal,
// Normal before Low. The total order is fixed by Rank.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank returns the sort position of the priority; lower ranks are served
// first. Unknown or empty values rank as Normal.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// ParsePriority normalizes a wire priority string. Anything unrecognized
// becomes Normal; malformed input is never an error.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return Priority(s)
	default:
		return PriorityNormal
	}
}

// Envelope is one message between two agent identities. Envelopes are
// immutable once the bus has finalized them: the bus assigns ID and
// CreatedAt when unset, and nothing mutates an envelope afterwards.
type Envelope struct {
	ID             string            `json:"id"`
	From           string            `json:"from_agent_id"`
	To             string            `json:"to_agent_id"`
	Kind           Kind              `json:"message_type"`
	Content        string            `json:"content"`
	Payload        map[string]any    `json:"payload,omitempty"`
	CreatedAt      time.Time         `json:"timestamp"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
	Priority       Priority          `json:"priority"`
	InResponseTo   string            `json:"response_to_message_id,omitempty"`
	TransactionRef string            `json:"transaction_hash,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the envelope's expiry is set and in the past.
func (e *Envelope) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// Clone returns a deep copy. Mailbox reads hand out clones so a listing is a
// snapshot regardless of what callers do with the result.
func (e *Envelope) Clone() *Envelope {
	clone := *e
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		clone.ExpiresAt = &t
	}
	if e.Payload != nil {
		clone.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			clone.Payload[k] = v
		}
	}
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

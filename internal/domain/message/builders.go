package message

import "time"

// New creates an envelope with the given routing fields and Normal priority.
// ID and CreatedAt are left unset; the bus assigns both at send time.
func New(from, to string, kind Kind, content string) *Envelope {
	return &Envelope{
		From:     from,
		To:       to,
		Kind:     kind,
		Content:  content,
		Priority: PriorityNormal,
	}
}

// NewServiceRequest builds a service-request envelope. The requested service
// name and caller parameters travel in the payload under fixed keys.
func NewServiceRequest(from, to, service string, params map[string]any) *Envelope {
	e := New(from, to, KindServiceRequest, "Service request: "+service)
	e.Payload = map[string]any{
		"service_name": service,
	}
	if len(params) > 0 {
		e.Payload["parameters"] = params
	}
	return e
}

// NewPaymentRequest builds a payment-request envelope. Payment requests are
// always High priority.
func NewPaymentRequest(from, to string, amount float64, currency, description string) *Envelope {
	e := New(from, to, KindPaymentRequest, "Payment request: "+description)
	e.Priority = PriorityHigh
	e.Payload = map[string]any{
		"amount":      amount,
		"currency":    currency,
		"description": description,
	}
	return e
}

// NewReply builds an envelope answering an earlier one: direction reversed,
// InResponseTo linked to the original's id.
func NewReply(original *Envelope, kind Kind, content string) *Envelope {
	e := New(original.To, original.From, kind, content)
	e.InResponseTo = original.ID
	return e
}

// WithExpiry returns the envelope with an absolute expiry set. Expired
// envelopes are filtered from pending listings but remain acknowledgeable.
func (e *Envelope) WithExpiry(at time.Time) *Envelope {
	e.ExpiresAt = &at
	return e
}

package protocol

import (
	"time"

	"github.com/arbiterhq/Switchboard/internal/domain/message"
)

// MethodUnknown is the reserved wire method for kinds outside the table.
const MethodUnknown = "unknown_method"

// knownKinds is the closed set of kinds carried on the wire. Wire method
// names equal kind strings; everything outside the set transcodes to the
// two reserved values, MethodUnknown outbound and message.KindError
// inbound.
var knownKinds = map[message.Kind]struct{}{
	message.KindCapabilityQuery:     {},
	message.KindCapabilityResponse:  {},
	message.KindServiceRequest:      {},
	message.KindServiceOffer:        {},
	message.KindTaskDelegation:      {},
	message.KindTaskAcceptance:      {},
	message.KindTaskRejection:       {},
	message.KindTaskUpdate:          {},
	message.KindTaskCompletion:      {},
	message.KindPaymentRequest:      {},
	message.KindPaymentConfirmation: {},
	message.KindPaymentRejection:    {},
	message.KindNegotiationStart:    {},
	message.KindNegotiationOffer:    {},
	message.KindNegotiationAccept:   {},
	message.KindNegotiationReject:   {},
	message.KindPing:                {},
	message.KindPong:                {},
}

// MethodFor returns the wire method for a kind.
func MethodFor(kind message.Kind) string {
	if _, ok := knownKinds[kind]; ok {
		return string(kind)
	}
	return MethodUnknown
}

// KindFor returns the envelope kind for an inbound wire method.
func KindFor(method string) message.Kind {
	if _, ok := knownKinds[message.Kind(method)]; ok {
		return message.Kind(method)
	}
	return message.KindError
}

// ToRequest flattens an envelope into a JSON-RPC request. Every envelope
// field lands in params under its fixed key; optional fields are included
// only when set, so FromRequest reverses the flattening exactly.
func ToRequest(env *message.Envelope) *Request {
	params := map[string]any{
		"from_agent_id": env.From,
		"to_agent_id":   env.To,
		"message_type":  string(env.Kind),
		"content":       env.Content,
		"payload":       env.Payload,
		"timestamp":     env.CreatedAt.Format(time.RFC3339Nano),
		"priority":      string(env.Priority),
	}
	if env.ExpiresAt != nil {
		params["expires_at"] = env.ExpiresAt.Format(time.RFC3339Nano)
	}
	if env.TransactionRef != "" {
		params["transaction_hash"] = env.TransactionRef
	}
	if env.InResponseTo != "" {
		params["response_to_message_id"] = env.InResponseTo
	}
	if len(env.Metadata) > 0 {
		params["metadata"] = env.Metadata
	}

	return &Request{
		JSONRPC: Version,
		Method:  MethodFor(env.Kind),
		Params:  params,
		ID:      env.ID,
	}
}

// FromRequest reads a JSON-RPC request back into an envelope. The method,
// not the message_type param, decides the kind. Params are read
// defensively: an absent or malformed value leaves its field unset, never
// fails the transcode. from is the authenticated sender and always wins
// over whatever the params claim.
func FromRequest(req *Request, from string) *message.Envelope {
	env := &message.Envelope{
		From: from,
		Kind: KindFor(req.Method),
	}
	if id, ok := req.ID.(string); ok {
		env.ID = id
	}

	p := req.Params
	env.To = stringParam(p, "to_agent_id")
	env.Content = stringParam(p, "content")
	if payload, ok := p["payload"].(map[string]any); ok {
		env.Payload = payload
	}
	if ts, ok := timeParam(p, "timestamp"); ok {
		env.CreatedAt = ts
	}
	if pr := stringParam(p, "priority"); pr != "" {
		env.Priority = message.ParsePriority(pr)
	}
	if ts, ok := timeParam(p, "expires_at"); ok {
		env.ExpiresAt = &ts
	}
	env.TransactionRef = stringParam(p, "transaction_hash")
	env.InResponseTo = stringParam(p, "response_to_message_id")
	switch meta := p["metadata"].(type) {
	case map[string]string:
		env.Metadata = meta
	case map[string]any:
		env.Metadata = stringValues(meta)
	}

	return env
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func timeParam(params map[string]any, key string) (time.Time, bool) {
	s, ok := params[key].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// stringValues keeps the string-valued entries of a decoded JSON object.
func stringValues(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

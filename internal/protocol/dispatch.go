package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	sbotel "github.com/arbiterhq/Switchboard/internal/adapter/otel"
	"github.com/arbiterhq/Switchboard/internal/domain/message"
	"github.com/arbiterhq/Switchboard/internal/service"
)

// Dispatcher routes inbound JSON-RPC requests. Liveness probes are
// answered inline, capability queries go to the discovery service, and
// every message-bearing method is transcoded and handed to the bus.
type Dispatcher struct {
	bus       *service.BusService
	discovery *service.DiscoveryService
	metrics   *sbotel.Metrics
	now       func() time.Time // for testing
}

// NewDispatcher creates a Dispatcher over the bus and discovery services.
func NewDispatcher(bus *service.BusService, discovery *service.DiscoveryService) *Dispatcher {
	return &Dispatcher{
		bus:       bus,
		discovery: discovery,
		now:       time.Now,
	}
}

// SetMetrics attaches the optional metric instruments.
func (d *Dispatcher) SetMetrics(m *sbotel.Metrics) {
	d.metrics = m
}

// Dispatch routes one request on behalf of the authenticated fromAgent and
// always returns a well-formed response. A panic inside a handler is
// reported as an InternalError, never propagated to the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, fromAgent string) (resp *Response) {
	ctx, span := sbotel.StartDispatchSpan(ctx, req.Method, fromAgent)
	start := d.now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch panic", "method", req.Method, "panic", r)
			resp = NewError(req.ID, CodeInternalError, fmt.Sprintf("internal error: %v", r))
		}
		d.record(ctx, req.Method, resp, d.now().Sub(start))
		span.End()
	}()

	if req.JSONRPC != Version {
		return NewError(req.ID, CodeInvalidRequest, fmt.Sprintf("unsupported jsonrpc version %q", req.JSONRPC))
	}

	switch req.Method {
	case string(message.KindPing):
		return NewResult(req.ID, map[string]any{
			"status":    "pong",
			"timestamp": d.now().UTC().Format(time.RFC3339Nano),
		})
	case string(message.KindCapabilityQuery):
		return d.capabilityQuery(ctx, req)
	}

	if _, ok := knownKinds[message.Kind(req.Method)]; !ok {
		return NewError(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
	return d.send(ctx, req, fromAgent)
}

// record counts the dispatch by method and outcome and observes its
// duration. Outcome is "ok" or the error code.
func (d *Dispatcher) record(ctx context.Context, method string, resp *Response, elapsed time.Duration) {
	if d.metrics == nil {
		return
	}
	outcome := "ok"
	if resp != nil && resp.Error != nil {
		outcome = fmt.Sprintf("%d", resp.Error.Code)
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	)
	d.metrics.DispatchCalls.Add(ctx, 1, attrs)
	d.metrics.DispatchDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// capabilityQuery answers a capability question directly from the
// directory instead of routing an envelope to the queried agent.
func (d *Dispatcher) capabilityQuery(ctx context.Context, req *Request) *Response {
	target := stringParam(req.Params, "to_agent_id")
	if target == "" {
		return NewError(req.ID, CodeInvalidParams, "to_agent_id is required")
	}

	caps, err := d.discovery.Lookup(ctx, target)
	if err != nil {
		return NewError(req.ID, CodeFor(err, CodeAgentNotFound), err.Error())
	}

	return NewResult(req.ID, map[string]any{
		"agent_id":     target,
		"capabilities": caps,
	})
}

// send transcodes the request into an envelope and routes it through the
// bus under the authenticated sender's identity.
func (d *Dispatcher) send(ctx context.Context, req *Request, fromAgent string) *Response {
	sent, err := d.bus.Send(ctx, FromRequest(req, fromAgent))
	if err != nil {
		return NewError(req.ID, CodeFor(err, CodeMessageNotFound), err.Error())
	}

	return NewResult(req.ID, map[string]any{
		"message_id": sent.ID,
		"status":     "sent",
		"timestamp":  sent.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

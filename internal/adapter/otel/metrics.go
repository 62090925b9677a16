package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "switchboard"

// Metrics holds the bus metric instruments.
type Metrics struct {
	MessagesSent     metric.Int64Counter
	MessagesAcked    metric.Int64Counter
	MessagesExpired  metric.Int64Counter
	DispatchCalls    metric.Int64Counter
	DispatchDuration metric.Float64Histogram
	TaskTransitions  metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.MessagesSent, err = meter.Int64Counter("switchboard.messages.sent",
		metric.WithDescription("Messages accepted onto the bus"))
	if err != nil {
		return nil, err
	}

	m.MessagesAcked, err = meter.Int64Counter("switchboard.messages.acked",
		metric.WithDescription("Messages acknowledged by their recipient"))
	if err != nil {
		return nil, err
	}

	m.MessagesExpired, err = meter.Int64Counter("switchboard.messages.expired",
		metric.WithDescription("Messages removed by expiry compaction"))
	if err != nil {
		return nil, err
	}

	m.DispatchCalls, err = meter.Int64Counter("switchboard.dispatch.calls",
		metric.WithDescription("JSON-RPC dispatch calls by method and outcome"))
	if err != nil {
		return nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram("switchboard.dispatch.duration_seconds",
		metric.WithDescription("JSON-RPC dispatch duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.TaskTransitions, err = meter.Int64Counter("switchboard.tasks.transitions",
		metric.WithDescription("Task status transitions by target status"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

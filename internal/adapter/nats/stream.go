// Package nats implements the bus event stream port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arbiterhq/Switchboard/internal/logger"
	"github.com/arbiterhq/Switchboard/internal/port/stream"
)

const headerRequestID = "Request-Id"

// Stream implements stream.Stream over a JetStream stream that captures
// every bus lifecycle subject.
type Stream struct {
	nc   *nats.Conn
	js   jetstream.JetStream
	name string
}

// Connect establishes a NATS connection and ensures the JetStream stream
// exists with the bus lifecycle subjects.
func Connect(ctx context.Context, url, streamName string) (*Stream, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"messages.>", "tasks.>", "agents.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Stream{nc: nc, js: js, name: streamName}, nil
}

// Publish sends an event to the given subject. The payload is validated
// against the subject's schema first, and the request id travels in a
// header so subscribers log under the same id.
func (s *Stream) Publish(ctx context.Context, subject string, data []byte) error {
	if err := stream.Validate(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	msg := &nats.Msg{Subject: subject, Data: data}
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header = nats.Header{headerRequestID: []string{reqID}}
	}

	if _, err := s.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for events on the given subject. Payloads
// that fail schema validation, and payloads whose handler errors, are
// parked on the subject's dead-letter twin instead of being redelivered
// forever.
func (s *Stream) Subscribe(ctx context.Context, subject string, handler stream.Handler) (func(), error) {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, s.name, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		mctx := context.Background()
		if reqID := msg.Headers().Get(headerRequestID); reqID != "" {
			mctx = logger.WithRequestID(mctx, reqID)
		}

		if err := stream.Validate(msg.Subject(), msg.Data()); err != nil {
			slog.Error("event failed validation", "subject", msg.Subject(), "error", err)
			s.deadLetter(mctx, msg)
			return
		}

		if err := handler(mctx, msg.Subject(), msg.Data()); err != nil {
			slog.Error("event handler failed", "subject", msg.Subject(), "error", err)
			s.deadLetter(mctx, msg)
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// deadLetter republishes the message on its ".dlq" twin and acks the
// original so it is not redelivered.
func (s *Stream) deadLetter(ctx context.Context, msg jetstream.Msg) {
	dlq := msg.Subject() + ".dlq"
	if _, err := s.js.Publish(ctx, dlq, msg.Data()); err != nil {
		slog.Error("dead-letter publish failed", "subject", dlq, "error", err)
		// Leave unacked so JetStream retries the original.
		if nakErr := msg.Nak(); nakErr != nil {
			slog.Error("nats nak failed", "error", nakErr)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "error", err)
	}
}

// KeyValue returns the named KV bucket, creating it with the given TTL if
// it does not exist. Backs the L2 directory cache and the idempotency
// replay store.
func (s *Stream) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := s.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain gracefully drains subscriptions before closing the connection.
func (s *Stream) Drain() error {
	return s.nc.Drain()
}

// Close shuts down the NATS connection immediately.
func (s *Stream) Close() error {
	s.nc.Close()
	return nil
}

// IsConnected reports whether the NATS connection is up.
func (s *Stream) IsConnected() bool {
	return s.nc.IsConnected()
}

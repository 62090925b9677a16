package nats

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/arbiterhq/Switchboard/internal/logger"
	"github.com/arbiterhq/Switchboard/internal/port/notifier"
	"github.com/arbiterhq/Switchboard/internal/port/stream"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Stream {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	s, err := Connect(context.Background(), url, "SWITCHBOARD_TEST")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestStream_PublishSubscribe(t *testing.T) {
	s := testConnect(t)
	ctx := context.Background()

	want := stream.MessageAckedPayload{MessageID: "m-" + t.Name(), AgentID: "bob"}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var (
		mu   sync.Mutex
		got  stream.MessageAckedPayload
		done = make(chan struct{})
		once sync.Once
	)

	stop, err := s.Subscribe(ctx, stream.SubjectMessageAcked, func(_ context.Context, _ string, d []byte) error {
		var p stream.MessageAckedPayload
		if err := json.Unmarshal(d, &p); err != nil {
			return err
		}
		if p.MessageID != want.MessageID {
			return nil // stale message from a prior run
		}
		mu.Lock()
		got = p
		mu.Unlock()
		once.Do(func() { close(done) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := s.Publish(ctx, stream.SubjectMessageAcked, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.AgentID != "bob" {
		t.Errorf("agent_id = %q, want %q", got.AgentID, "bob")
	}
}

func TestStream_PublishRejectsInvalidPayload(t *testing.T) {
	s := testConnect(t)

	err := s.Publish(context.Background(), stream.SubjectMessageAcked, []byte("not json"))
	if err == nil {
		t.Fatal("expected validation error for invalid JSON")
	}
}

func TestStream_RequestIDPropagation(t *testing.T) {
	s := testConnect(t)

	const wantReqID = "req-abc-123"
	payload := stream.AgentDeactivatedPayload{AgentID: "carol-" + t.Name()}
	data, _ := json.Marshal(payload)

	var (
		mu       sync.Mutex
		gotReqID string
		done     = make(chan struct{})
		once     sync.Once
	)

	stop, err := s.Subscribe(context.Background(), stream.SubjectAgentDeactivated, func(ctx context.Context, _ string, d []byte) error {
		var p stream.AgentDeactivatedPayload
		if err := json.Unmarshal(d, &p); err != nil || p.AgentID != payload.AgentID {
			return nil
		}
		mu.Lock()
		gotReqID = logger.RequestID(ctx)
		mu.Unlock()
		once.Do(func() { close(done) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	ctx := logger.WithRequestID(context.Background(), wantReqID)
	if err := s.Publish(ctx, stream.SubjectAgentDeactivated, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotReqID != wantReqID {
		t.Errorf("request ID = %q, want %q", gotReqID, wantReqID)
	}
}

func TestStream_KeyValue(t *testing.T) {
	s := testConnect(t)
	ctx := context.Background()

	kv, err := s.KeyValue(ctx, "test-kv-"+t.Name(), 30*time.Second)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}

	if _, err := kv.Put(ctx, "greeting", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, err := kv.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(entry.Value()) != "hello" {
		t.Errorf("value = %q, want %q", string(entry.Value()), "hello")
	}
	if err := kv.Delete(ctx, "greeting"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestStream_IsConnected(t *testing.T) {
	s := testConnect(t)
	if !s.IsConnected() {
		t.Error("IsConnected() = false after Connect, want true")
	}
}

func TestNotifier_PublishesToRecipientSubject(t *testing.T) {
	s := testConnect(t)

	n := NewNotifier(s.Conn())
	if n.Name() != "nats" {
		t.Fatalf("unexpected name %q", n.Name())
	}
	if caps := n.Capabilities(); !caps.Durable || caps.Realtime {
		t.Fatalf("expected durable-only capabilities, got %+v", caps)
	}

	sub, err := s.Conn().SubscribeSync(NotifySubject("bob"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := n.Notify(context.Background(), notifier.Delivery{
		MessageID: "m-1", From: "alice", To: "bob", Kind: "ping",
	}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("no notice received: %v", err)
	}

	var d notifier.Delivery
	if err := json.Unmarshal(msg.Data, &d); err != nil {
		t.Fatalf("unmarshal notice: %v", err)
	}
	if d.MessageID != "m-1" || d.To != "bob" {
		t.Fatalf("unexpected notice: %+v", d)
	}
}

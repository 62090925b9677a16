package mailbox

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arbiterhq/Switchboard/internal/domain"
	"github.com/arbiterhq/Switchboard/internal/domain/message"
)

func env(id, from, to string, prio message.Priority, created time.Time) *message.Envelope {
	return &message.Envelope{
		ID:        id,
		From:      from,
		To:        to,
		Kind:      message.KindServiceRequest,
		Content:   "test",
		Priority:  prio,
		CreatedAt: created,
	}
}

func TestEnqueueThenListPending(t *testing.T) {
	s := NewStore(0)
	now := time.Now()

	if err := s.Enqueue("bob", env("m1", "alice", "bob", message.PriorityNormal, now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := s.ListPending("bob")
	if len(got) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(got))
	}
	if got[0].ID != "m1" {
		t.Fatalf("expected m1, got %s", got[0].ID)
	}
}

func TestListPendingMissingMailbox(t *testing.T) {
	s := NewStore(0)
	got := s.ListPending("nobody")
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty, got %d", len(got))
	}
}

func TestAcknowledgeRemoves(t *testing.T) {
	s := NewStore(0)
	now := time.Now()
	_ = s.Enqueue("bob", env("m1", "alice", "bob", message.PriorityNormal, now))

	if err := s.Acknowledge("bob", "m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.ListPending("bob"); len(got) != 0 {
		t.Fatalf("expected empty after ack, got %d", len(got))
	}

	// Acknowledging again reports not found; the envelope never reappears.
	err := s.Acknowledge("bob", "m1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAcknowledgeMissingMailbox(t *testing.T) {
	s := NewStore(0)
	err := s.Acknowledge("nobody", "m1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPriorityOrdering(t *testing.T) {
	s := NewStore(0)
	now := time.Now()

	// Sent in the order Low, High, Normal.
	_ = s.Enqueue("bob", env("low", "alice", "bob", message.PriorityLow, now))
	_ = s.Enqueue("bob", env("high", "alice", "bob", message.PriorityHigh, now.Add(time.Millisecond)))
	_ = s.Enqueue("bob", env("normal", "alice", "bob", message.PriorityNormal, now.Add(2*time.Millisecond)))

	got := s.ListPending("bob")
	if len(got) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(got))
	}
	want := []string{"high", "normal", "low"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestEqualPriorityOrdersByCreationTime(t *testing.T) {
	s := NewStore(0)
	base := time.Now()

	_ = s.Enqueue("bob", env("second", "alice", "bob", message.PriorityNormal, base.Add(time.Second)))
	_ = s.Enqueue("bob", env("first", "alice", "bob", message.PriorityNormal, base))

	got := s.ListPending("bob")
	if got[0].ID != "first" || got[1].ID != "second" {
		t.Fatalf("expected [first second], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestEqualPriorityAndTimeKeepsInsertionOrder(t *testing.T) {
	s := NewStore(0)
	at := time.Now()

	for i := range 5 {
		_ = s.Enqueue("bob", env(fmt.Sprintf("m%d", i), "alice", "bob", message.PriorityNormal, at))
	}

	got := s.ListPending("bob")
	for i := range 5 {
		want := fmt.Sprintf("m%d", i)
		if got[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

func TestExpiredFilteredButAcknowledgeable(t *testing.T) {
	s := NewStore(0)
	now := time.Now()

	past := now.Add(-time.Minute)
	expired := env("old", "alice", "bob", message.PriorityNormal, now.Add(-time.Hour))
	expired.ExpiresAt = &past
	_ = s.Enqueue("bob", expired)
	_ = s.Enqueue("bob", env("fresh", "alice", "bob", message.PriorityNormal, now))

	got := s.ListPending("bob")
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Fatalf("expected only fresh, got %v", got)
	}

	// Removal is id-based, so the expired entry still acknowledges cleanly.
	if err := s.Acknowledge("bob", "old"); err != nil {
		t.Fatalf("acknowledging expired envelope should succeed, got %v", err)
	}
}

func TestFutureExpiryStillPending(t *testing.T) {
	s := NewStore(0)
	now := time.Now()

	future := now.Add(time.Hour)
	e := env("m1", "alice", "bob", message.PriorityNormal, now)
	e.ExpiresAt = &future
	_ = s.Enqueue("bob", e)

	if got := s.ListPending("bob"); len(got) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(got))
	}
}

func TestCapacityRejectsWhenFull(t *testing.T) {
	s := NewStore(2)
	now := time.Now()

	_ = s.Enqueue("bob", env("m1", "alice", "bob", message.PriorityNormal, now))
	_ = s.Enqueue("bob", env("m2", "alice", "bob", message.PriorityNormal, now))

	err := s.Enqueue("bob", env("m3", "alice", "bob", message.PriorityNormal, now))
	if !errors.Is(err, domain.ErrMailboxFull) {
		t.Fatalf("expected ErrMailboxFull, got %v", err)
	}

	// Other agents' mailboxes are unaffected by bob's capacity.
	if err := s.Enqueue("carol", env("m4", "alice", "carol", message.PriorityNormal, now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDuplicateIDAppends(t *testing.T) {
	s := NewStore(0)
	now := time.Now()

	_ = s.Enqueue("bob", env("dup", "alice", "bob", message.PriorityNormal, now))
	_ = s.Enqueue("bob", env("dup", "alice", "bob", message.PriorityNormal, now.Add(time.Second)))

	got := s.ListPending("bob")
	if len(got) != 2 {
		t.Fatalf("duplicate id should append, expected 2 pending, got %d", len(got))
	}

	// One acknowledge removes one copy.
	if err := s.Acknowledge("bob", "dup"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.ListPending("bob"); len(got) != 1 {
		t.Fatalf("expected 1 remaining, got %d", len(got))
	}
}

func TestListPendingReturnsClones(t *testing.T) {
	s := NewStore(0)
	now := time.Now()
	e := env("m1", "alice", "bob", message.PriorityNormal, now)
	e.Payload = map[string]any{"k": "v"}
	_ = s.Enqueue("bob", e)

	got := s.ListPending("bob")
	got[0].Payload["k"] = "mutated"
	got[0].Content = "mutated"

	again := s.ListPending("bob")
	if again[0].Content != "test" {
		t.Fatalf("stored envelope mutated via listing: %q", again[0].Content)
	}
	if again[0].Payload["k"] != "v" {
		t.Fatalf("stored payload mutated via listing: %v", again[0].Payload)
	}
}

func TestRemoveExpired(t *testing.T) {
	s := NewStore(0)
	now := time.Now()
	past := now.Add(-time.Minute)

	for i := range 3 {
		e := env(fmt.Sprintf("old%d", i), "alice", "bob", message.PriorityNormal, now.Add(-time.Hour))
		e.ExpiresAt = &past
		_ = s.Enqueue("bob", e)
	}
	_ = s.Enqueue("bob", env("fresh", "alice", "bob", message.PriorityNormal, now))

	if removed := s.RemoveExpired(); removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if got := s.ListPending("bob"); len(got) != 1 || got[0].ID != "fresh" {
		t.Fatalf("expected only fresh after sweep, got %v", got)
	}
}

func TestPendingCount(t *testing.T) {
	s := NewStore(0)
	now := time.Now()
	past := now.Add(-time.Minute)

	_ = s.Enqueue("bob", env("m1", "alice", "bob", message.PriorityNormal, now))
	expired := env("m2", "alice", "bob", message.PriorityNormal, now)
	expired.ExpiresAt = &past
	_ = s.Enqueue("bob", expired)

	if got := s.PendingCount("bob"); got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}
	if got := s.PendingCount("nobody"); got != 0 {
		t.Fatalf("expected count 0 for missing mailbox, got %d", got)
	}
}

func TestConcurrentEnqueueAndAcknowledge(t *testing.T) {
	s := NewStore(0)
	const senders = 8
	const perSender = 50

	var wg sync.WaitGroup
	for g := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perSender {
				id := fmt.Sprintf("g%d-m%d", g, i)
				_ = s.Enqueue("bob", env(id, "alice", "bob", message.PriorityNormal, time.Now()))
			}
		}()
	}
	wg.Wait()

	got := s.ListPending("bob")
	if len(got) != senders*perSender {
		t.Fatalf("expected %d pending, got %d", senders*perSender, len(got))
	}

	// Concurrent acknowledgement of every envelope drains the mailbox.
	for _, e := range got {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.Acknowledge("bob", id); err != nil {
				t.Errorf("acknowledge %s: %v", id, err)
			}
		}(e.ID)
	}
	wg.Wait()

	if remaining := s.ListPending("bob"); len(remaining) != 0 {
		t.Fatalf("expected drained mailbox, got %d", len(remaining))
	}
}

func TestConcurrentDistinctMailboxes(t *testing.T) {
	s := NewStore(0)
	const agents = 16
	const perAgent = 25

	var wg sync.WaitGroup
	for a := range agents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner := fmt.Sprintf("agent-%d", a)
			for i := range perAgent {
				_ = s.Enqueue(owner, env(fmt.Sprintf("%s-m%d", owner, i), "alice", owner, message.PriorityNormal, time.Now()))
			}
		}()
	}
	wg.Wait()

	for a := range agents {
		owner := fmt.Sprintf("agent-%d", a)
		if got := s.PendingCount(owner); got != perAgent {
			t.Fatalf("agent %s: expected %d pending, got %d", owner, perAgent, got)
		}
	}
}

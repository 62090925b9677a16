package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arbiterhq/Switchboard/internal/domain"
	"github.com/arbiterhq/Switchboard/internal/domain/task"
)

func newTask(id string, created time.Time) *task.Task {
	return &task.Task{
		ID:        id,
		FromAgent: "alice",
		ToAgent:   "bob",
		Name:      "translate",
		Status:    task.StatusPending,
		CreatedAt: created,
	}
}

func TestInsertAndGet(t *testing.T) {
	l := NewLedger()
	created := time.Now()

	if err := l.Insert(newTask("t-1", created)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := l.Get("t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "t-1" || got.Status != task.StatusPending {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestInsertDuplicateID(t *testing.T) {
	l := NewLedger()
	now := time.Now()

	if err := l.Insert(newTask("t-1", now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := l.Insert(newTask("t-1", now))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	l := NewLedger()
	_, err := l.Get("nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	l := NewLedger()
	tk := newTask("t-1", time.Now())
	tk.Parameters = map[string]any{"lang": "fr"}
	if err := l.Insert(tk); err != nil {
		t.Fatal(err)
	}

	first, _ := l.Get("t-1")
	first.Parameters["lang"] = "de"
	first.Status = task.StatusCancelled

	second, _ := l.Get("t-1")
	if second.Parameters["lang"] != "fr" {
		t.Error("snapshot mutation reached the ledger")
	}
	if second.Status != task.StatusPending {
		t.Error("snapshot status mutation reached the ledger")
	}
}

func TestTransition(t *testing.T) {
	l := NewLedger()
	if err := l.Insert(newTask("t-1", time.Now())); err != nil {
		t.Fatal(err)
	}

	got, err := l.Transition("t-1", task.StatusInProgress, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != task.StatusInProgress {
		t.Fatalf("expected in_progress, got %s", got.Status)
	}
}

func TestTransitionInvalid(t *testing.T) {
	l := NewLedger()
	if err := l.Insert(newTask("t-1", time.Now())); err != nil {
		t.Fatal(err)
	}

	// pending -> pending is not a move
	_, err := l.Transition("t-1", task.StatusPending, nil)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Failed transition must not change the stored status.
	got, _ := l.Get("t-1")
	if got.Status != task.StatusPending {
		t.Fatalf("status changed despite rejected transition: %s", got.Status)
	}
}

func TestTransitionMissing(t *testing.T) {
	l := NewLedger()
	_, err := l.Transition("nope", task.StatusInProgress, nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionMutateRunsAtomically(t *testing.T) {
	l := NewLedger()
	if err := l.Insert(newTask("t-1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Transition("t-1", task.StatusInProgress, nil); err != nil {
		t.Fatal(err)
	}

	done := time.Now()
	got, err := l.Transition("t-1", task.StatusCompleted, func(tk *task.Task) {
		tk.CompletedAt = &done
		tk.CompletionNotes = "all translated"
		tk.ResultData = map[string]any{"words": 120}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.CompletionNotes != "all translated" {
		t.Errorf("expected completion notes, got %q", got.CompletionNotes)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Error("expected completion timestamp recorded")
	}

	stored, _ := l.Get("t-1")
	if stored.ResultData["words"] != 120 {
		t.Error("mutation not persisted")
	}
}

func TestTerminalTasksRejectFurtherTransitions(t *testing.T) {
	l := NewLedger()
	if err := l.Insert(newTask("t-1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Transition("t-1", task.StatusCancelled, nil); err != nil {
		t.Fatal(err)
	}

	_, err := l.Transition("t-1", task.StatusInProgress, nil)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestListByAgent(t *testing.T) {
	l := NewLedger()
	base := time.Now()

	older := newTask("t-1", base)
	newer := newTask("t-2", base.Add(time.Minute))
	other := newTask("t-3", base)
	other.ToAgent = "carol"

	for _, tk := range []*task.Task{older, newer, other} {
		if err := l.Insert(tk); err != nil {
			t.Fatal(err)
		}
	}

	got := l.ListByAgent("bob")
	if len(got) != 2 {
		t.Fatalf("expected 2 tasks for bob, got %d", len(got))
	}
	if got[0].ID != "t-2" || got[1].ID != "t-1" {
		t.Errorf("expected newest first [t-2 t-1], got [%s %s]", got[0].ID, got[1].ID)
	}

	// The delegator is a party to the task too.
	if got := l.ListByAgent("alice"); len(got) != 3 {
		t.Fatalf("expected 3 tasks for alice, got %d", len(got))
	}
}

func TestListByAgentEmpty(t *testing.T) {
	l := NewLedger()
	got := l.ListByAgent("nobody")
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 tasks, got %d", len(got))
	}
}

func TestListByStatus(t *testing.T) {
	l := NewLedger()
	now := time.Now()

	a := newTask("t-1", now)
	b := newTask("t-2", now.Add(time.Second))
	if err := l.Insert(a); err != nil {
		t.Fatal(err)
	}
	if err := l.Insert(b); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Transition("t-2", task.StatusInProgress, nil); err != nil {
		t.Fatal(err)
	}

	pending := l.ListByStatus(task.StatusPending)
	if len(pending) != 1 || pending[0].ID != "t-1" {
		t.Fatalf("expected [t-1] pending, got %v", ids(pending))
	}
	active := l.ListByStatus(task.StatusInProgress)
	if len(active) != 1 || active[0].ID != "t-2" {
		t.Fatalf("expected [t-2] in progress, got %v", ids(active))
	}
}

func TestConcurrentTransitions(t *testing.T) {
	l := NewLedger()
	const n = 50
	for i := 0; i < n; i++ {
		if err := l.Insert(newTask(fmt.Sprintf("t-%d", i), time.Now())); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := l.Transition(id, task.StatusInProgress, nil); err != nil {
				t.Errorf("transition %s: %v", id, err)
			}
		}(fmt.Sprintf("t-%d", i))
	}
	wg.Wait()

	if got := len(l.ListByStatus(task.StatusInProgress)); got != n {
		t.Fatalf("expected %d in progress, got %d", n, got)
	}
}

func TestConcurrentTransitionSameTask(t *testing.T) {
	// Exactly one of many concurrent pending->in_progress transitions
	// may win; the rest must fail with ErrInvalidTransition.
	l := NewLedger()
	if err := l.Insert(newTask("t-1", time.Now())); err != nil {
		t.Fatal(err)
	}

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Transition("t-1", task.StatusInProgress, nil); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly 1 winning transition, got %d", wins)
	}
}

func ids(tasks []*task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

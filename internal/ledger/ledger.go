// Package ledger holds the in-memory record of delegated tasks.
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arbiterhq/Switchboard/internal/domain"
	"github.com/arbiterhq/Switchboard/internal/domain/task"
)

// Ledger owns every delegated task, keyed by id. Tasks are inserted once at
// delegation time and afterwards only transitioned; nothing is deleted, so a
// task id stays resolvable for the life of the process.
type Ledger struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{tasks: make(map[string]*task.Task)}
}

// Insert records a new task. The stored copy is a clone. Reusing an id is
// rejected: overwriting would silently erase a task's history.
func (l *Ledger) Insert(t *task.Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tasks[t.ID]; ok {
		return fmt.Errorf("task %s already recorded: %w", t.ID, domain.ErrValidation)
	}
	l.tasks[t.ID] = t.Clone()
	return nil
}

// Get returns a snapshot of the task with the given id.
func (l *Ledger) Get(id string) (*task.Task, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return t.Clone(), nil
}

// Transition moves the task to next under the ledger lock, so a concurrent
// transition on the same task can never interleave. mutate, when non-nil,
// runs inside the same critical section to record completion details
// atomically with the status change. The returned task is a snapshot.
func (l *Ledger) Transition(id string, next task.Status, mutate func(*task.Task)) (*task.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if !t.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("task %s: %s to %s: %w", id, t.Status, next, domain.ErrInvalidTransition)
	}
	t.Status = next
	if mutate != nil {
		mutate(t)
	}
	return t.Clone(), nil
}

// ListByAgent returns snapshots of every task the agent is party to, as
// delegator or assignee, newest first. Ties on creation time fall back to
// id order for a stable result.
func (l *Ledger) ListByAgent(agentID string) []*task.Task {
	l.mu.RLock()
	out := make([]*task.Task, 0)
	for _, t := range l.tasks {
		if t.ToAgent == agentID || t.FromAgent == agentID {
			out = append(out, t.Clone())
		}
	}
	l.mu.RUnlock()

	sortNewestFirst(out)
	return out
}

// ListByStatus returns snapshots of every task currently in the given
// status, newest first.
func (l *Ledger) ListByStatus(status task.Status) []*task.Task {
	l.mu.RLock()
	out := make([]*task.Task, 0)
	for _, t := range l.tasks {
		if t.Status == status {
			out = append(out, t.Clone())
		}
	}
	l.mu.RUnlock()

	sortNewestFirst(out)
	return out
}

// Count returns the total number of recorded tasks.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tasks)
}

func sortNewestFirst(tasks []*task.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

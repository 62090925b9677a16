// Package task defines the delegated-task domain entity and its lifecycle.
package task

import "time"

// Status represents the current state of a delegated task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether the lifecycle permits moving from s to
// next. The lifecycle only moves forward:
//
//	pending     → in_progress | completed | failed | cancelled
//	in_progress → completed | failed | cancelled
//
// Completing or failing straight from pending is allowed: acceptance is a
// courtesy to the delegator, not a precondition for finishing the work.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCompleted ||
			next == StatusFailed || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	default:
		return false
	}
}

// Task tracks one delegation of work between two agents. Every task is
// created together with its delegation envelope; LinkedMessageID holds that
// envelope's id. Tasks are never deleted, only transitioned to a terminal
// status.
type Task struct {
	ID                   string         `json:"task_id"`
	FromAgent            string         `json:"from_agent_id"`
	ToAgent              string         `json:"to_agent_id"`
	LinkedMessageID      string         `json:"linked_message_id"`
	Name                 string         `json:"name"`
	Description          string         `json:"description"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	RequiredCapabilities []string       `json:"required_capabilities,omitempty"`
	Status               Status         `json:"status"`
	CreatedAt            time.Time      `json:"created_at"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	CompletionNotes      string         `json:"completion_notes,omitempty"`
	ResultData           map[string]any `json:"result_data,omitempty"`
}

// Clone returns a deep copy. Mutating the copy's maps, capability list or
// completion timestamp cannot affect the original.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Parameters != nil {
		c.Parameters = make(map[string]any, len(t.Parameters))
		for k, v := range t.Parameters {
			c.Parameters[k] = v
		}
	}
	if t.RequiredCapabilities != nil {
		c.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.ResultData != nil {
		c.ResultData = make(map[string]any, len(t.ResultData))
		for k, v := range t.ResultData {
			c.ResultData[k] = v
		}
	}
	return &c
}

// DelegateRequest holds the fields needed to delegate a new task.
type DelegateRequest struct {
	FromAgent            string         `json:"from_agent_id"`
	ToAgent              string         `json:"to_agent_id"`
	Name                 string         `json:"name"`
	Description          string         `json:"description"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	RequiredCapabilities []string       `json:"required_capabilities,omitempty"`
}

// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnknownAgent indicates an agent identifier that the directory cannot resolve.
var ErrUnknownAgent = errors.New("unknown agent")

// ErrNotAnAgent indicates an identifier that resolves to an entity without the
// agent capability. Both sides of a send must be agents.
var ErrNotAnAgent = errors.New("not an agent")

// ErrInvalidTransition indicates a task state change that the lifecycle
// does not permit (e.g. completing a cancelled task).
var ErrInvalidTransition = errors.New("invalid task transition")

// ErrMailboxFull indicates the recipient's mailbox has reached its configured
// capacity and backpressure rejected the send.
var ErrMailboxFull = errors.New("mailbox full")

// ErrValidation indicates a request failed field validation.
var ErrValidation = errors.New("validation failed")

// ErrConflict indicates the entity already exists.
var ErrConflict = errors.New("already exists")

// ErrNotConfigured indicates an optional collaborator was not supplied at
// construction time. Callers must treat this as a typed state, never probe
// for the collaborator at runtime.
var ErrNotConfigured = errors.New("collaborator not configured")

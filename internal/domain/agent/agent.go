// Package agent defines the directory record for an agent identity and its
// advertised capabilities.
package agent

import "time"

// Status represents an agent's advertised availability.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

// Identity is the directory's answer to "who is this identifier?". The bus
// only ever consults Exists and IsAgent; the rest is directory glue.
type Identity struct {
	ID      string `json:"id"`
	Exists  bool   `json:"exists"`
	IsAgent bool   `json:"is_agent"`
	Name    string `json:"name,omitempty"`
}

// Capabilities is an agent's advertised service surface, owned by the
// capability registry. Services and Skills preserve registration order.
type Capabilities struct {
	Services           []string           `json:"services"`
	Skills             []string           `json:"skills"`
	Pricing            map[string]float64 `json:"pricing,omitempty"`
	Status             Status             `json:"status"`
	MaxConcurrentTasks int                `json:"max_concurrent_tasks"`
	ActiveTasks        int                `json:"active_tasks"`
}

// Record is a full directory entry: identity plus capability profile.
type Record struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	IsAgent      bool         `json:"is_agent"`
	Active       bool         `json:"active"`
	Capabilities Capabilities `json:"capabilities"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// RegisterRequest holds the fields needed to register an agent in the
// directory.
type RegisterRequest struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Services           []string           `json:"services,omitempty"`
	Skills             []string           `json:"skills,omitempty"`
	Pricing            map[string]float64 `json:"pricing,omitempty"`
	MaxConcurrentTasks int                `json:"max_concurrent_tasks,omitempty"`
}

// Identity derives the validator view of a record. Deactivated records
// resolve as nonexistent so a deactivated agent can no longer send or
// receive.
func (r *Record) Identity() Identity {
	if !r.Active {
		return Identity{ID: r.ID, Exists: false}
	}
	return Identity{ID: r.ID, Exists: true, IsAgent: r.IsAgent, Name: r.Name}
}

// Package reputation defines the reputation collaborator port. Scoring
// arithmetic lives entirely outside this system; the core only awards and
// reads rankings.
package reputation

import "context"

// Score is one entry of a ranked reputation listing.
type Score struct {
	AgentID string  `json:"agent_id"`
	Score   float64 `json:"score"`
}

// Awarder is the port interface for reputation side effects and queries.
type Awarder interface {
	// Award credits an agent for completed work. refID links the award to
	// the task or message that earned it. Callers log failures and never
	// let them fail the primary operation.
	Award(ctx context.Context, agentID string, amount float64, reason, refID string) error

	// RankTop returns up to limit agents ordered by descending score.
	RankTop(ctx context.Context, limit int) ([]Score, error)
}

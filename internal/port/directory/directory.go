// Package directory defines the agent directory ports: identity resolution
// consulted by the bus, capability lookup consulted by discovery, and the
// management surface used by the registrar.
package directory

import (
	"context"

	"github.com/arbiterhq/Switchboard/internal/domain/agent"
)

// Resolver answers "does this identifier denote an agent?". The bus calls it
// for both sides of every send. An unknown identifier resolves to an
// Identity with Exists false and a nil error; errors are reserved for
// infrastructure failures.
type Resolver interface {
	Resolve(ctx context.Context, agentID string) (agent.Identity, error)
}

// Registry is the capability lookup surface owned by the directory.
type Registry interface {
	// Lookup returns the agent's capability profile.
	// Returns domain.ErrNotFound for an unknown or deactivated agent.
	Lookup(ctx context.Context, agentID string) (*agent.Capabilities, error)

	// FindByService returns the ids of active agents advertising the named
	// service, in registration order.
	FindByService(ctx context.Context, service string) ([]string, error)
}

// Admin is the directory management surface. It is glue around the core:
// the registrar service and the admin CLI use it, the bus never does.
type Admin interface {
	Register(ctx context.Context, req agent.RegisterRequest) (*agent.Record, error)
	Get(ctx context.Context, agentID string) (*agent.Record, error)
	List(ctx context.Context) ([]agent.Record, error)
	Deactivate(ctx context.Context, agentID string) error
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arbiterhq/Switchboard/internal/domain"
	"github.com/arbiterhq/Switchboard/internal/domain/agent"
	"github.com/arbiterhq/Switchboard/internal/port/directory"
	"github.com/arbiterhq/Switchboard/internal/port/stream"
)

// RegistrarService manages directory entries: registering agents, listing
// them, and deactivating them. Directory writes invalidate the discovery
// cache and emit stream events.
type RegistrarService struct {
	admin     directory.Admin
	discovery *DiscoveryService
	events    stream.Stream
}

// NewRegistrarService creates a RegistrarService over the directory's
// management surface. Discovery and stream collaborators are optional.
func NewRegistrarService(admin directory.Admin) *RegistrarService {
	return &RegistrarService{admin: admin}
}

// SetDiscovery attaches the discovery service for cache invalidation.
func (s *RegistrarService) SetDiscovery(d *DiscoveryService) {
	s.discovery = d
}

// SetStream attaches the optional bus event stream.
func (s *RegistrarService) SetStream(es stream.Stream) {
	s.events = es
}

// Register creates a directory record after validating the request.
func (s *RegistrarService) Register(ctx context.Context, req agent.RegisterRequest) (*agent.Record, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("register: agent id is required: %w", domain.ErrValidation)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("register: agent name is required: %w", domain.ErrValidation)
	}
	if req.MaxConcurrentTasks < 0 {
		return nil, fmt.Errorf("register: max_concurrent_tasks must be >= 0: %w", domain.ErrValidation)
	}

	rec, err := s.admin.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", req.ID, err)
	}

	slog.Info("agent registered", "agent_id", rec.ID, "name", rec.Name)

	s.invalidate(ctx, rec.ID)
	publishEvent(ctx, s.events, stream.SubjectAgentRegistered, stream.AgentRegisteredPayload{
		AgentID: rec.ID,
		Name:    rec.Name,
		IsAgent: rec.IsAgent,
	})

	return rec, nil
}

// Get returns the directory record for the given agent.
func (s *RegistrarService) Get(ctx context.Context, agentID string) (*agent.Record, error) {
	return s.admin.Get(ctx, agentID)
}

// List returns all directory records, active and deactivated.
func (s *RegistrarService) List(ctx context.Context) ([]agent.Record, error) {
	return s.admin.List(ctx)
}

// Deactivate marks the agent's record inactive. From that point the agent
// fails identity validation on both sides of a send.
func (s *RegistrarService) Deactivate(ctx context.Context, agentID string) error {
	if err := s.admin.Deactivate(ctx, agentID); err != nil {
		return fmt.Errorf("deactivate %s: %w", agentID, err)
	}

	slog.Info("agent deactivated", "agent_id", agentID)

	s.invalidate(ctx, agentID)
	publishEvent(ctx, s.events, stream.SubjectAgentDeactivated, stream.AgentDeactivatedPayload{
		AgentID: agentID,
	})

	return nil
}

func (s *RegistrarService) invalidate(ctx context.Context, agentID string) {
	if s.discovery != nil {
		s.discovery.Invalidate(ctx, agentID)
	}
}

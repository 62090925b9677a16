package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbiterhq/Switchboard/internal/domain"
	"github.com/arbiterhq/Switchboard/internal/domain/agent"
	"github.com/arbiterhq/Switchboard/internal/port/cache"
	"github.com/arbiterhq/Switchboard/internal/port/directory"
	"github.com/arbiterhq/Switchboard/internal/port/reputation"
)

const defaultTopLimit = 10

// DiscoveryService answers capability questions about agents: what an agent
// offers, who offers a service, and who ranks highest by reputation.
// Lookups go through an optional cache in front of the directory.
type DiscoveryService struct {
	registry directory.Registry
	cache    cache.Cache
	cacheTTL time.Duration
	rep      reputation.Awarder
}

// NewDiscoveryService creates a DiscoveryService over the capability
// registry. Cache and reputation collaborators are optional.
func NewDiscoveryService(registry directory.Registry) *DiscoveryService {
	return &DiscoveryService{registry: registry}
}

// SetCache attaches a cache for capability lookups with the given TTL.
func (s *DiscoveryService) SetCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// SetReputation attaches the optional reputation collaborator, enabling
// TopByReputation.
func (s *DiscoveryService) SetReputation(rep reputation.Awarder) {
	s.rep = rep
}

// Lookup returns the agent's capability profile, serving from cache when
// possible. Cache failures fall through to the registry; a cache entry that
// no longer unmarshals is dropped.
func (s *DiscoveryService) Lookup(ctx context.Context, agentID string) (*agent.Capabilities, error) {
	key := capsKey(agentID)

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var caps agent.Capabilities
			if jsonErr := json.Unmarshal(data, &caps); jsonErr == nil {
				return &caps, nil
			}
			_ = s.cache.Delete(ctx, key)
		}
	}

	caps, err := s.registry.Lookup(ctx, agentID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(caps); err == nil {
			if setErr := s.cache.Set(ctx, key, data, s.cacheTTL); setErr != nil {
				slog.Debug("capability cache set failed", "agent_id", agentID, "error", setErr)
			}
		}
	}

	return caps, nil
}

// FindByService returns the ids of active agents advertising the named
// service, in registration order.
func (s *DiscoveryService) FindByService(ctx context.Context, service string) ([]string, error) {
	if service == "" {
		return nil, fmt.Errorf("service name is required: %w", domain.ErrValidation)
	}
	return s.registry.FindByService(ctx, service)
}

// TopByReputation returns up to limit agents ranked by descending
// reputation score. Requires the reputation collaborator; without one the
// ranking is unanswerable and the caller gets a typed error, never a
// silent empty list.
func (s *DiscoveryService) TopByReputation(ctx context.Context, limit int) ([]reputation.Score, error) {
	if s.rep == nil {
		return nil, fmt.Errorf("reputation ranking: %w", domain.ErrNotConfigured)
	}
	if limit <= 0 {
		limit = defaultTopLimit
	}
	scores, err := s.rep.RankTop(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("rank top %d: %w", limit, err)
	}
	return scores, nil
}

// Invalidate drops the agent's cached capability profile. The registrar
// calls this after directory writes.
func (s *DiscoveryService) Invalidate(ctx context.Context, agentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, capsKey(agentID)); err != nil {
		slog.Debug("capability cache invalidate failed", "agent_id", agentID, "error", err)
	}
}

func capsKey(agentID string) string {
	return "caps:" + agentID
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbiterhq/Switchboard/internal/domain"
	"github.com/arbiterhq/Switchboard/internal/domain/agent"
)

// Store is the Postgres-backed agent directory. It implements
// directory.Resolver, directory.Registry, and directory.Admin.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const recordColumns = `id, name, is_agent, active, services, skills, pricing, status, max_concurrent_tasks, active_tasks, created_at, updated_at`

// Resolve answers the bus's identity check. Unknown ids resolve to a
// nonexistent identity with a nil error; errors are infrastructure only.
func (s *Store) Resolve(ctx context.Context, agentID string) (agent.Identity, error) {
	rec, err := s.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return agent.Identity{ID: agentID}, nil
		}
		return agent.Identity{}, err
	}
	return rec.Identity(), nil
}

// Lookup returns the capability profile of an active agent.
func (s *Store) Lookup(ctx context.Context, agentID string) (*agent.Capabilities, error) {
	rec, err := s.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !rec.Active {
		return nil, fmt.Errorf("lookup agent %s: %w", agentID, domain.ErrNotFound)
	}
	caps := rec.Capabilities
	return &caps, nil
}

// FindByService returns the ids of active agents advertising the named
// service, in registration order.
func (s *Store) FindByService(ctx context.Context, service string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM agents WHERE active AND $1 = ANY(services) ORDER BY created_at`, service)
	if err != nil {
		return nil, fmt.Errorf("find by service %s: %w", service, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("find by service %s: %w", service, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Register inserts a new directory entry. A duplicate id is a conflict.
func (s *Store) Register(ctx context.Context, req agent.RegisterRequest) (*agent.Record, error) {
	pricingJSON, err := json.Marshal(req.Pricing)
	if err != nil {
		return nil, fmt.Errorf("marshal pricing: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO agents (id, name, services, skills, pricing, max_concurrent_tasks)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+recordColumns,
		req.ID, req.Name, pgTextArray(req.Services), pgTextArray(req.Skills), pricingJSON, req.MaxConcurrentTasks)

	rec, err := scanRecord(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("register agent %s: %w", req.ID, domain.ErrConflict)
		}
		return nil, fmt.Errorf("register agent %s: %w", req.ID, err)
	}
	return &rec, nil
}

// Get returns the full directory entry, active or not.
func (s *Store) Get(ctx context.Context, agentID string) (*agent.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM agents WHERE id = $1`, agentID)

	rec, err := scanRecord(row)
	if err != nil {
		return nil, notFoundWrap(err, "get agent %s", agentID)
	}
	return &rec, nil
}

// List returns every directory entry, newest first.
func (s *Store) List(ctx context.Context) ([]agent.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var records []agent.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list agents: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Deactivate marks an agent inactive and offline. Already-inactive agents
// report not found, matching resolution behavior.
func (s *Store) Deactivate(ctx context.Context, agentID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents SET active = false, status = $2, updated_at = now()
		 WHERE id = $1 AND active`, agentID, agent.StatusOffline)
	return execExpectOne(tag, err, "deactivate agent %s", agentID)
}

func scanRecord(row scannable) (agent.Record, error) {
	var (
		rec         agent.Record
		pricingJSON []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.IsAgent, &rec.Active,
		&rec.Capabilities.Services, &rec.Capabilities.Skills, &pricingJSON,
		&rec.Capabilities.Status, &rec.Capabilities.MaxConcurrentTasks,
		&rec.Capabilities.ActiveTasks, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return agent.Record{}, err
		}
		return agent.Record{}, fmt.Errorf("scan agent: %w", err)
	}
	if len(pricingJSON) > 0 {
		if err := json.Unmarshal(pricingJSON, &rec.Capabilities.Pricing); err != nil {
			return agent.Record{}, fmt.Errorf("unmarshal pricing: %w", err)
		}
	}
	return rec, nil
}

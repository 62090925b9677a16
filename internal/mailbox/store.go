// Package mailbox holds the in-memory per-agent mailboxes: ordered pending
// envelopes with lazy expiry filtering and id-keyed acknowledgement.
package mailbox

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arbiterhq/Switchboard/internal/domain"
	"github.com/arbiterhq/Switchboard/internal/domain/message"
)

// Store owns all mailboxes. One mailbox exists per agent identity, created
// lazily on the first envelope addressed to it. Lock granularity is
// per-mailbox: a registry RWMutex guards only the box map, so traffic on
// different agents' mailboxes never serializes.
type Store struct {
	mu       sync.RWMutex
	boxes    map[string]*box
	capacity int // max envelopes per mailbox; 0 = unbounded

	now func() time.Time // for testing
}

// box is a single agent's mailbox. Entries stay in insertion order; ordering
// for reads is applied at listing time with a stable sort, which preserves
// first-inserted-first-listed among equal priority and timestamp.
type box struct {
	mu      sync.Mutex
	entries []*message.Envelope
}

// NewStore creates a Store. capacity bounds each mailbox (0 = unbounded).
func NewStore(capacity int) *Store {
	return &Store{
		boxes:    make(map[string]*box),
		capacity: capacity,
		now:      time.Now,
	}
}

// Enqueue appends an envelope to the agent's mailbox, creating the mailbox
// if needed. The stored copy is a clone, so later mutation of the caller's
// envelope cannot reach the mailbox. A duplicate id is appended as an
// additional envelope: ids are only consulted on Acknowledge, and retried
// sends are deduplicated above the mailbox layer.
func (s *Store) Enqueue(agentID string, env *message.Envelope) error {
	b := s.box(agentID, true)

	b.mu.Lock()
	defer b.mu.Unlock()

	if s.capacity > 0 && len(b.entries) >= s.capacity {
		return fmt.Errorf("mailbox %s at capacity %d: %w", agentID, s.capacity, domain.ErrMailboxFull)
	}
	b.entries = append(b.entries, env.Clone())
	return nil
}

// ListPending returns the agent's pending envelopes: everything not yet
// acknowledged whose expiry is unset or in the future, ordered by priority
// then creation time. The result is a snapshot of clones; a missing mailbox
// yields an empty slice, not an error.
func (s *Store) ListPending(agentID string) []*message.Envelope {
	b := s.box(agentID, false)
	if b == nil {
		return []*message.Envelope{}
	}

	now := s.now()

	b.mu.Lock()
	pending := make([]*message.Envelope, 0, len(b.entries))
	for _, e := range b.entries {
		if e.Expired(now) {
			continue
		}
		pending = append(pending, e.Clone())
	}
	b.mu.Unlock()

	sort.SliceStable(pending, func(i, j int) bool {
		ri, rj := pending[i].Priority.Rank(), pending[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// Acknowledge removes the envelope with the given id from the agent's
// mailbox. Removal is id-based, not visibility-based: an expired envelope
// that was never listed is still acknowledgeable. A missing mailbox and a
// missing id both report domain.ErrNotFound.
func (s *Store) Acknowledge(agentID, messageID string) error {
	b := s.box(agentID, false)
	if b == nil {
		return fmt.Errorf("no mailbox for agent %s: %w", agentID, domain.ErrNotFound)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.entries {
		if e.ID == messageID {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("message %s not pending for agent %s: %w", messageID, agentID, domain.ErrNotFound)
}

// PendingCount returns the number of unexpired envelopes waiting for the
// agent, without the ordering work of ListPending.
func (s *Store) PendingCount(agentID string) int {
	b := s.box(agentID, false)
	if b == nil {
		return 0
	}

	now := s.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, e := range b.entries {
		if !e.Expired(now) {
			count++
		}
	}
	return count
}

// RemoveExpired drops every expired envelope from every mailbox and returns
// how many were removed. Correctness never depends on this: ListPending
// filters lazily. The sweep only reclaims memory in unread mailboxes.
func (s *Store) RemoveExpired() int {
	s.mu.RLock()
	all := make([]*box, 0, len(s.boxes))
	for _, b := range s.boxes {
		all = append(all, b)
	}
	s.mu.RUnlock()

	now := s.now()

	removed := 0
	for _, b := range all {
		b.mu.Lock()
		kept := b.entries[:0]
		for _, e := range b.entries {
			if e.Expired(now) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		b.entries = kept
		b.mu.Unlock()
	}
	return removed
}

// box returns the agent's mailbox, optionally creating it. Reads take the
// registry read lock; creation upgrades to the write lock with a re-check.
func (s *Store) box(agentID string, create bool) *box {
	s.mu.RLock()
	b := s.boxes[agentID]
	s.mu.RUnlock()

	if b != nil || !create {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b = s.boxes[agentID]; b == nil {
		b = &box{}
		s.boxes[agentID] = b
	}
	return b
}

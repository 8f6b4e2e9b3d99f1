// Package store holds the shared in-memory message collection the
// reconciliation core operates on. The store is an explicit, injectable
// object owned by the application shell, not a package-level singleton, so
// tests construct a fresh one per case.
package store

import (
	"sync"

	"github.com/commsync/commsync/internal/models"
)

// messageKey identifies a message within the store. Message IDs are only
// unique within a channel, so the key includes the channel tag.
type messageKey struct {
	channel models.Channel
	id      string
}

// Store is the shared message collection. Merge is commutative and
// idempotent by message key (last-write-wins on duplicates), so the arrival
// order of concurrent fetch batches does not affect the final state.
type Store struct {
	mu       sync.RWMutex
	messages map[messageKey]*models.Message
	order    []messageKey
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		messages: make(map[messageKey]*models.Message),
	}
}

// Merge adds a batch of messages to the store and returns how many were new.
// Messages are normalized on the way in (default timestamp, default labels).
// A message whose key already exists replaces the stored copy in place,
// keeping the original insertion position.
func (s *Store) Merge(batch []*models.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, msg := range batch {
		if msg == nil || msg.ID == "" {
			continue
		}
		msg.Normalize()
		key := messageKey{channel: msg.Channel, id: msg.ID}
		if _, exists := s.messages[key]; !exists {
			s.order = append(s.order, key)
			added++
		}
		s.messages[key] = msg
	}
	return added
}

// Snapshot returns the stored messages in insertion order. The slice is
// fresh on every call; callers may sort or filter it freely.
func (s *Store) Snapshot() []*models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Message, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.messages[key])
	}
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

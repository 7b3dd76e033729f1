package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"whalewatch/internal/storage"
)

// NarrativeStore is an in-memory implementation of storage.NarrativeStore.
type NarrativeStore struct {
	mu        sync.RWMutex
	byAddress map[string]*entry
	seq       uint64
	now       func() time.Time
}

type entry struct {
	narrative storage.TokenNarrative
	seq       uint64 // write order, breaks timestamp ties
}

// NewNarrativeStore creates an empty store.
func NewNarrativeStore() *NarrativeStore {
	return &NarrativeStore{
		byAddress: make(map[string]*entry),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UpsertNarrative inserts or fully replaces the narrative for n.Address.
func (s *NarrativeStore) UpsertNarrative(_ context.Context, n storage.TokenNarrative) (storage.TokenNarrative, error) {
	if strings.TrimSpace(n.Address) == "" {
		return storage.TokenNarrative{}, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := n
	stored.ImageReferences = append([]string{}, n.ImageReferences...)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if existing, ok := s.byAddress[n.Address]; ok {
		stored.CreatedAt = existing.narrative.CreatedAt
	}

	s.seq++
	s.byAddress[n.Address] = &entry{narrative: stored, seq: s.seq}
	return copyNarrative(stored), nil
}

// GetNarrative returns the narrative for address or storage.ErrNotFound.
func (s *NarrativeStore) GetNarrative(_ context.Context, address string) (storage.TokenNarrative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byAddress[address]
	if !ok {
		return storage.TokenNarrative{}, storage.ErrNotFound
	}
	return copyNarrative(e.narrative), nil
}

// ListRecentNarratives lists narratives most recently written first.
func (s *NarrativeStore) ListRecentNarratives(_ context.Context, limit int) ([]storage.TokenNarrative, error) {
	return s.selectNewest(func(storage.TokenNarrative) bool { return true }, limit), nil
}

// SearchNarratives matches query as a case-insensitive substring of field.
func (s *NarrativeStore) SearchNarratives(_ context.Context, field storage.SearchField, query string, limit int) ([]storage.TokenNarrative, error) {
	needle := strings.ToLower(query)
	match := func(n storage.TokenNarrative) bool {
		haystack := n.Name
		if field == storage.SearchByAddress {
			haystack = n.Address
		}
		return strings.Contains(strings.ToLower(haystack), needle)
	}
	return s.selectNewest(match, limit), nil
}

// Len reports how many addresses are stored.
func (s *NarrativeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byAddress)
}

func (s *NarrativeStore) selectNewest(match func(storage.TokenNarrative) bool, limit int) []storage.TokenNarrative {
	s.mu.RLock()
	matched := make([]*entry, 0, len(s.byAddress))
	for _, e := range s.byAddress {
		if match(e.narrative) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.narrative.UpdatedAt.Equal(b.narrative.UpdatedAt) {
			return a.narrative.UpdatedAt.After(b.narrative.UpdatedAt)
		}
		return a.seq > b.seq
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]storage.TokenNarrative, 0, len(matched))
	for _, e := range matched {
		out = append(out, copyNarrative(e.narrative))
	}
	return out
}

func copyNarrative(n storage.TokenNarrative) storage.TokenNarrative {
	n.ImageReferences = append([]string{}, n.ImageReferences...)
	return n
}

var _ storage.NarrativeStore = (*NarrativeStore)(nil)

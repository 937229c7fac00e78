package record

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"nidapi/internal/usage/models"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/sentinel"
)

// InMemoryStore keeps usage records in insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*models.Record
	seen    map[id.UsageRecordID]struct{}
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{seen: make(map[id.UsageRecordID]struct{})}
}

func (s *InMemoryStore) Append(_ context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[r.ID]; dup {
		return fmt.Errorf("usage record %s: %w", r.ID, sentinel.ErrConflict)
	}
	cp := *r
	s.records = append(s.records, &cp)
	s.seen[r.ID] = struct{}{}
	return nil
}

// ListByAPIKeys returns the newest records for any of keyIDs, newest first.
func (s *InMemoryStore) ListByAPIKeys(_ context.Context, keyIDs []id.APIKeyID, limit int) ([]*models.Record, error) {
	if len(keyIDs) == 0 || limit <= 0 {
		return nil, nil
	}
	wanted := make(map[id.APIKeyID]struct{}, len(keyIDs))
	for _, k := range keyIDs {
		wanted[k] = struct{}{}
	}

	s.mu.RLock()
	var out []*models.Record
	for _, r := range s.records {
		if _, ok := wanted[r.APIKeyID]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

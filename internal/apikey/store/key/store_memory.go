package key

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nidapi/internal/apikey/models"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/sentinel"
)

// InMemoryStore indexes keys by ID and by hash.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.APIKeyID]*models.APIKey
	byHash map[string]id.APIKeyID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.APIKeyID]*models.APIKey),
		byHash: make(map[string]id.APIKeyID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, k *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byHash[k.KeyHash]; exists {
		return fmt.Errorf("api key hash: %w", sentinel.ErrConflict)
	}
	if _, exists := s.byID[k.ID]; exists {
		return fmt.Errorf("api key %s: %w", k.ID, sentinel.ErrConflict)
	}
	cp := *k
	s.byID[k.ID] = &cp
	s.byHash[k.KeyHash] = k.ID
	return nil
}

func (s *InMemoryStore) FindByHash(_ context.Context, keyHash string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keyID, ok := s.byHash[keyHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[keyID]
	return &cp, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.byID[keyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principalID id.PrincipalID) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.APIKey
	for _, k := range s.byID {
		if k.PrincipalID == principalID {
			cp := *k
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) SetActive(_ context.Context, keyID id.APIKeyID, active bool, now time.Time) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byID[keyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	k.IsActive = active
	k.UpdatedAt = now
	cp := *k
	return &cp, nil
}

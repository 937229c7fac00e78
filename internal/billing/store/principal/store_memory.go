package principal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nidapi/internal/billing/models"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/sentinel"
)

// InMemoryStore keeps principals in a map. Debit is check-and-set under the
// store mutex, so balances never go negative even without the ledger lock.
type InMemoryStore struct {
	mu         sync.RWMutex
	principals map[id.PrincipalID]*models.Principal
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{principals: make(map[id.PrincipalID]*models.Principal)}
}

func (s *InMemoryStore) Create(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.principals[p.ID]; exists {
		return fmt.Errorf("principal %s: %w", p.ID, sentinel.ErrConflict)
	}
	cp := *p
	s.principals[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[principalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// FindByIDForUpdate is FindByID; callers serialize through the ledger's shard lock.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	return s.FindByID(ctx, principalID)
}

func (s *InMemoryStore) Debit(_ context.Context, principalID id.PrincipalID, amount int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if p.TokensBalance < amount {
		return p.TokensBalance, sentinel.ErrInsufficientBalance
	}
	p.TokensBalance -= amount
	p.UpdatedAt = now
	return p.TokensBalance, nil
}

func (s *InMemoryStore) Credit(_ context.Context, principalID id.PrincipalID, amount int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	p.TokensBalance += amount
	p.UpdatedAt = now
	return p.TokensBalance, nil
}

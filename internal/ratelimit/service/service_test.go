package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"nidapi/internal/ratelimit/models"
	"nidapi/internal/ratelimit/store/bucket"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/circuit"
)

// flakyStore wraps a real bucket store and fails while down is set.
type flakyStore struct {
	*bucket.InMemoryBucketStore
	down  atomic.Bool
	calls atomic.Int64
}

func (f *flakyStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	f.calls.Add(1)
	if f.down.Load() {
		return nil, errors.New("redis: connection refused")
	}
	return f.InMemoryBucketStore.Allow(ctx, key, limit, window)
}

type transitions struct{ states []string }

func (t *transitions) IncCircuitTransition(_ string, state string) {
	t.states = append(t.states, state)
}

type RateLimitServiceSuite struct {
	suite.Suite
	ctx      context.Context
	primary  *flakyStore
	fallback *bucket.InMemoryBucketStore
	metrics  *transitions
	service  *Service
}

func TestRateLimitServiceSuite(t *testing.T) {
	suite.Run(t, new(RateLimitServiceSuite))
}

func (s *RateLimitServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.primary = &flakyStore{InMemoryBucketStore: bucket.New()}
	s.fallback = bucket.New()
	s.metrics = &transitions{}

	var err error
	s.service, err = New(s.primary, models.Policy{RequestsPerWindow: 3, Window: time.Hour},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithFallback(s.fallback),
		WithMetrics(s.metrics),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(2))),
	)
	s.Require().NoError(err)
}

func (s *RateLimitServiceSuite) TestNewValidates() {
	_, err := New(nil, models.Policy{RequestsPerWindow: 1, Window: time.Second})
	s.Error(err)
	_, err = New(bucket.New(), models.Policy{})
	s.Error(err)
}

func (s *RateLimitServiceSuite) TestDeniesOverBudget() {
	principalID := id.NewPrincipalID()
	for range 3 {
		result, err := s.service.Allow(s.ctx, principalID)
		s.Require().NoError(err)
		s.True(result.Allowed)
	}

	result, err := s.service.Allow(s.ctx, principalID)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Positive(result.RetryAfter)

	other, err := s.service.Allow(s.ctx, id.NewPrincipalID())
	s.Require().NoError(err)
	s.True(other.Allowed, "budgets are per principal")
}

func (s *RateLimitServiceSuite) TestFallsBackWhenPrimaryFails() {
	principalID := id.NewPrincipalID()
	s.primary.down.Store(true)

	for range 3 {
		result, err := s.service.Allow(s.ctx, principalID)
		s.Require().NoError(err)
		s.True(result.Allowed)
	}
	result, err := s.service.Allow(s.ctx, principalID)
	s.Require().NoError(err)
	s.False(result.Allowed, "fallback still enforces the budget")
	s.Equal([]string{"open"}, s.metrics.states)
}

func (s *RateLimitServiceSuite) TestCircuitClosesAfterRecovery() {
	principalID := id.NewPrincipalID()
	s.primary.down.Store(true)
	_, _ = s.service.Allow(s.ctx, principalID)
	_, _ = s.service.Allow(s.ctx, principalID)
	s.Require().True(s.service.breaker.IsOpen())

	s.primary.down.Store(false)
	_, _ = s.service.Allow(s.ctx, principalID)
	_, _ = s.service.Allow(s.ctx, principalID)

	s.False(s.service.breaker.IsOpen())
	s.Equal([]string{"open", "closed"}, s.metrics.states)
}

func (s *RateLimitServiceSuite) TestReset() {
	principalID := id.NewPrincipalID()
	for range 4 {
		_, _ = s.service.Allow(s.ctx, principalID)
	}
	s.Require().NoError(s.service.Reset(s.ctx, principalID))

	result, err := s.service.Allow(s.ctx, principalID)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func TestWithoutFallbackErrorsPropagate(t *testing.T) {
	primary := &flakyStore{InMemoryBucketStore: bucket.New()}
	primary.down.Store(true)
	svc, err := New(primary, models.Policy{RequestsPerWindow: 1, Window: time.Minute})
	require.NoError(t, err)

	_, err = svc.Allow(context.Background(), id.NewPrincipalID())
	assert.Error(t, err)
}

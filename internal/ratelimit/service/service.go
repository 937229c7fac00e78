package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nidapi/internal/ratelimit/models"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/circuit"
)

// BucketStore defines the persistence interface for rate limit buckets/counters.
// Keys are simple strings - validation happens at the boundary.
type BucketStore interface {
	// Allow checks if a request is allowed and increments the counter.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)

	// AllowN checks if a request with custom cost is allowed.
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error)

	// Reset clears the rate limit counter for a key.
	Reset(ctx context.Context, key string) error

	// GetCurrentCount returns the current request count for a key.
	GetCurrentCount(ctx context.Context, key string) (int, error)
}

// CircuitMetrics observes breaker transitions. Optional.
type CircuitMetrics interface {
	IncCircuitTransition(name, state string)
}

// Service applies the per-principal request budget. When a fallback store is
// configured, primary store failures trip a circuit breaker and requests are
// counted in the fallback until the primary recovers.
type Service struct {
	policy   models.Policy
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  CircuitMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m CircuitMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFallback sets the store used while the primary is failing.
func WithFallback(store BucketStore) Option {
	return func(s *Service) {
		s.fallback = store
	}
}

// WithBreaker overrides the default breaker (5 failures open, 3 successes close).
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

func New(primary BucketStore, policy models.Policy, opts ...Option) (*Service, error) {
	if primary == nil {
		return nil, errors.New("bucket store is required")
	}
	if _, err := models.NewPolicy(policy.RequestsPerWindow, policy.Window); err != nil {
		return nil, err
	}
	s := &Service{
		policy:  policy,
		primary: primary,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("ratelimit-buckets")
	}
	return s, nil
}

// Policy returns the configured budget.
func (s *Service) Policy() models.Policy { return s.policy }

// Allow counts one request for principalID and reports whether it fits the
// budget. An error means no store could answer; callers fail open.
func (s *Service) Allow(ctx context.Context, principalID id.PrincipalID) (*models.RateLimitResult, error) {
	key := models.NewPrincipalRateLimitKey(principalID)

	if s.fallback == nil {
		return s.primary.Allow(ctx, key, s.policy.RequestsPerWindow, s.policy.Window)
	}

	if s.breaker.IsOpen() {
		// probe the primary; its answer is only used once the circuit closes
		if _, err := s.primary.Allow(ctx, key, s.policy.RequestsPerWindow, s.policy.Window); err != nil {
			s.breaker.RecordFailure()
		} else if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.onTransition(ctx, "closed")
		}
		return s.fallback.Allow(ctx, key, s.policy.RequestsPerWindow, s.policy.Window)
	}

	result, err := s.primary.Allow(ctx, key, s.policy.RequestsPerWindow, s.policy.Window)
	if err == nil {
		s.breaker.RecordSuccess()
		return result, nil
	}

	s.logger.WarnContext(ctx, "rate limit store failed", "error", err, "breaker", s.breaker.Name())
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.onTransition(ctx, "open")
	}
	return s.fallback.Allow(ctx, key, s.policy.RequestsPerWindow, s.policy.Window)
}

// Reset clears a principal's counters in every store.
func (s *Service) Reset(ctx context.Context, principalID id.PrincipalID) error {
	key := models.NewPrincipalRateLimitKey(principalID)
	err := s.primary.Reset(ctx, key)
	if s.fallback != nil {
		err = errors.Join(err, s.fallback.Reset(ctx, key))
	}
	return err
}

func (s *Service) onTransition(ctx context.Context, state string) {
	s.logger.WarnContext(ctx, "rate limit circuit state changed",
		"breaker", s.breaker.Name(),
		"state", state,
	)
	if s.metrics != nil {
		s.metrics.IncCircuitTransition(s.breaker.Name(), state)
	}
}

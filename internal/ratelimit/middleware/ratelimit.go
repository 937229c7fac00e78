package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"nidapi/internal/ratelimit/models"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/httputil"
	"nidapi/pkg/requestcontext"
)

// Envelope text for throttled requests.
const (
	MsgThrottled     = "Request was throttled"
	throttledDetailF = "Request was throttled. Expected available in %d seconds."
)

type Limiter interface {
	Allow(ctx context.Context, principalID id.PrincipalID) (*models.RateLimitResult, error)
}

// UsageRecorder logs throttled attempts so they show up in the principal's
// usage history.
type UsageRecorder interface {
	RecordRequest(ctx context.Context, tokensUsed int64, status int)
}

type RejectionMetrics interface {
	IncRateLimitRejection()
}

type Middleware struct {
	limiter  Limiter
	usage    UsageRecorder
	metrics  RejectionMetrics
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithUsageRecorder(u UsageRecorder) Option {
	return func(m *Middleware) {
		m.usage = u
	}
}

func WithMetrics(metrics RejectionMetrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

func New(limiter Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimitPrincipal enforces the per-principal budget. It must run after API
// key authentication; requests without a principal pass through untouched.
func (m *Middleware) RateLimitPrincipal() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principalID := requestcontext.PrincipalID(ctx)
			if m.disabled || principalID.IsNil() {
				next.ServeHTTP(w, r)
				return
			}

			result, err := m.limiter.Allow(ctx, principalID)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check principal rate limit",
					"error", err,
					"principal_id", principalID.String(),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				if m.metrics != nil {
					m.metrics.IncRateLimitRejection()
				}
				writeThrottled(w, result)
				if m.usage != nil {
					m.usage.RecordRequest(ctx, 0, http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeThrottled(w http.ResponseWriter, result *models.RateLimitResult) {
	retryAfter := max(result.RetryAfter, 1)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteFailure(w, http.StatusTooManyRequests, MsgThrottled, httputil.ErrorDetail{
		Detail: fmt.Sprintf(throttledDetailF, retryAfter),
	})
}

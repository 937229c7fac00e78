package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"nidapi/internal/usage/models"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/circuit"
	"nidapi/pkg/requestcontext"
)

// Sink labels used in logs and failure metrics.
const (
	SinkStore     = "store"
	SinkFallback  = "fallback"
	SinkPublisher = "publisher"
)

// publisherProbeEvery is how many records pass between publish attempts while
// the publisher circuit is open.
const publisherProbeEvery = 10

// Store persists usage records.
type Store interface {
	Append(ctx context.Context, r *models.Record) error
	ListByAPIKeys(ctx context.Context, keyIDs []id.APIKeyID, limit int) ([]*models.Record, error)
}

// Publisher streams usage records to an external pipeline.
type Publisher interface {
	Publish(ctx context.Context, r *models.Record) error
}

// Metrics observes recorder outcomes. Optional.
type Metrics interface {
	IncUsageRecorded(clientKind string)
	IncUsageRecordFailure(sink string)
	IncCircuitTransition(name, state string)
}

// RecordInput describes one request attempt.
type RecordInput struct {
	APIKeyID       id.APIKeyID
	PrincipalID    id.PrincipalID
	IPAddress      string
	UserAgent      string
	TokensUsed     int64
	ResponseStatus int
}

// Recorder writes the audit trail of metered requests. Recording never fails
// from the caller's point of view: sink errors and panics are logged and
// counted, and the request outcome is left untouched.
type Recorder struct {
	store     Store
	fallback  Store
	publisher Publisher
	logger    *slog.Logger
	metrics   Metrics

	storeBreaker     *circuit.Breaker
	publisherBreaker *circuit.Breaker
	skipped          atomic.Uint64
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithFallback sets a store that receives records the primary store rejects.
func WithFallback(store Store) Option {
	return func(r *Recorder) {
		r.fallback = store
	}
}

// WithPublisher streams every record after it is stored.
func WithPublisher(p Publisher) Option {
	return func(r *Recorder) {
		r.publisher = p
	}
}

// WithBreakers overrides the store and publisher breakers.
func WithBreakers(store, publisher *circuit.Breaker) Option {
	return func(r *Recorder) {
		r.storeBreaker = store
		r.publisherBreaker = publisher
	}
}

func New(store Store, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("usage store is required")
	}
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.storeBreaker == nil {
		r.storeBreaker = circuit.New("usage-store")
	}
	if r.publisherBreaker == nil {
		r.publisherBreaker = circuit.New("usage-publisher")
	}
	return r, nil
}

// RecordRequest records the current request using the principal, key and
// client metadata carried by ctx. Unauthenticated requests are not recorded.
func (r *Recorder) RecordRequest(ctx context.Context, tokensUsed int64, status int) {
	principalID := requestcontext.PrincipalID(ctx)
	if principalID.IsNil() {
		return
	}
	r.Record(ctx, RecordInput{
		APIKeyID:       requestcontext.APIKeyID(ctx),
		PrincipalID:    principalID,
		IPAddress:      requestcontext.ClientIP(ctx),
		UserAgent:      requestcontext.UserAgent(ctx),
		TokensUsed:     tokensUsed,
		ResponseStatus: status,
	})
}

// Record writes one usage record. It never returns an error and never panics.
func (r *Recorder) Record(ctx context.Context, in RecordInput) {
	// the record outlives a client that hung up
	ctx = context.WithoutCancel(ctx)

	rec, err := models.NewRecord(in.APIKeyID, in.PrincipalID, in.IPAddress, in.UserAgent,
		in.TokensUsed, in.ResponseStatus, requestcontext.Now(ctx))
	if err != nil {
		r.fail(ctx, SinkStore, err, "invalid usage record")
		return
	}

	if !r.persist(ctx, rec) {
		return
	}
	if r.metrics != nil {
		r.metrics.IncUsageRecorded(rec.ClientKind)
	}
	if r.publisher != nil {
		r.publish(ctx, rec)
	}
}

func (r *Recorder) persist(ctx context.Context, rec *models.Record) bool {
	err := safely(func() error { return r.store.Append(ctx, rec) })
	if err == nil {
		if _, change := r.storeBreaker.RecordSuccess(); change.Closed {
			r.onTransition(ctx, r.storeBreaker, circuit.StateClosed)
		}
		return true
	}

	r.fail(ctx, SinkStore, err, "failed to log API usage",
		"api_key_id", rec.APIKeyID.String(),
		"response_status", rec.ResponseStatus,
	)
	if _, change := r.storeBreaker.RecordFailure(); change.Opened {
		r.onTransition(ctx, r.storeBreaker, circuit.StateOpen)
	}

	if r.fallback == nil {
		return false
	}
	if err := safely(func() error { return r.fallback.Append(ctx, rec) }); err != nil {
		r.fail(ctx, SinkFallback, err, "failed to log API usage to fallback")
		return false
	}
	return true
}

func (r *Recorder) publish(ctx context.Context, rec *models.Record) {
	if r.publisherBreaker.IsOpen() && r.skipped.Add(1)%publisherProbeEvery != 0 {
		return
	}

	err := safely(func() error { return r.publisher.Publish(ctx, rec) })
	if err == nil {
		if _, change := r.publisherBreaker.RecordSuccess(); change.Closed {
			r.skipped.Store(0)
			r.onTransition(ctx, r.publisherBreaker, circuit.StateClosed)
		}
		return
	}

	r.fail(ctx, SinkPublisher, err, "failed to publish API usage")
	if _, change := r.publisherBreaker.RecordFailure(); change.Opened {
		r.onTransition(ctx, r.publisherBreaker, circuit.StateOpen)
	}
}

// List returns the newest records across keyIDs, newest first. Records that
// only reached the fallback store are merged in.
func (r *Recorder) List(ctx context.Context, keyIDs []id.APIKeyID, limit int) ([]*models.Record, error) {
	out, err := r.store.ListByAPIKeys(ctx, keyIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	if r.fallback == nil {
		return out, nil
	}

	extra, err := r.fallback.ListByAPIKeys(ctx, keyIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("list fallback usage: %w", err)
	}
	out = append(out, extra...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Recorder) fail(ctx context.Context, sink string, err error, msg string, attrs ...any) {
	r.logger.ErrorContext(ctx, msg, append([]any{"sink", sink, "error", err}, attrs...)...)
	if r.metrics != nil {
		r.metrics.IncUsageRecordFailure(sink)
	}
}

func (r *Recorder) onTransition(ctx context.Context, b *circuit.Breaker, state circuit.State) {
	r.logger.WarnContext(ctx, "usage sink circuit state changed",
		"breaker", b.Name(),
		"state", state.String(),
	)
	if r.metrics != nil {
		r.metrics.IncCircuitTransition(b.Name(), state.String())
	}
}

// safely turns a panic in fn into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("usage sink panic: %v", p)
		}
	}()
	return fn()
}

// Package service runs the metered extraction pipeline: balance check,
// validation, extraction and charge inside one ledger transaction, followed
// by usage logging once the transaction has settled.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nidapi/internal/nationalid/codec"
	id "nidapi/pkg/domain"
	"nidapi/pkg/requestcontext"
)

const tracerName = "nidapi/extraction"

// Ledger is the slice of the token ledger the pipeline charges through.
type Ledger interface {
	RunInTx(ctx context.Context, principalID id.PrincipalID, fn func(ctx context.Context) error) error
	HasSufficient(ctx context.Context, principalID id.PrincipalID, amount int64) (bool, error)
	Deduct(ctx context.Context, principalID id.PrincipalID, amount int64) (bool, error)
}

// UsageRecorder logs the attempt. It must not fail or panic.
type UsageRecorder interface {
	RecordRequest(ctx context.Context, tokensUsed int64, status int)
}

// Metrics observes pipeline outcomes. Optional.
type Metrics interface {
	ObserveExtraction(outcome string, d time.Duration)
}

// Service orchestrates one extraction attempt per call.
type Service struct {
	ledger    Ledger
	codecs    *codec.Registry
	usage     UsageRecorder
	tokenCost int64
	logger    *slog.Logger
	metrics   Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTokenCost sets the charge per successful extraction. Defaults to 1.
func WithTokenCost(cost int64) Option {
	return func(s *Service) {
		s.tokenCost = cost
	}
}

// WithTracerProvider overrides the global OpenTelemetry provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

func New(ledger Ledger, codecs *codec.Registry, usage UsageRecorder, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if codecs == nil {
		return nil, errors.New("codec registry is required")
	}
	if usage == nil {
		return nil, errors.New("usage recorder is required")
	}
	s := &Service{
		ledger:    ledger,
		codecs:    codecs,
		usage:     usage,
		tokenCost: 1,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokenCost <= 0 {
		return nil, errors.New("token cost must be positive")
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s, nil
}

// Extract runs the pipeline for the authenticated principal in ctx. It never
// returns an error: every failure is an Outcome the caller renders.
func (s *Service) Extract(ctx context.Context, in Input) *Result {
	start := time.Now()
	principalID := requestcontext.PrincipalID(ctx)

	ctx, span := s.tracer.Start(ctx, "extraction.Extract", trace.WithAttributes(
		attribute.String("nid.scheme", string(in.Scheme)),
		attribute.String("nid.principal_id", principalID.String()),
	))
	defer span.End()

	res := s.runInTx(ctx, principalID, in)

	span.SetAttributes(attribute.String("nid.outcome", string(res.Outcome)))
	if res.Outcome == OutcomeInternalError {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "extraction failed")
		s.logger.ErrorContext(ctx, "error extracting national id",
			"request_id", requestcontext.RequestID(ctx),
			"principal_id", principalID.String(),
			"error", res.Err,
		)
	}

	// logged only after the transaction settled
	_, logSpan := s.tracer.Start(ctx, "extraction.log_usage")
	s.usage.RecordRequest(ctx, res.TokensCharged, res.Status())
	logSpan.End()

	if s.metrics != nil {
		s.metrics.ObserveExtraction(string(res.Outcome), time.Since(start))
	}
	return res
}

func (s *Service) runInTx(ctx context.Context, principalID id.PrincipalID, in Input) (res *Result) {
	defer func() {
		if p := recover(); p != nil {
			res = internalError(fmt.Errorf("panic: %v", p))
		}
	}()

	var out *Result
	err := s.ledger.RunInTx(ctx, principalID, func(ctx context.Context) error {
		var err error
		out, err = s.process(ctx, principalID, in)
		return err
	})
	if err != nil {
		return internalError(err)
	}
	return out
}

// process runs inside the ledger transaction. An error rolls it back.
func (s *Service) process(ctx context.Context, principalID id.PrincipalID, in Input) (*Result, error) {
	ok, err := s.step(ctx, "extraction.balance_check", func() (bool, error) {
		return s.ledger.HasSufficient(ctx, principalID, s.tokenCost)
	})
	if err != nil {
		return nil, fmt.Errorf("balance check: %w", err)
	}
	if !ok {
		return &Result{Outcome: OutcomePaymentRequired}, nil
	}

	if in.Malformed {
		return &Result{Outcome: OutcomeBadRequest, Validation: malformedBodyError()}, nil
	}
	if in.NationalID == "" {
		return &Result{Outcome: OutcomeBadRequest, Validation: requiredError()}, nil
	}

	c, err := s.codecs.Get(in.Scheme)
	if err != nil {
		return nil, err
	}

	_, validateSpan := s.tracer.Start(ctx, "extraction.validate")
	err = c.Validate(in.NationalID)
	validateSpan.End()
	if err != nil {
		var ve *codec.ValidationError
		if errors.As(err, &ve) {
			return &Result{Outcome: OutcomeBadRequest, Validation: ve}, nil
		}
		return nil, fmt.Errorf("validate: %w", err)
	}

	_, extractSpan := s.tracer.Start(ctx, "extraction.extract")
	record, err := c.Extract(in.NationalID)
	extractSpan.End()
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	charged, err := s.step(ctx, "extraction.charge", func() (bool, error) {
		return s.ledger.Deduct(ctx, principalID, s.tokenCost)
	})
	if err != nil {
		return nil, fmt.Errorf("charge: %w", err)
	}
	if !charged {
		return &Result{Outcome: OutcomePaymentRequired}, nil
	}

	return &Result{Outcome: OutcomeSuccess, Record: record, TokensCharged: s.tokenCost}, nil
}

func (s *Service) step(ctx context.Context, name string, fn func() (bool, error)) (bool, error) {
	_, span := s.tracer.Start(ctx, name)
	defer span.End()
	ok, err := fn()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
	}
	return ok, err
}

func internalError(err error) *Result {
	return &Result{Outcome: OutcomeInternalError, Err: err}
}

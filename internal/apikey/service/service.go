package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"nidapi/internal/apikey/models"
	"nidapi/internal/apikey/secrets"
	id "nidapi/pkg/domain"
	dErrors "nidapi/pkg/domain-errors"
	"nidapi/pkg/platform/sentinel"
	"nidapi/pkg/requestcontext"
)

// Messages returned to callers on authentication failure. Not-found,
// inactive and expired keys share one message.
const (
	MsgKeyNotProvided       = "No API key provided"
	MsgKeyInvalidOrInactive = "Invalid or inactive API key"
)

// Store persists API keys.
type Store interface {
	Create(ctx context.Context, k *models.APIKey) error
	FindByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	FindByID(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error)
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*models.APIKey, error)
	SetActive(ctx context.Context, keyID id.APIKeyID, active bool, now time.Time) (*models.APIKey, error)
}

// PrincipalReader confirms a principal exists before a key is issued to it.
type PrincipalReader interface {
	Balance(ctx context.Context, principalID id.PrincipalID) (int64, error)
}

// FailureMetrics counts rejected authentications. Optional.
type FailureMetrics interface {
	IncAuthFailure()
}

// Service authenticates callers and manages key lifecycle.
type Service struct {
	store      Store
	principals PrincipalReader
	logger     *slog.Logger
	metrics    FailureMetrics
	generate   func() (string, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m FailureMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithKeyGenerator replaces the random key source, for tests.
func WithKeyGenerator(fn func() (string, error)) Option {
	return func(s *Service) {
		s.generate = fn
	}
}

func New(store Store, principals PrincipalReader, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("api key store is required")
	}
	if principals == nil {
		return nil, errors.New("principal reader is required")
	}
	s := &Service{
		store:      store,
		principals: principals,
		logger:     slog.Default(),
		generate:   secrets.GenerateKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate resolves a plaintext key to its owner. Every failure is
// CodeForbidden; lookup errors are wrapped so callers see the same answer
// for a bad key and an unavailable store.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*models.Identity, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		s.recordFailure(ctx, "missing")
		return nil, dErrors.New(dErrors.CodeForbidden, MsgKeyNotProvided)
	}

	k, err := s.store.FindByHash(ctx, secrets.HashKey(rawKey))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.recordFailure(ctx, "unknown")
			return nil, dErrors.New(dErrors.CodeForbidden, MsgKeyInvalidOrInactive)
		}
		s.logger.ErrorContext(ctx, "api key lookup failed", "error", err)
		s.recordFailure(ctx, "lookup_error")
		return nil, dErrors.Wrap(err, dErrors.CodeForbidden, MsgKeyInvalidOrInactive)
	}

	if !k.IsUsable(requestcontext.Now(ctx)) {
		reason := "inactive"
		if k.IsActive {
			reason = "expired"
		}
		s.recordFailure(ctx, reason, "api_key_id", k.ID.String())
		return nil, dErrors.New(dErrors.CodeForbidden, MsgKeyInvalidOrInactive)
	}

	return &models.Identity{PrincipalID: k.PrincipalID, APIKeyID: k.ID}, nil
}

func (s *Service) recordFailure(ctx context.Context, reason string, attrs ...any) {
	if s.metrics != nil {
		s.metrics.IncAuthFailure()
	}
	s.logger.InfoContext(ctx, "api key rejected", append([]any{
		"reason", reason,
		"client_ip", requestcontext.ClientIP(ctx),
	}, attrs...)...)
}

// Issue creates a key for principalID. The plaintext is only ever present
// in the returned IssuedKey.
func (s *Service) Issue(ctx context.Context, principalID id.PrincipalID, name string, expiresAt *time.Time) (*models.IssuedKey, error) {
	now := requestcontext.Now(ctx)
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "expires_at must be in the future")
	}
	if _, err := s.principals.Balance(ctx, principalID); err != nil {
		return nil, err
	}

	plaintext, err := s.generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate api key")
	}

	k := &models.APIKey{
		ID:          id.NewAPIKeyID(),
		PrincipalID: principalID,
		KeyHash:     secrets.HashKey(plaintext),
		Name:        strings.TrimSpace(name),
		IsActive:    true,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, k); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "api key already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store api key")
	}

	s.logger.InfoContext(ctx, "api key issued",
		"api_key_id", k.ID.String(),
		"principal_id", principalID.String(),
	)
	return &models.IssuedKey{APIKey: k, Key: plaintext}, nil
}

func (s *Service) Activate(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	return s.setActive(ctx, keyID, true)
}

func (s *Service) Deactivate(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	return s.setActive(ctx, keyID, false)
}

func (s *Service) setActive(ctx context.Context, keyID id.APIKeyID, active bool) (*models.APIKey, error) {
	k, err := s.store.SetActive(ctx, keyID, active, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "api key not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update api key")
	}
	s.logger.InfoContext(ctx, "api key status changed",
		"api_key_id", keyID.String(),
		"is_active", active,
	)
	return k, nil
}

// ListByPrincipal returns every key of a principal, active or not.
func (s *Service) ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*models.APIKey, error) {
	keys, err := s.store.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list api keys")
	}
	return keys, nil
}

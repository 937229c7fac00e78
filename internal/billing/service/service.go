package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nidapi/internal/billing/models"
	id "nidapi/pkg/domain"
	dErrors "nidapi/pkg/domain-errors"
	"nidapi/pkg/platform/sentinel"
	"nidapi/pkg/requestcontext"
)

// Store persists principal balances.
type Store interface {
	Create(ctx context.Context, p *models.Principal) error
	FindByID(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)
	FindByIDForUpdate(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error)
	Debit(ctx context.Context, principalID id.PrincipalID, amount int64, now time.Time) (int64, error)
	Credit(ctx context.Context, principalID id.PrincipalID, amount int64, now time.Time) (int64, error)
}

// ChargeMetrics observes successful charges. Optional.
type ChargeMetrics interface {
	AddTokensCharged(n int64)
}

// Ledger owns every balance mutation. Charges from concurrent requests for
// the same principal are serialized by RunInTx.
type Ledger struct {
	store   Store
	tx      LedgerTx
	logger  *slog.Logger
	metrics ChargeMetrics
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m ChargeMetrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithTx overrides the transaction boundary. Defaults to per-principal
// sharded locks, which is correct for the in-memory store.
func WithTx(tx LedgerTx) Option {
	return func(l *Ledger) {
		l.tx = tx
	}
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store}
	for _, opt := range opts {
		opt(l)
	}
	if l.tx == nil {
		l.tx = NewShardedTx()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// RunInTx runs fn as one atomic unit for principalID. Balance reads and
// charges inside fn observe no interleaving from other requests of the same
// principal.
func (l *Ledger) RunInTx(ctx context.Context, principalID id.PrincipalID, fn func(ctx context.Context) error) error {
	return l.tx.RunInTx(ctx, principalID, func(ctx context.Context) error {
		if _, err := l.store.FindByIDForUpdate(ctx, principalID); err != nil {
			return l.translate(err, "lock principal")
		}
		return fn(ctx)
	})
}

// CreatePrincipal opens a new principal with the given balance.
func (l *Ledger) CreatePrincipal(ctx context.Context, initialBalance int64) (*models.Principal, error) {
	p, err := models.NewPrincipal(id.NewPrincipalID(), initialBalance, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := l.store.Create(ctx, p); err != nil {
		return nil, l.translate(err, "create principal")
	}
	l.logger.InfoContext(ctx, "principal created",
		"principal_id", p.ID.String(),
		"tokens_balance", p.TokensBalance,
	)
	return p, nil
}

func (l *Ledger) Principal(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	p, err := l.store.FindByID(ctx, principalID)
	if err != nil {
		return nil, l.translate(err, "find principal")
	}
	return p, nil
}

func (l *Ledger) Balance(ctx context.Context, principalID id.PrincipalID) (int64, error) {
	p, err := l.Principal(ctx, principalID)
	if err != nil {
		return 0, err
	}
	return p.TokensBalance, nil
}

// HasSufficient reports whether the principal can pay amount right now.
func (l *Ledger) HasSufficient(ctx context.Context, principalID id.PrincipalID, amount int64) (bool, error) {
	balance, err := l.Balance(ctx, principalID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Deduct charges amount. It returns false, leaving the balance unchanged,
// when the balance is short.
func (l *Ledger) Deduct(ctx context.Context, principalID id.PrincipalID, amount int64) (bool, error) {
	if amount < 0 {
		return false, dErrors.New(dErrors.CodeValidation, "amount must not be negative")
	}
	balance, err := l.store.Debit(ctx, principalID, amount, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrInsufficientBalance) {
		return false, nil
	}
	if err != nil {
		return false, l.translate(err, "deduct tokens")
	}
	if l.metrics != nil {
		l.metrics.AddTokensCharged(amount)
	}
	l.logger.DebugContext(ctx, "tokens deducted",
		"principal_id", principalID.String(),
		"amount", amount,
		"tokens_balance", balance,
	)
	return true, nil
}

// Add credits amount and returns the new balance. Negative amounts are rejected.
func (l *Ledger) Add(ctx context.Context, principalID id.PrincipalID, amount int64) (int64, error) {
	if amount < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "Amount must be positive")
	}
	balance, err := l.store.Credit(ctx, principalID, amount, requestcontext.Now(ctx))
	if err != nil {
		return 0, l.translate(err, "add tokens")
	}
	l.logger.InfoContext(ctx, "tokens added",
		"principal_id", principalID.String(),
		"amount", amount,
		"tokens_balance", balance,
	)
	return balance, nil
}

func (l *Ledger) translate(err error, op string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "principal not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "principal already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, op+" failed")
	}
}

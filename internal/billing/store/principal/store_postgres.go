package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nidapi/internal/billing/models"
	"nidapi/internal/platform/postgres"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/sentinel"
	"nidapi/pkg/platform/tx"
)

// PostgresStore persists principals in PostgreSQL. Every query joins the
// transaction carried in ctx, if any.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed principal store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Principal) error {
	_, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO principals (id, tokens_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(p.ID), p.TokensBalance, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("create principal: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	return s.find(ctx, `
		SELECT id, tokens_balance, created_at, updated_at
		FROM principals WHERE id = $1
	`, principalID)
}

// FindByIDForUpdate takes a row lock; it must run inside tx.Run.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	return s.find(ctx, `
		SELECT id, tokens_balance, created_at, updated_at
		FROM principals WHERE id = $1
		FOR UPDATE
	`, principalID)
}

func (s *PostgresStore) find(ctx context.Context, query string, principalID id.PrincipalID) (*models.Principal, error) {
	var (
		rawID uuid.UUID
		p     models.Principal
	)
	err := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(principalID)).
		Scan(&rawID, &p.TokensBalance, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find principal: %w", err)
	}
	p.ID = id.PrincipalID(rawID)
	return &p, nil
}

// Debit is a conditional update: zero rows means either the principal is
// missing or the balance is short, which a follow-up read distinguishes.
func (s *PostgresStore) Debit(ctx context.Context, principalID id.PrincipalID, amount int64, now time.Time) (int64, error) {
	var balance int64
	err := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		UPDATE principals
		SET tokens_balance = tokens_balance - $2, updated_at = $3
		WHERE id = $1 AND tokens_balance >= $2
		RETURNING tokens_balance
	`, uuid.UUID(principalID), amount, now).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("debit principal: %w", err)
	}

	current, findErr := s.FindByID(ctx, principalID)
	if findErr != nil {
		return 0, findErr
	}
	return current.TokensBalance, sentinel.ErrInsufficientBalance
}

func (s *PostgresStore) Credit(ctx context.Context, principalID id.PrincipalID, amount int64, now time.Time) (int64, error) {
	var balance int64
	err := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		UPDATE principals
		SET tokens_balance = tokens_balance + $2, updated_at = $3
		WHERE id = $1
		RETURNING tokens_balance
	`, uuid.UUID(principalID), amount, now).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("credit principal: %w", err)
	}
	return balance, nil
}

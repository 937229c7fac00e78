package key

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nidapi/internal/apikey/models"
	"nidapi/internal/platform/postgres"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/sentinel"
	"nidapi/pkg/platform/tx"
)

const keyColumns = `id, principal_id, key_hash, name, is_active, expires_at, created_at, updated_at`

// PostgresStore persists API keys in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed API key store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, k *models.APIKey) error {
	_, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO api_keys (`+keyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(k.ID), uuid.UUID(k.PrincipalID), k.KeyHash, k.Name, k.IsActive,
		nullTime(k.ExpiresAt), k.CreatedAt, k.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("create api key: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash)
	return scanKey(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE id = $1`, uuid.UUID(keyID))
	return scanKey(row)
}

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*models.APIKey, error) {
	rows, err := tx.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE principal_id = $1 ORDER BY created_at`,
		uuid.UUID(principalID))
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, keyID id.APIKeyID, active bool, now time.Time) (*models.APIKey, error) {
	row := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		UPDATE api_keys SET is_active = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+keyColumns, uuid.UUID(keyID), active, now)
	return scanKey(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(row scanner) (*models.APIKey, error) {
	var (
		keyID, principalID uuid.UUID
		expiresAt          sql.NullTime
		k                  models.APIKey
	)
	err := row.Scan(&keyID, &principalID, &k.KeyHash, &k.Name, &k.IsActive, &expiresAt, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	k.ID = id.APIKeyID(keyID)
	k.PrincipalID = id.PrincipalID(principalID)
	if expiresAt.Valid {
		t := expiresAt.Time
		k.ExpiresAt = &t
	}
	return &k, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

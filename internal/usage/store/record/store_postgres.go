package record

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"nidapi/internal/platform/postgres"
	"nidapi/internal/usage/models"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/sentinel"
	"nidapi/pkg/platform/tx"
)

const recordColumns = `id, api_key_id, principal_id, ip_address, user_agent, client_kind, tokens_used, response_status, created_at`

// PostgresStore persists usage records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, r *models.Record) error {
	_, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO usage_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(r.ID), uuid.UUID(r.APIKeyID), uuid.UUID(r.PrincipalID), r.IPAddress, r.UserAgent,
		r.ClientKind, r.TokensUsed, r.ResponseStatus, r.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("append usage record: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("append usage record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByAPIKeys(ctx context.Context, keyIDs []id.APIKeyID, limit int) ([]*models.Record, error) {
	if len(keyIDs) == 0 || limit <= 0 {
		return nil, nil
	}
	ids := make([]string, len(keyIDs))
	for i, k := range keyIDs {
		ids[i] = k.String()
	}

	rows, err := tx.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT `+recordColumns+` FROM usage_records
		WHERE api_key_id = ANY($1::uuid[])
		ORDER BY created_at DESC
		LIMIT $2
	`, pq.Array(ids), limit)
	if err != nil {
		return nil, fmt.Errorf("list usage records: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		var (
			recordID, keyID, principalID uuid.UUID
			r                            models.Record
		)
		if err := rows.Scan(&recordID, &keyID, &principalID, &r.IPAddress, &r.UserAgent,
			&r.ClientKind, &r.TokensUsed, &r.ResponseStatus, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		r.ID = id.UsageRecordID(recordID)
		r.APIKeyID = id.APIKeyID(keyID)
		r.PrincipalID = id.PrincipalID(principalID)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list usage records: %w", err)
	}
	return out, nil
}

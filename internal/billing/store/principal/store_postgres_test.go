package principal

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nidapi/internal/billing/models"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresCreate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	p, _ := models.NewPrincipal(id.NewPrincipalID(), 3, now)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO principals")).
		WithArgs(uuid.UUID(p.ID), int64(3), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Create(context.Background(), p))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO principals")).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, store.Create(context.Background(), p), sentinel.ErrConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByID(t *testing.T) {
	store, mock := newMockStore(t)
	principalID := id.NewPrincipalID()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM principals WHERE id = $1")).
		WithArgs(uuid.UUID(principalID)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tokens_balance", "created_at", "updated_at"}).
			AddRow(uuid.UUID(principalID).String(), int64(9), now, now))

	p, err := store.FindByID(context.Background(), principalID)
	require.NoError(t, err)
	assert.Equal(t, principalID, p.ID)
	assert.EqualValues(t, 9, p.TokensBalance)

	mock.ExpectQuery(regexp.QuoteMeta("FROM principals WHERE id = $1")).
		WillReturnError(sql.ErrNoRows)
	_, err = store.FindByID(context.Background(), principalID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByIDForUpdateLocksRow(t *testing.T) {
	store, mock := newMockStore(t)
	principalID := id.NewPrincipalID()
	now := time.Now()

	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(uuid.UUID(principalID)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tokens_balance", "created_at", "updated_at"}).
			AddRow(uuid.UUID(principalID).String(), int64(1), now, now))

	_, err := store.FindByIDForUpdate(context.Background(), principalID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDebit(t *testing.T) {
	principalID := id.NewPrincipalID()
	now := time.Now()

	t.Run("sufficient balance", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND tokens_balance >= $2")).
			WithArgs(uuid.UUID(principalID), int64(1), now).
			WillReturnRows(sqlmock.NewRows([]string{"tokens_balance"}).AddRow(int64(4)))

		balance, err := store.Debit(context.Background(), principalID, 1, now)
		require.NoError(t, err)
		assert.EqualValues(t, 4, balance)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND tokens_balance >= $2")).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta("FROM principals WHERE id = $1")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tokens_balance", "created_at", "updated_at"}).
				AddRow(uuid.UUID(principalID).String(), int64(0), now, now))

		balance, err := store.Debit(context.Background(), principalID, 1, now)
		assert.ErrorIs(t, err, sentinel.ErrInsufficientBalance)
		assert.EqualValues(t, 0, balance)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing principal", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND tokens_balance >= $2")).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta("FROM principals WHERE id = $1")).
			WillReturnError(sql.ErrNoRows)

		_, err := store.Debit(context.Background(), principalID, 1, now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresCredit(t *testing.T) {
	store, mock := newMockStore(t)
	principalID := id.NewPrincipalID()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SET tokens_balance = tokens_balance + $2")).
		WithArgs(uuid.UUID(principalID), int64(5), now).
		WillReturnRows(sqlmock.NewRows([]string{"tokens_balance"}).AddRow(int64(15)))

	balance, err := store.Credit(context.Background(), principalID, 5, now)
	require.NoError(t, err)
	assert.EqualValues(t, 15, balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

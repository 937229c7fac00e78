package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	id "nidapi/pkg/domain"
	dErrors "nidapi/pkg/domain-errors"
	"nidapi/pkg/platform/tx"
)

// LedgerTx provides a transactional boundary for one principal's balance.
// Implementations may wrap a database transaction or, in-memory, a lock.
type LedgerTx interface {
	RunInTx(ctx context.Context, principalID id.PrincipalID, fn func(ctx context.Context) error) error
}

// Operations are distributed across shards by a hash of the principal ID so
// unrelated principals rarely contend.
const numLedgerShards = 128

// defaultLedgerTxTimeout is the maximum duration for a ledger transaction.
const defaultLedgerTxTimeout = 5 * time.Second

type shardedLedgerTx struct {
	shards  [numLedgerShards]sync.Mutex
	timeout time.Duration
}

// NewShardedTx returns the in-memory LedgerTx.
func NewShardedTx() LedgerTx {
	return &shardedLedgerTx{timeout: defaultLedgerTxTimeout}
}

func (t *shardedLedgerTx) RunInTx(ctx context.Context, principalID id.PrincipalID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := hashPrincipal(principalID.String()) % numLedgerShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// hashPrincipal is FNV-1a.
func hashPrincipal(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type postgresLedgerTx struct {
	db *sql.DB
}

// NewPostgresTx runs fn inside a database transaction carried in ctx. The
// ledger takes the principal row lock as the first statement.
func NewPostgresTx(db *sql.DB) LedgerTx {
	return &postgresLedgerTx{db: db}
}

func (t *postgresLedgerTx) RunInTx(ctx context.Context, _ id.PrincipalID, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, t.db, nil, fn)
}

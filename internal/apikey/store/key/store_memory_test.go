package key

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nidapi/internal/apikey/models"
	id "nidapi/pkg/domain"
	"nidapi/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	now := time.Now()
	principalID := id.NewPrincipalID()

	k := &models.APIKey{ID: id.NewAPIKeyID(), PrincipalID: principalID, KeyHash: "h1", IsActive: true, CreatedAt: now}
	require.NoError(t, store.Create(ctx, k))

	dup := *k
	dup.ID = id.NewAPIKeyID()
	assert.ErrorIs(t, store.Create(ctx, &dup), sentinel.ErrConflict)

	found, err := store.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, k.ID, found.ID)

	_, err = store.FindByHash(ctx, "nope")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	updated, err := store.SetActive(ctx, k.ID, false, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	found, _ = store.FindByID(ctx, k.ID)
	assert.False(t, found.IsActive)

	keys, err := store.ListByPrincipal(ctx, principalID)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	_, err = store.SetActive(ctx, id.NewAPIKeyID(), true, now)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apikeyModels "nidapi/internal/apikey/models"
	usageModels "nidapi/internal/usage/models"
	id "nidapi/pkg/domain"
)

type stubKeys struct {
	keys []*apikeyModels.APIKey
	err  error
}

func (s stubKeys) ListByPrincipal(context.Context, id.PrincipalID) ([]*apikeyModels.APIKey, error) {
	return s.keys, s.err
}

type stubUsage struct {
	gotKeys  []id.APIKeyID
	gotLimit int
	calls    int
}

func (s *stubUsage) List(_ context.Context, keyIDs []id.APIKeyID, limit int) ([]*usageModels.Record, error) {
	s.calls++
	s.gotKeys, s.gotLimit = keyIDs, limit
	return []*usageModels.Record{{}}, nil
}

func TestListForPrincipal(t *testing.T) {
	k1, k2 := id.NewAPIKeyID(), id.NewAPIKeyID()

	t.Run("lists across all keys", func(t *testing.T) {
		usage := &stubUsage{}
		a := NewUsageAdapter(stubKeys{keys: []*apikeyModels.APIKey{{ID: k1}, {ID: k2}}}, usage)

		recs, err := a.ListForPrincipal(context.Background(), id.NewPrincipalID(), 20)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
		assert.Equal(t, []id.APIKeyID{k1, k2}, usage.gotKeys)
		assert.Equal(t, 20, usage.gotLimit)
	})

	t.Run("no keys means no usage query", func(t *testing.T) {
		usage := &stubUsage{}
		recs, err := NewUsageAdapter(stubKeys{}, usage).ListForPrincipal(context.Background(), id.NewPrincipalID(), 20)
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.Zero(t, usage.calls)
	})

	t.Run("key lookup error propagates", func(t *testing.T) {
		_, err := NewUsageAdapter(stubKeys{err: errors.New("db")}, &stubUsage{}).
			ListForPrincipal(context.Background(), id.NewPrincipalID(), 20)
		assert.Error(t, err)
	})
}

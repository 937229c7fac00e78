package adapters

import (
	"context"

	apikeyModels "nidapi/internal/apikey/models"
	usageModels "nidapi/internal/usage/models"
	id "nidapi/pkg/domain"
)

// KeyLister is the slice of the API key service the adapter needs.
type KeyLister interface {
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*apikeyModels.APIKey, error)
}

// UsageLister is the slice of the usage recorder the adapter needs.
type UsageLister interface {
	List(ctx context.Context, keyIDs []id.APIKeyID, limit int) ([]*usageModels.Record, error)
}

// UsageAdapter resolves a principal's keys and lists usage across all of
// them, so admin does not depend on how usage is keyed.
type UsageAdapter struct {
	keys  KeyLister
	usage UsageLister
}

func NewUsageAdapter(keys KeyLister, usage UsageLister) *UsageAdapter {
	return &UsageAdapter{keys: keys, usage: usage}
}

// ListForPrincipal returns up to limit records, newest first.
func (a *UsageAdapter) ListForPrincipal(ctx context.Context, principalID id.PrincipalID, limit int) ([]*usageModels.Record, error) {
	keys, err := a.keys.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	keyIDs := make([]id.APIKeyID, len(keys))
	for i, k := range keys {
		keyIDs[i] = k.ID
	}
	return a.usage.List(ctx, keyIDs, limit)
}

package admin

import (
	apikeyModels "nidapi/internal/apikey/models"
	usageModels "nidapi/internal/usage/models"
	id "nidapi/pkg/domain"
)

// BalanceResponse is returned after a credit.
type BalanceResponse struct {
	PrincipalID   id.PrincipalID `json:"principal_id"`
	TokensBalance int64          `json:"tokens_balance"`
}

// KeysListResponse wraps a principal's keys. Hashes are never serialized.
type KeysListResponse struct {
	Keys  []*apikeyModels.APIKey `json:"keys"`
	Total int                    `json:"total"`
}

// UsageListResponse wraps usage records for HTTP response.
type UsageListResponse struct {
	Records []*usageModels.Record `json:"records"`
	Total   int                   `json:"total"`
}

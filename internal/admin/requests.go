package admin

import (
	"strings"
	"time"

	dErrors "nidapi/pkg/domain-errors"
)

const maxKeyNameLength = 100

// CreatePrincipalRequest is the body of POST /admin/principals.
type CreatePrincipalRequest struct {
	TokensBalance int64 `json:"tokens_balance"`
}

func (r *CreatePrincipalRequest) Validate() error {
	if r.TokensBalance < 0 {
		return dErrors.New(dErrors.CodeValidation, "tokens_balance must not be negative")
	}
	return nil
}

// AddTokensRequest is the body of POST /admin/principals/{id}/tokens.
type AddTokensRequest struct {
	Amount int64 `json:"amount"`
}

func (r *AddTokensRequest) Validate() error {
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "Amount must be positive")
	}
	return nil
}

// IssueKeyRequest is the body of POST /admin/principals/{id}/api-keys.
type IssueKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (r *IssueKeyRequest) Validate(now time.Time) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > maxKeyNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 100 characters")
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return dErrors.New(dErrors.CodeValidation, "expires_at must be in the future")
	}
	return nil
}

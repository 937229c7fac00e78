package models

import (
	"time"

	id "nidapi/pkg/domain"
	dErrors "nidapi/pkg/domain-errors"
)

// Principal is the billable owner of API keys. Its balance is only changed
// through the ledger.
type Principal struct {
	ID            id.PrincipalID `json:"id"`
	TokensBalance int64          `json:"tokens_balance"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewPrincipal constructs a principal with a non-negative opening balance.
func NewPrincipal(principalID id.PrincipalID, balance int64, now time.Time) (*Principal, error) {
	if principalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "principal ID required")
	}
	if balance < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "tokens_balance must not be negative")
	}
	return &Principal{
		ID:            principalID,
		TokensBalance: balance,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// HasSufficient reports whether amount can be charged.
func (p *Principal) HasSufficient(amount int64) bool {
	return p.TokensBalance >= amount
}

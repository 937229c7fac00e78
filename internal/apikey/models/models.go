package models

import (
	"time"

	id "nidapi/pkg/domain"
)

// APIKey is a credential bound to one principal. Only the SHA-256 hash of
// the plaintext is kept; IsActive is the only field that changes after issue.
type APIKey struct {
	ID          id.APIKeyID    `json:"id"`
	PrincipalID id.PrincipalID `json:"principal_id"`
	KeyHash     string         `json:"-"`
	Name        string         `json:"name"`
	IsActive    bool           `json:"is_active"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsExpired reports whether the key has an expiry strictly before now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// IsUsable reports whether the key may authenticate a request at now.
func (k *APIKey) IsUsable(now time.Time) bool {
	return k.IsActive && !k.IsExpired(now)
}

// Identity is the authenticated caller.
type Identity struct {
	PrincipalID id.PrincipalID
	APIKeyID    id.APIKeyID
}

// IssuedKey pairs a stored key with its plaintext, which exists only in the
// issuance response.
type IssuedKey struct {
	*APIKey
	Key string `json:"key"`
}

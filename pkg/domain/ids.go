package domain

import (
	"github.com/google/uuid"

	dErrors "nidapi/pkg/domain-errors"
)

// Typed identifiers keep principal, key and usage IDs from being mixed up at
// compile time. All are UUIDs underneath.
type (
	PrincipalID   uuid.UUID
	APIKeyID      uuid.UUID
	UsageRecordID uuid.UUID
)

func NewPrincipalID() PrincipalID     { return PrincipalID(uuid.New()) }
func NewAPIKeyID() APIKeyID           { return APIKeyID(uuid.New()) }
func NewUsageRecordID() UsageRecordID { return UsageRecordID(uuid.New()) }

func (id PrincipalID) String() string   { return uuid.UUID(id).String() }
func (id APIKeyID) String() string      { return uuid.UUID(id).String() }
func (id UsageRecordID) String() string { return uuid.UUID(id).String() }

func (id PrincipalID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id APIKeyID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id UsageRecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParsePrincipalID parses and validates a principal identifier.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID(s, "principal_id")
	return PrincipalID(u), err
}

// ParseAPIKeyID parses and validates an API key identifier.
func ParseAPIKeyID(s string) (APIKeyID, error) {
	u, err := parseUUID(s, "api_key_id")
	return APIKeyID(u), err
}

// ParseUsageRecordID parses and validates a usage record identifier.
func ParseUsageRecordID(s string) (UsageRecordID, error) {
	u, err := parseUUID(s, "usage_record_id")
	return UsageRecordID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}

// Text marshaling keeps typed IDs rendering as UUID strings in JSON.

func (id PrincipalID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id APIKeyID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id UsageRecordID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *PrincipalID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *APIKeyID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UsageRecordID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

package models

import (
	"time"

	"github.com/mssola/useragent"

	id "nidapi/pkg/domain"
	dErrors "nidapi/pkg/domain-errors"
)

// Client kinds derived from the User-Agent header.
const (
	ClientBrowser = "browser"
	ClientMobile  = "mobile"
	ClientBot     = "bot"
	ClientTool    = "tool"
	ClientUnknown = "unknown"
)

// Record is one metered request attempt. Records are append-only.
type Record struct {
	ID             id.UsageRecordID `json:"id"`
	APIKeyID       id.APIKeyID      `json:"api_key_id"`
	PrincipalID    id.PrincipalID   `json:"principal_id"`
	IPAddress      string           `json:"ip_address"`
	UserAgent      string           `json:"user_agent"`
	ClientKind     string           `json:"client_kind"`
	TokensUsed     int64            `json:"tokens_used"`
	ResponseStatus int              `json:"response_status"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NewRecord builds a record for an authenticated request attempt.
func NewRecord(keyID id.APIKeyID, principalID id.PrincipalID, ip, userAgent string, tokens int64, status int, now time.Time) (*Record, error) {
	if keyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "usage record requires an api key")
	}
	if principalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "usage record requires a principal")
	}
	if tokens < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tokens used cannot be negative")
	}
	if status < 100 || status > 599 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "response status out of range")
	}
	return &Record{
		ID:             id.NewUsageRecordID(),
		APIKeyID:       keyID,
		PrincipalID:    principalID,
		IPAddress:      ip,
		UserAgent:      userAgent,
		ClientKind:     ClassifyClient(userAgent),
		TokensUsed:     tokens,
		ResponseStatus: status,
		CreatedAt:      now,
	}, nil
}

// ClassifyClient buckets a User-Agent into a coarse client kind.
func ClassifyClient(ua string) string {
	if ua == "" || ua == "Unknown" {
		return ClientUnknown
	}
	parsed := useragent.New(ua)
	switch {
	case parsed.Bot():
		return ClientBot
	case parsed.Mobile():
		return ClientMobile
	}
	if name, _ := parsed.Browser(); name != "" && parsed.OS() != "" {
		return ClientBrowser
	}
	return ClientTool
}

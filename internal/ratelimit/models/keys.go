package models

import (
	"strings"

	id "nidapi/pkg/domain"
)

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit buckets.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewPrincipalRateLimitKey is the bucket key for one principal.
func NewPrincipalRateLimitKey(principalID id.PrincipalID) string {
	return "rl:principal:" + SanitizeKeySegment(principalID.String())
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyIsUsable(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		key  APIKey
		want bool
	}{
		{"active without expiry", APIKey{IsActive: true}, true},
		{"active with future expiry", APIKey{IsActive: true, ExpiresAt: &future}, true},
		{"active expiring exactly now", APIKey{IsActive: true, ExpiresAt: &now}, true},
		{"active but expired", APIKey{IsActive: true, ExpiresAt: &past}, false},
		{"inactive", APIKey{IsActive: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.IsUsable(now))
		})
	}
}

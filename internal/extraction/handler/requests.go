package handler

import "strings"

// ExtractRequest is the HTTP request body for the extract endpoints.
type ExtractRequest struct {
	NationalID string `json:"national_id"`
}

// Normalize trims surrounding whitespace, as form serializers do.
func (r *ExtractRequest) Normalize() {
	r.NationalID = strings.TrimSpace(r.NationalID)
}

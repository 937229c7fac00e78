package testutil

import (
	"net/http"

	id "nidapi/pkg/domain"
	"nidapi/pkg/requestcontext"
)

// WithIdentity adds the authenticated principal and key to the request
// context, as the API key middleware would.
func WithIdentity(req *http.Request, principalID id.PrincipalID, keyID id.APIKeyID) *http.Request {
	ctx := requestcontext.WithPrincipalID(req.Context(), principalID)
	ctx = requestcontext.WithAPIKeyID(ctx, keyID)
	return req.WithContext(ctx)
}

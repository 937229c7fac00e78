package apikey

import (
	"context"

	"nidapi/internal/apikey/service"
	authmw "nidapi/internal/platform/middleware"
)

// MiddlewareAdapter exposes the key service as the auth middleware's validator.
type MiddlewareAdapter struct {
	svc *service.Service
}

func NewMiddlewareAdapter(svc *service.Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{svc: svc}
}

func (a *MiddlewareAdapter) ValidateKey(ctx context.Context, rawKey string) (*authmw.KeyClaims, error) {
	identity, err := a.svc.Authenticate(ctx, rawKey)
	if err != nil {
		return nil, err
	}
	return &authmw.KeyClaims{
		PrincipalID: identity.PrincipalID,
		APIKeyID:    identity.APIKeyID,
	}, nil
}

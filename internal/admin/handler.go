// Package admin exposes operator endpoints for principals, token balances,
// API keys and usage history. All routes sit behind the admin token.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apikeyModels "nidapi/internal/apikey/models"
	billingModels "nidapi/internal/billing/models"
	usageModels "nidapi/internal/usage/models"
	id "nidapi/pkg/domain"
	dErrors "nidapi/pkg/domain-errors"
	"nidapi/pkg/platform/httputil"
	"nidapi/pkg/requestcontext"
)

const (
	defaultUsageLimit = 50
	maxUsageLimit     = 500
)

// Ledger manages principals and balances.
type Ledger interface {
	CreatePrincipal(ctx context.Context, initialBalance int64) (*billingModels.Principal, error)
	Principal(ctx context.Context, principalID id.PrincipalID) (*billingModels.Principal, error)
	Add(ctx context.Context, principalID id.PrincipalID, amount int64) (int64, error)
}

// Keys manages API key lifecycle.
type Keys interface {
	Issue(ctx context.Context, principalID id.PrincipalID, name string, expiresAt *time.Time) (*apikeyModels.IssuedKey, error)
	Activate(ctx context.Context, keyID id.APIKeyID) (*apikeyModels.APIKey, error)
	Deactivate(ctx context.Context, keyID id.APIKeyID) (*apikeyModels.APIKey, error)
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*apikeyModels.APIKey, error)
}

// UsageReader lists a principal's usage history.
type UsageReader interface {
	ListForPrincipal(ctx context.Context, principalID id.PrincipalID, limit int) ([]*usageModels.Record, error)
}

type Handler struct {
	ledger Ledger
	keys   Keys
	usage  UsageReader
	logger *slog.Logger
}

func New(ledger Ledger, keys Keys, usage UsageReader, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, keys: keys, usage: usage, logger: logger}
}

// Register mounts admin endpoints. The caller applies RequireAdminToken.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/principals", h.HandleCreatePrincipal)
	r.Get("/admin/principals/{id}", h.HandleGetPrincipal)
	r.Post("/admin/principals/{id}/tokens", h.HandleAddTokens)
	r.Post("/admin/principals/{id}/api-keys", h.HandleIssueKey)
	r.Get("/admin/principals/{id}/api-keys", h.HandleListKeys)
	r.Get("/admin/principals/{id}/usage", h.HandleListUsage)
	r.Post("/admin/api-keys/{id}/activate", h.HandleActivateKey)
	r.Post("/admin/api-keys/{id}/deactivate", h.HandleDeactivateKey)
}

func (h *Handler) HandleCreatePrincipal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[CreatePrincipalRequest](r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.ledger.CreatePrincipal(ctx, req.TokensBalance)
	if err != nil {
		h.fail(ctx, w, "create principal failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) HandleGetPrincipal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.ledger.Principal(ctx, principalID)
	if err != nil {
		h.fail(ctx, w, "get principal failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleAddTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeJSON[AddTokensRequest](r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	balance, err := h.ledger.Add(ctx, principalID, req.Amount)
	if err != nil {
		h.fail(ctx, w, "add tokens failed", err)
		return
	}
	h.logger.InfoContext(ctx, "tokens added",
		"request_id", requestcontext.RequestID(ctx),
		"principal_id", principalID.String(),
		"amount", req.Amount,
		"tokens_balance", balance,
	)
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{PrincipalID: principalID, TokensBalance: balance})
}

func (h *Handler) HandleIssueKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeJSON[IssueKeyRequest](r)
	if err == nil {
		err = req.Validate(requestcontext.Now(ctx))
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	issued, err := h.keys.Issue(ctx, principalID, req.Name, req.ExpiresAt)
	if err != nil {
		h.fail(ctx, w, "issue api key failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issued)
}

func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	keys, err := h.keys.ListByPrincipal(ctx, principalID)
	if err != nil {
		h.fail(ctx, w, "list api keys failed", err)
		return
	}
	if keys == nil {
		keys = []*apikeyModels.APIKey{}
	}
	httputil.WriteJSON(w, http.StatusOK, KeysListResponse{Keys: keys, Total: len(keys)})
}

func (h *Handler) HandleListUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principalID, err := id.ParsePrincipalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.usage.ListForPrincipal(ctx, principalID, limit)
	if err != nil {
		h.fail(ctx, w, "list usage failed", err)
		return
	}
	if records == nil {
		records = []*usageModels.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, UsageListResponse{Records: records, Total: len(records)})
}

func (h *Handler) HandleActivateKey(w http.ResponseWriter, r *http.Request) {
	h.setKeyActive(w, r, h.keys.Activate)
}

func (h *Handler) HandleDeactivateKey(w http.ResponseWriter, r *http.Request) {
	h.setKeyActive(w, r, h.keys.Deactivate)
}

func (h *Handler) setKeyActive(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.APIKeyID) (*apikeyModels.APIKey, error)) {
	ctx := r.Context()
	keyID, err := id.ParseAPIKeyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	k, err := fn(ctx, keyID)
	if err != nil {
		h.fail(ctx, w, "toggle api key failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, k)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if de, ok := dErrors.As(err); !ok || de.Code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultUsageLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer")
	}
	return min(n, maxUsageLimit), nil
}

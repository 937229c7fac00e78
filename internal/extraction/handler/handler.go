package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nidapi/internal/extraction/service"
	"nidapi/internal/nationalid/codec"
	"nidapi/pkg/platform/httputil"
	"nidapi/pkg/requestcontext"
)

// Envelope messages.
const (
	MsgSuccess          = "ID validation completed successfully"
	MsgValidationFailed = "ID validation failed"
	MsgInsufficient     = "Insufficient tokens"
	MsgInternal         = "Internal server error"
	detailInsufficient  = "Not enough tokens to process this request"
	detailInternal      = "An unexpected error occurred"
	maxRequestBodyBytes = 1 << 16
)

// Service runs the extraction pipeline.
type Service interface {
	Extract(ctx context.Context, in service.Input) *service.Result
}

// Handler exposes national ID extraction over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts extraction endpoints. Callers wrap the router with API key
// authentication and rate limiting.
func (h *Handler) Register(r chi.Router) {
	r.Post("/national-ids/egyptian-id/extract", h.HandleExtractEgyptian)
}

// HandleExtractEgyptian handles POST /national-ids/egyptian-id/extract.
func (h *Handler) HandleExtractEgyptian(w http.ResponseWriter, r *http.Request) {
	h.extract(w, r, codec.SchemeEgyptian)
}

func (h *Handler) extract(w http.ResponseWriter, r *http.Request, scheme codec.Scheme) {
	ctx := r.Context()
	req, ok := decodeRequest(w, r)

	in := service.Input{Scheme: scheme, Malformed: !ok}
	if ok {
		in.NationalID = req.NationalID
	}

	res := h.service.Extract(ctx, in)

	h.logger.InfoContext(ctx, "national id extraction",
		"request_id", requestcontext.RequestID(ctx),
		"principal_id", requestcontext.PrincipalID(ctx).String(),
		"outcome", string(res.Outcome),
		"tokens_charged", res.TokensCharged,
	)
	writeResult(w, res)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (*ExtractRequest, bool) {
	var req ExtractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		return nil, false
	}
	req.Normalize()
	return &req, true
}

func writeResult(w http.ResponseWriter, res *service.Result) {
	switch res.Outcome {
	case service.OutcomeSuccess:
		httputil.WriteSuccess(w, MsgSuccess, res.Record)
	case service.OutcomeBadRequest:
		httputil.WriteFailure(w, http.StatusBadRequest, MsgValidationFailed, []httputil.FieldError{
			{Field: res.Validation.Field, Message: res.Validation.Message},
		})
	case service.OutcomePaymentRequired:
		httputil.WriteFailure(w, http.StatusPaymentRequired, MsgInsufficient, httputil.ErrorDetail{Detail: detailInsufficient})
	default:
		httputil.WriteFailure(w, http.StatusInternalServerError, MsgInternal, httputil.ErrorDetail{Detail: detailInternal})
	}
}

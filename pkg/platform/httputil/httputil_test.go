package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "nidapi/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("forbidden includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeForbidden, "No API key provided"))

		if w.Code != http.StatusForbidden {
			t.Fatalf("expected status %d, got %d", http.StatusForbidden, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "forbidden" {
			t.Fatalf("expected error code forbidden, got %q", body["error"])
		}
		if body["error_description"] != "No API key provided" {
			t.Fatalf("expected error_description to be returned for forbidden")
		}
	})

	t.Run("plain error is treated as internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("pq: connection reset"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		if strings.Contains(w.Body.String(), "pq:") {
			t.Fatalf("internal error text leaked: %s", w.Body.String())
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Amount int64 `json:"amount"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount": 5}`))
		got, err := DecodeJSON[payload](r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Amount != 5 {
			t.Fatalf("expected amount 5, got %d", got.Amount)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount": 5, "extra": true}`))
		_, err := DecodeJSON[payload](r)
		if !dErrors.HasCode(err, dErrors.CodeBadRequest) {
			t.Fatalf("expected bad request, got %v", err)
		}
	})
}

func TestEnvelopeWriters(t *testing.T) {
	t.Run("success carries data and null errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteSuccess(w, "ok", map[string]string{"k": "v"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"message":"ok","data":{"k":"v"},"errors":null}`, w.Body.String())
	})

	t.Run("failure carries errors and null data", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteFailure(w, http.StatusBadRequest, "ID validation failed",
			[]FieldError{{Field: "national_id", Message: "Invalid month"}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"success":false,"message":"ID validation failed","data":null,
			"errors":[{"field":"national_id","message":"Invalid month"}]}`, w.Body.String())
	})

	t.Run("detail object", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteFailure(w, http.StatusPaymentRequired, "Insufficient tokens",
			ErrorDetail{Detail: "Not enough tokens to process this request"})

		assert.JSONEq(t, `{"success":false,"message":"Insufficient tokens","data":null,
			"errors":{"detail":"Not enough tokens to process this request"}}`, w.Body.String())
	})
}

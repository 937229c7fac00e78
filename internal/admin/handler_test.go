package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"nidapi/internal/admin/adapters"
	apikeyService "nidapi/internal/apikey/service"
	"nidapi/internal/apikey/store/key"
	billing "nidapi/internal/billing/service"
	"nidapi/internal/billing/store/principal"
	usage "nidapi/internal/usage/service"
	"nidapi/internal/usage/store/record"
	id "nidapi/pkg/domain"
	adminmw "nidapi/pkg/platform/middleware/admin"
	"nidapi/pkg/requestcontext"
	"nidapi/pkg/testutil"
)

const adminToken = "operator-secret"

type AdminHandlerSuite struct {
	suite.Suite
	router   http.Handler
	recorder *usage.Recorder
}

func TestAdminHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerSuite))
}

func (s *AdminHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := billing.New(principal.NewInMemory(), billing.WithLogger(logger))
	keys, err := apikeyService.New(key.NewInMemory(), ledger, apikeyService.WithLogger(logger))
	s.Require().NoError(err)
	s.recorder, err = usage.New(record.NewInMemory(), usage.WithLogger(logger))
	s.Require().NoError(err)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	s.Require().NoError(err)

	r := chi.NewRouter()
	r.Use(adminmw.RequireAdminToken(string(hash), logger))
	New(ledger, keys, adapters.NewUsageAdapter(keys, s.recorder), logger).Register(r)
	s.router = r
}

func (s *AdminHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set(adminmw.HeaderAdminToken, adminToken)
	return testutil.DoRequest(s.router, req)
}

func (s *AdminHandlerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(v))
}

func (s *AdminHandlerSuite) createPrincipal(balance int64) string {
	rec := s.do(http.MethodPost, "/admin/principals", map[string]int64{"tokens_balance": balance})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var p struct {
		ID            string `json:"id"`
		TokensBalance int64  `json:"tokens_balance"`
	}
	s.decode(rec, &p)
	s.Equal(balance, p.TokensBalance)
	return p.ID
}

func (s *AdminHandlerSuite) TestAdminTokenRequired() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/principals/"+uuid.NewString())
	testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusForbidden, "forbidden")

	req.Header.Set(adminmw.HeaderAdminToken, "wrong")
	testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusForbidden, "forbidden")
}

func (s *AdminHandlerSuite) TestPrincipalLifecycle() {
	principalID := s.createPrincipal(10)

	rec := s.do(http.MethodPost, "/admin/principals/"+principalID+"/tokens", map[string]int64{"amount": 5})
	s.Require().Equal(http.StatusOK, rec.Code)
	var bal BalanceResponse
	s.decode(rec, &bal)
	s.Equal(int64(15), bal.TokensBalance)

	rec = s.do(http.MethodGet, "/admin/principals/"+principalID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"tokens_balance":15`)
}

func (s *AdminHandlerSuite) TestRejectsBadInput() {
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/admin/principals", map[string]int64{"tokens_balance": -1}).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/admin/principals/not-a-uuid", nil).Code)

	principalID := s.createPrincipal(1)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/admin/principals/"+principalID+"/tokens", map[string]int64{"amount": -3}).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/admin/principals/"+principalID+"/usage?limit=zero", nil).Code)
}

func (s *AdminHandlerSuite) TestUnknownPrincipalIsNotFound() {
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/admin/principals/"+uuid.NewString(), nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/admin/principals/"+uuid.NewString()+"/api-keys",
		map[string]string{"name": "ci"}).Code)
}

func (s *AdminHandlerSuite) TestIssueToggleAndListKeys() {
	principalID := s.createPrincipal(1)

	rec := s.do(http.MethodPost, "/admin/principals/"+principalID+"/api-keys", map[string]any{
		"name":       "ci",
		"expires_at": time.Now().Add(24 * time.Hour),
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var issued struct {
		ID       string `json:"id"`
		Key      string `json:"key"`
		IsActive bool   `json:"is_active"`
		KeyHash  string `json:"key_hash"`
	}
	s.decode(rec, &issued)
	s.True(issued.IsActive)
	s.Contains(issued.Key, "nid_")
	s.Empty(issued.KeyHash)

	rec = s.do(http.MethodPost, "/admin/api-keys/"+issued.ID+"/deactivate", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"is_active":false`)

	rec = s.do(http.MethodPost, "/admin/api-keys/"+issued.ID+"/activate", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"is_active":true`)

	rec = s.do(http.MethodGet, "/admin/principals/"+principalID+"/api-keys", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list KeysListResponse
	s.decode(rec, &list)
	s.Equal(1, list.Total)
	s.NotContains(rec.Body.String(), issued.Key)
}

func (s *AdminHandlerSuite) TestListUsage() {
	principalID := s.createPrincipal(1)
	rec := s.do(http.MethodPost, "/admin/principals/"+principalID+"/api-keys", map[string]string{"name": "ci"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var issued struct {
		ID string `json:"id"`
	}
	s.decode(rec, &issued)

	pid, err := id.ParsePrincipalID(principalID)
	s.Require().NoError(err)
	kid, err := id.ParseAPIKeyID(issued.ID)
	s.Require().NoError(err)
	ctx := requestcontext.WithPrincipalID(context.Background(), pid)
	ctx = requestcontext.WithAPIKeyID(ctx, kid)
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusTooManyRequests} {
		s.recorder.RecordRequest(ctx, 0, status)
	}

	rec = s.do(http.MethodGet, "/admin/principals/"+principalID+"/usage?limit=2", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var usageList UsageListResponse
	s.decode(rec, &usageList)
	s.Equal(2, usageList.Total)

	empty := s.createPrincipal(0)
	rec = s.do(http.MethodGet, "/admin/principals/"+empty+"/usage", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"records":[],"total":0}`, rec.Body.String())
}

package common

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AdminPOST(path string, body any) error
	AdminGET(path string) error
	SetPrincipal(principalID string)
	GetPrincipalID() string
	SetAPIKey(keyID, key string)
	GetAPIKeyID() string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers principal setup and generic response assertions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^a principal with (\d+) tokens?$`, steps.principalWithTokens)
	ctx.Step(`^the principal has an active API key$`, steps.principalHasActiveKey)
	ctx.Step(`^the API key is deactivated$`, steps.keyIsDeactivated)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	ctx.Step(`^the response header "([^"]*)" should be present$`, steps.responseHeaderPresent)
	ctx.Step(`^the principal should have (\d+) tokens?$`, steps.principalShouldHaveTokens)
	ctx.Step(`^(\d+) usage records? should exist for the principal$`, steps.usageRecordsShouldExist)
	ctx.Step(`^the latest usage record should have status (\d+) and (\d+) tokens?$`, steps.latestUsageRecord)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) principalWithTokens(ctx context.Context, tokens int) error {
	if err := s.tc.AdminPOST("/admin/principals", map[string]any{"tokens_balance": tokens}); err != nil {
		return err
	}
	if err := s.expectStatus(http.StatusCreated); err != nil {
		return err
	}
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &p); err != nil {
		return err
	}
	s.tc.SetPrincipal(p.ID)
	return nil
}

func (s *commonSteps) principalHasActiveKey(ctx context.Context) error {
	path := fmt.Sprintf("/admin/principals/%s/api-keys", s.tc.GetPrincipalID())
	if err := s.tc.AdminPOST(path, map[string]any{"name": "e2e"}); err != nil {
		return err
	}
	if err := s.expectStatus(http.StatusCreated); err != nil {
		return err
	}
	var issued struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &issued); err != nil {
		return err
	}
	s.tc.SetAPIKey(issued.ID, issued.Key)
	return nil
}

func (s *commonSteps) keyIsDeactivated(ctx context.Context) error {
	if err := s.tc.AdminPOST(fmt.Sprintf("/admin/api-keys/%s/deactivate", s.tc.GetAPIKeyID()), nil); err != nil {
		return err
	}
	return s.expectStatus(http.StatusOK)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, status int) error {
	return s.expectStatus(status)
}

func (s *commonSteps) responseFieldShouldBe(ctx context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) responseHeaderPresent(ctx context.Context, name string) error {
	if s.tc.GetLastResponseHeader(name) == "" {
		return fmt.Errorf("expected header %s to be set", name)
	}
	return nil
}

func (s *commonSteps) principalShouldHaveTokens(ctx context.Context, tokens int) error {
	if err := s.tc.AdminGET("/admin/principals/" + s.tc.GetPrincipalID()); err != nil {
		return err
	}
	if err := s.expectStatus(http.StatusOK); err != nil {
		return err
	}
	var p struct {
		TokensBalance int `json:"tokens_balance"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &p); err != nil {
		return err
	}
	if p.TokensBalance != tokens {
		return fmt.Errorf("expected balance %d, got %d", tokens, p.TokensBalance)
	}
	return nil
}

type usageRecord struct {
	TokensUsed     int `json:"tokens_used"`
	ResponseStatus int `json:"response_status"`
}

func (s *commonSteps) usage() ([]usageRecord, error) {
	if err := s.tc.AdminGET(fmt.Sprintf("/admin/principals/%s/usage", s.tc.GetPrincipalID())); err != nil {
		return nil, err
	}
	if err := s.expectStatus(http.StatusOK); err != nil {
		return nil, err
	}
	var out struct {
		Records []usageRecord `json:"records"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

func (s *commonSteps) usageRecordsShouldExist(ctx context.Context, n int) error {
	records, err := s.usage()
	if err != nil {
		return err
	}
	if len(records) != n {
		return fmt.Errorf("expected %d usage records, got %d", n, len(records))
	}
	return nil
}

func (s *commonSteps) latestUsageRecord(ctx context.Context, status, tokens int) error {
	records, err := s.usage()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no usage records")
	}
	latest := records[0]
	if latest.ResponseStatus != status || latest.TokensUsed != tokens {
		return fmt.Errorf("expected latest record status=%d tokens=%d, got status=%d tokens=%d",
			status, tokens, latest.ResponseStatus, latest.TokensUsed)
	}
	return nil
}

func (s *commonSteps) expectStatus(status int) error {
	if got := s.tc.GetLastResponseStatus(); got != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, got, s.tc.GetLastResponseBody())
	}
	return nil
}

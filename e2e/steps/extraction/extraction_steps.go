package extraction

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Extract(apiKey, body string) error
	SetHeader(name, value string)
	GetAPIKey() string
}

// RegisterSteps registers extraction step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &extractionSteps{tc: tc}

	ctx.Step(`^I extract national ID "([^"]*)"$`, steps.extractWithKey)
	ctx.Step(`^I extract national ID "([^"]*)" without an API key$`, steps.extractWithoutKey)
	ctx.Step(`^I extract national ID "([^"]*)" with API key "([^"]*)"$`, steps.extractWithExplicitKey)
	ctx.Step(`^I send the extraction body '([^']*)'$`, steps.sendRawBody)
	ctx.Step(`^I call from IP "([^"]*)" with user agent "([^"]*)"$`, steps.callFrom)
}

type extractionSteps struct {
	tc TestContext
}

func body(nationalID string) string {
	return fmt.Sprintf(`{"national_id":%q}`, nationalID)
}

func (s *extractionSteps) extractWithKey(ctx context.Context, nationalID string) error {
	return s.tc.Extract(s.tc.GetAPIKey(), body(nationalID))
}

func (s *extractionSteps) extractWithoutKey(ctx context.Context, nationalID string) error {
	return s.tc.Extract("", body(nationalID))
}

func (s *extractionSteps) extractWithExplicitKey(ctx context.Context, nationalID, apiKey string) error {
	return s.tc.Extract(apiKey, body(nationalID))
}

func (s *extractionSteps) sendRawBody(ctx context.Context, raw string) error {
	return s.tc.Extract(s.tc.GetAPIKey(), raw)
}

func (s *extractionSteps) callFrom(ctx context.Context, ip, userAgent string) error {
	s.tc.SetHeader("X-Forwarded-For", ip)
	s.tc.SetHeader("User-Agent", userAgent)
	return nil
}

package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Extract(apiKey, body string) error
	GetAPIKey() string
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers rate-limiting step definitions. The limit is read
// from the server's X-RateLimit-Limit header so scenarios do not depend on
// deployment configuration.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I exhaust the rate limit with national ID "([^"]*)"$`, steps.exhaustRateLimit)
}

type ratelimitSteps struct {
	tc TestContext
}

// exhaustRateLimit extracts until the window budget is spent. The next call
// is expected to be throttled.
func (s *ratelimitSteps) exhaustRateLimit(ctx context.Context, nationalID string) error {
	body := fmt.Sprintf(`{"national_id":%q}`, nationalID)
	if err := s.tc.Extract(s.tc.GetAPIKey(), body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == http.StatusTooManyRequests {
		return nil
	}
	remaining, err := strconv.Atoi(s.tc.GetLastResponseHeader("X-RateLimit-Remaining"))
	if err != nil {
		return fmt.Errorf("X-RateLimit-Remaining: %w", err)
	}
	for range remaining {
		if err := s.tc.Extract(s.tc.GetAPIKey(), body); err != nil {
			return err
		}
	}
	return nil
}

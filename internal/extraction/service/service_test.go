package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	billing "nidapi/internal/billing/service"
	"nidapi/internal/billing/store/principal"
	"nidapi/internal/extraction/service/mocks"
	"nidapi/internal/nationalid/codec"
	"nidapi/internal/usage/models"
	usage "nidapi/internal/usage/service"
	"nidapi/internal/usage/store/record"
	id "nidapi/pkg/domain"
	"nidapi/pkg/requestcontext"
)

const validID = "29001010123456"

// =============================================================================
// Extraction Pipeline Test Suite
// =============================================================================
// Justification: the pipeline's guarantees (charge only after extraction,
// one usage record per attempt, no charge on failure) only show up when the
// real ledger, codec and recorder run together.

type ExtractionSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	ledger   *billing.Ledger
	usage    *record.InMemoryStore
	recorder *usage.Recorder
	spans    *tracetest.SpanRecorder
	service  *Service
	keyID    id.APIKeyID
}

func TestExtractionSuite(t *testing.T) {
	suite.Run(t, new(ExtractionSuite))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registry(today time.Time) *codec.Registry {
	return codec.NewRegistry(codec.NewEgyptian(codec.WithClock(func() time.Time { return today })))
}

func (s *ExtractionSuite) SetupTest() {
	s.now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	s.ledger = billing.New(principal.NewInMemory(), billing.WithLogger(quietLogger()))
	s.usage = record.NewInMemory()

	var err error
	s.recorder, err = usage.New(s.usage, usage.WithLogger(quietLogger()))
	s.Require().NoError(err)

	s.spans = tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.spans))

	s.service, err = New(s.ledger, registry(s.now), s.recorder,
		WithLogger(quietLogger()),
		WithTracerProvider(tp),
	)
	s.Require().NoError(err)
	s.keyID = id.NewAPIKeyID()
}

func (s *ExtractionSuite) principalCtx(balance int64) (context.Context, id.PrincipalID) {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	p, err := s.ledger.CreatePrincipal(ctx, balance)
	s.Require().NoError(err)
	ctx = requestcontext.WithPrincipalID(ctx, p.ID)
	ctx = requestcontext.WithAPIKeyID(ctx, s.keyID)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9", "curl/8.4.0")
	return ctx, p.ID
}

func (s *ExtractionSuite) balance(principalID id.PrincipalID) int64 {
	b, err := s.ledger.Balance(context.Background(), principalID)
	s.Require().NoError(err)
	return b
}

func (s *ExtractionSuite) usageRecords() []*models.Record {
	recs, err := s.usage.ListByAPIKeys(context.Background(), []id.APIKeyID{s.keyID}, 100)
	s.Require().NoError(err)
	return recs
}

func (s *ExtractionSuite) TestNewValidatesDependencies() {
	_, err := New(nil, registry(s.now), s.recorder)
	s.Error(err)
	_, err = New(s.ledger, nil, s.recorder)
	s.Error(err)
	_, err = New(s.ledger, registry(s.now), nil)
	s.Error(err)
	_, err = New(s.ledger, registry(s.now), s.recorder, WithTokenCost(0))
	s.Error(err)
}

func (s *ExtractionSuite) TestSuccessChargesOneTokenAndLogs() {
	ctx, principalID := s.principalCtx(5)

	res := s.service.Extract(ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: validID})

	s.Equal(OutcomeSuccess, res.Outcome)
	s.Equal(http.StatusOK, res.Status())
	s.Equal(&codec.Record{NationalID: validID, DateOfBirth: "1990-01-01", Governorate: "Cairo", Gender: codec.GenderMale}, res.Record)
	s.Equal(int64(4), s.balance(principalID))

	recs := s.usageRecords()
	s.Require().Len(recs, 1)
	s.Equal(int64(1), recs[0].TokensUsed)
	s.Equal(http.StatusOK, recs[0].ResponseStatus)
	s.Equal("203.0.113.9", recs[0].IPAddress)
}

// brokenUsageStore fails every write, either with an error or a panic.
type brokenUsageStore struct {
	panics bool
	writes int
}

func (b *brokenUsageStore) Append(context.Context, *models.Record) error {
	b.writes++
	if b.panics {
		panic("usage table dropped")
	}
	return errors.New("connection refused")
}

func (b *brokenUsageStore) ListByAPIKeys(context.Context, []id.APIKeyID, int) ([]*models.Record, error) {
	return nil, errors.New("connection refused")
}

func (s *ExtractionSuite) TestUsageBackendFailureDoesNotChangeResponse() {
	for _, tc := range []struct {
		name   string
		panics bool
	}{
		{name: "store error"},
		{name: "store panic", panics: true},
	} {
		s.Run(tc.name, func() {
			store := &brokenUsageStore{panics: tc.panics}
			recorder, err := usage.New(store, usage.WithLogger(quietLogger()))
			s.Require().NoError(err)
			svc, err := New(s.ledger, registry(s.now), recorder, WithLogger(quietLogger()))
			s.Require().NoError(err)
			ctx, principalID := s.principalCtx(2)

			res := svc.Extract(ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: validID})

			s.Equal(OutcomeSuccess, res.Outcome)
			s.Equal(http.StatusOK, res.Status())
			s.Equal(&codec.Record{NationalID: validID, DateOfBirth: "1990-01-01", Governorate: "Cairo", Gender: codec.GenderMale}, res.Record)
			s.Equal(int64(1), res.TokensCharged)
			s.Equal(int64(1), s.balance(principalID))
			s.Equal(1, store.writes)
		})
	}
}

func (s *ExtractionSuite) TestValidationFailureChargesNothing() {
	ctx, principalID := s.principalCtx(5)

	res := s.service.Extract(ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: "29013010123456"})

	s.Equal(OutcomeBadRequest, res.Outcome)
	s.Require().NotNil(res.Validation)
	s.Equal(codec.KindBadMonth, res.Validation.Kind)
	s.Equal("Invalid month", res.Validation.Message)
	s.Equal(int64(5), s.balance(principalID))

	recs := s.usageRecords()
	s.Require().Len(recs, 1)
	s.Equal(int64(0), recs[0].TokensUsed)
	s.Equal(http.StatusBadRequest, recs[0].ResponseStatus)
}

func (s *ExtractionSuite) TestMissingAndMalformedInput() {
	ctx, principalID := s.principalCtx(5)

	res := s.service.Extract(ctx, Input{Scheme: codec.SchemeEgyptian})
	s.Equal(OutcomeBadRequest, res.Outcome)
	s.Equal("This field is required.", res.Validation.Message)

	res = s.service.Extract(ctx, Input{Scheme: codec.SchemeEgyptian, Malformed: true})
	s.Equal(OutcomeBadRequest, res.Outcome)
	s.Equal(KindMalformedBody, res.Validation.Kind)

	s.Equal(int64(5), s.balance(principalID))
	s.Len(s.usageRecords(), 2)
}

func (s *ExtractionSuite) TestInsufficientBalanceChecksBeforeValidation() {
	ctx, principalID := s.principalCtx(0)

	// invalid input still reports 402 because the balance is checked first
	res := s.service.Extract(ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: "garbage"})

	s.Equal(OutcomePaymentRequired, res.Outcome)
	s.Equal(http.StatusPaymentRequired, res.Status())
	s.Equal(int64(0), s.balance(principalID))

	recs := s.usageRecords()
	s.Require().Len(recs, 1)
	s.Equal(http.StatusPaymentRequired, recs[0].ResponseStatus)
}

func (s *ExtractionSuite) TestTokenCostIsConfigurable() {
	svc, err := New(s.ledger, registry(s.now), s.recorder, WithLogger(quietLogger()), WithTokenCost(3))
	s.Require().NoError(err)

	ctx, principalID := s.principalCtx(4)
	s.Equal(OutcomeSuccess, svc.Extract(ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: validID}).Outcome)
	s.Equal(int64(1), s.balance(principalID))
	s.Equal(OutcomePaymentRequired, svc.Extract(ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: validID}).Outcome)
}

func (s *ExtractionSuite) TestUnknownPrincipalIsInternalError() {
	ctx := requestcontext.WithPrincipalID(context.Background(), id.NewPrincipalID())
	ctx = requestcontext.WithAPIKeyID(ctx, s.keyID)

	res := s.service.Extract(ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: validID})

	s.Equal(OutcomeInternalError, res.Outcome)
	s.Error(res.Err)
	recs := s.usageRecords()
	s.Require().Len(recs, 1)
	s.Equal(http.StatusInternalServerError, recs[0].ResponseStatus)
}

func (s *ExtractionSuite) TestConcurrentRequestsNeverOverdraw() {
	const balance, requests = 7, 25
	ctx, principalID := s.principalCtx(balance)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.service.Extract(ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: validID}).Outcome == OutcomeSuccess {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(balance, successes)
	s.Equal(int64(0), s.balance(principalID))
	s.Len(s.usageRecords(), requests)
}

func (s *ExtractionSuite) TestSpansCoverPipeline() {
	ctx, _ := s.principalCtx(1)
	s.service.Extract(ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: validID})

	var names []string
	for _, span := range s.spans.Ended() {
		names = append(names, span.Name())
	}
	s.ElementsMatch([]string{
		"extraction.balance_check",
		"extraction.validate",
		"extraction.extract",
		"extraction.charge",
		"extraction.log_usage",
		"extraction.Extract",
	}, names)
}

// =============================================================================
// Fault handling with mocked collaborators
// =============================================================================

type FaultSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	ledger  *mocks.MockLedger
	usage   *mocks.MockUsageRecorder
	metrics *mocks.MockMetrics
	service *Service
	ctx     context.Context
}

func TestFaultSuite(t *testing.T) {
	suite.Run(t, new(FaultSuite))
}

func (s *FaultSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.usage = mocks.NewMockUsageRecorder(s.ctrl)
	s.metrics = mocks.NewMockMetrics(s.ctrl)
	s.ctx = requestcontext.WithPrincipalID(context.Background(), id.NewPrincipalID())

	var err error
	s.service, err = New(s.ledger, registry(time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)), s.usage,
		WithLogger(quietLogger()),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)

	s.ledger.EXPECT().RunInTx(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().
		DoAndReturn(func(ctx context.Context, _ id.PrincipalID, fn func(context.Context) error) error {
			return fn(ctx)
		})
}

func (s *FaultSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *FaultSuite) TestChargeFailureAfterExtractionIsInternal() {
	s.ledger.EXPECT().HasSufficient(gomock.Any(), gomock.Any(), int64(1)).Return(true, nil)
	s.ledger.EXPECT().Deduct(gomock.Any(), gomock.Any(), int64(1)).Return(false, errors.New("connection reset"))
	s.usage.EXPECT().RecordRequest(gomock.Any(), int64(0), http.StatusInternalServerError)
	s.metrics.EXPECT().ObserveExtraction("internal_error", gomock.Any())

	res := s.service.Extract(s.ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: validID})
	s.Equal(OutcomeInternalError, res.Outcome)
	s.Nil(res.Record)
}

func (s *FaultSuite) TestPanicInsideTransactionIsContained() {
	s.ledger.EXPECT().HasSufficient(gomock.Any(), gomock.Any(), int64(1)).DoAndReturn(
		func(context.Context, id.PrincipalID, int64) (bool, error) { panic("nil map") })
	s.usage.EXPECT().RecordRequest(gomock.Any(), int64(0), http.StatusInternalServerError)
	s.metrics.EXPECT().ObserveExtraction("internal_error", gomock.Any())

	var res *Result
	s.NotPanics(func() {
		res = s.service.Extract(s.ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: validID})
	})
	s.Equal(OutcomeInternalError, res.Outcome)
}

func (s *FaultSuite) TestUnknownSchemeIsInternal() {
	s.ledger.EXPECT().HasSufficient(gomock.Any(), gomock.Any(), int64(1)).Return(true, nil)
	s.usage.EXPECT().RecordRequest(gomock.Any(), int64(0), http.StatusInternalServerError)
	s.metrics.EXPECT().ObserveExtraction("internal_error", gomock.Any())

	res := s.service.Extract(s.ctx, Input{Scheme: "martian", NationalID: validID})
	s.Equal(OutcomeInternalError, res.Outcome)
}

func (s *FaultSuite) TestDeductRaceReportsPaymentRequired() {
	s.ledger.EXPECT().HasSufficient(gomock.Any(), gomock.Any(), int64(1)).Return(true, nil)
	s.ledger.EXPECT().Deduct(gomock.Any(), gomock.Any(), int64(1)).Return(false, nil)
	s.usage.EXPECT().RecordRequest(gomock.Any(), int64(0), http.StatusPaymentRequired)
	s.metrics.EXPECT().ObserveExtraction("payment_required", gomock.Any())

	res := s.service.Extract(s.ctx, Input{Scheme: codec.SchemeEgyptian, NationalID: validID})
	s.Equal(OutcomePaymentRequired, res.Outcome)
}

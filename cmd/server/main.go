package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"nidapi/internal/admin"
	"nidapi/internal/admin/adapters"
	"nidapi/internal/apikey"
	apikeyService "nidapi/internal/apikey/service"
	"nidapi/internal/apikey/store/key"
	billing "nidapi/internal/billing/service"
	"nidapi/internal/billing/store/principal"
	extractionHandler "nidapi/internal/extraction/handler"
	extractionService "nidapi/internal/extraction/service"
	"nidapi/internal/nationalid/codec"
	"nidapi/internal/platform/config"
	"nidapi/internal/platform/httpserver"
	"nidapi/internal/platform/logger"
	"nidapi/internal/platform/metrics"
	"nidapi/internal/platform/postgres"
	"nidapi/internal/platform/redis"
	ratelimitMiddleware "nidapi/internal/ratelimit/middleware"
	ratelimitModels "nidapi/internal/ratelimit/models"
	ratelimitService "nidapi/internal/ratelimit/service"
	"nidapi/internal/ratelimit/store/bucket"
	httptransport "nidapi/internal/transport/http"
	"nidapi/internal/usage/publisher/kafka"
	usageService "nidapi/internal/usage/service"
	"nidapi/internal/usage/store/record"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// infra holds the optional backing services. Nil fields mean the in-memory
// implementation is used instead.
type infra struct {
	db        *sql.DB
	redis     *redis.Client
	publisher *kafka.Publisher
}

func (i *infra) close(log *slog.Logger) {
	if i.publisher != nil {
		i.publisher.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("failed to close postgres", "error", err)
		}
	}
}

func connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}
	var err error

	if in.db, err = postgres.Open(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if in.db != nil {
		if err := postgres.Migrate(ctx, in.db); err != nil {
			in.close(log)
			return nil, err
		}
		log.Info("using postgres stores")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	if in.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		// the in-memory bucket store keeps the limiter working
		log.Warn("redis unavailable, rate limiting in memory", "error", err)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		if in.publisher, err = kafka.Dial(ctx, cfg.Kafka.Brokers, cfg.Kafka.UsageTopic); err != nil {
			log.Warn("kafka unavailable, usage events not published", "error", err)
		}
	}
	return in, nil
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	m := metrics.New()

	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close(log)

	var (
		principalStore billing.Store       = principal.NewInMemory()
		keyStore       apikeyService.Store = key.NewInMemory()
		usageStore     usageService.Store  = record.NewInMemory()
		ledgerTx                           = billing.NewShardedTx()
		usageFallback  usageService.Store
	)
	if in.db != nil {
		principalStore = principal.NewPostgres(in.db)
		keyStore = key.NewPostgres(in.db)
		usageStore = record.NewPostgres(in.db)
		ledgerTx = billing.NewPostgresTx(in.db)
		usageFallback = record.NewInMemory()
	}

	ledger := billing.New(principalStore,
		billing.WithLogger(log),
		billing.WithMetrics(m),
		billing.WithTx(ledgerTx),
	)

	keys, err := apikeyService.New(keyStore, ledger,
		apikeyService.WithLogger(log),
		apikeyService.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("api key service: %w", err)
	}

	usageOpts := []usageService.Option{
		usageService.WithLogger(log),
		usageService.WithMetrics(m),
	}
	if usageFallback != nil {
		usageOpts = append(usageOpts, usageService.WithFallback(usageFallback))
	}
	if in.publisher != nil {
		usageOpts = append(usageOpts, usageService.WithPublisher(in.publisher))
	}
	recorder, err := usageService.New(usageStore, usageOpts...)
	if err != nil {
		return fmt.Errorf("usage recorder: %w", err)
	}

	policy, err := ratelimitModels.NewPolicy(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	if err != nil {
		return err
	}
	var buckets ratelimitService.BucketStore = bucket.New()
	limiterOpts := []ratelimitService.Option{
		ratelimitService.WithLogger(log),
		ratelimitService.WithMetrics(m),
	}
	if in.redis != nil {
		buckets = bucket.NewRedis(in.redis.Client)
		limiterOpts = append(limiterOpts, ratelimitService.WithFallback(bucket.New()))
	}
	limiter, err := ratelimitService.New(buckets, policy, limiterOpts...)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	pipeline, err := extractionService.New(ledger, codec.NewRegistry(codec.NewEgyptian()), recorder,
		extractionService.WithLogger(log),
		extractionService.WithMetrics(m),
		extractionService.WithTokenCost(cfg.Billing.TokenCost),
	)
	if err != nil {
		return fmt.Errorf("extraction service: %w", err)
	}

	if cfg.Admin.TokenHash == "" {
		log.Warn("ADMIN_TOKEN_HASH not set, admin API disabled")
	}

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:  log,
		APIKeys: apikey.NewMiddlewareAdapter(keys),
		RateLimit: ratelimitMiddleware.New(limiter, log,
			ratelimitMiddleware.WithUsageRecorder(recorder),
			ratelimitMiddleware.WithMetrics(m),
		),
		Extraction:     extractionHandler.New(pipeline, log),
		Admin:          admin.New(ledger, keys, adapters.NewUsageAdapter(keys, recorder), log),
		AdminTokenHash: cfg.Admin.TokenHash,
		Metrics:        promhttp.Handler(),
		HealthChecks:   healthChecks(in),
	})

	srv := httpserver.New(cfg.Server.Addr, otelhttp.NewHandler(router, "nidapi"), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting nidapi", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func healthChecks(in *infra) map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	return checks
}

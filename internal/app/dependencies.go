package app

import (
	"context"
	"fmt"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/config"
	"github.com/noah-isme/backend-checkout/internal/database"
	"github.com/noah-isme/backend-checkout/internal/ratelimit"
	"github.com/noah-isme/backend-checkout/internal/resilience"
)

// Dependencies enumerates the infrastructure shared by the API and the worker.
type Dependencies struct {
	Config       *config.Config
	Logger       zerolog.Logger
	DB           *pgxpool.Pool
	Redis        *redis.Client
	Validator    *validator.Validate
	LimiterStore limiter.Store
}

// Open connects to Postgres and Redis and instruments both clients.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, appName string) (*Dependencies, error) {
	if cfg.AutoMigrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := database.Open(ctx, database.PoolConfig{URL: cfg.DatabaseURL, ApplicationName: appName})
	if err != nil {
		return nil, err
	}

	rdb, err := NewRedis(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	store, err := ratelimit.NewRedisStore(rdb, "ratelimit")
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("limiter store: %w", err)
	}

	return &Dependencies{
		Config:       cfg,
		Logger:       logger,
		DB:           pool,
		Redis:        rdb,
		Validator:    common.NewValidator(),
		LimiterStore: store,
	}, nil
}

// NewRedis parses REDIS_URL, attaches OpenTelemetry hooks and pings the server.
func NewRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Observability.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Close releases the pool and the Redis client.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// Outbound returns a resilient HTTP client for a third-party API. Every attempt
// gets its own client span through the otelhttp transport.
func (d *Dependencies) Outbound(target string) resilience.HTTPClient {
	out := d.Config.Outbound
	breaker := resilience.NewBreaker(out.CircuitMinRequests, out.CircuitFailureRatio, out.CircuitOpenFor).
		WithTarget(target).
		WithLogger(d.Logger)
	logger := d.Logger
	return resilience.HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   out.Timeout,
		},
		Breaker: breaker,
		Target:  target,
		Timeout: out.Timeout,
		Logger:  &logger,
	}
}

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/backend-checkout/internal/app"
	"github.com/noah-isme/backend-checkout/internal/config"
	"github.com/noah-isme/backend-checkout/internal/obs"
	"github.com/noah-isme/backend-checkout/internal/order"
	"github.com/noah-isme/backend-checkout/internal/queue"
)

const sweepBatch = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	obsCfg := cfg.Observability
	logger := obs.NewLogger(obsCfg.LogFormat, obsCfg.LogLevel).With().Str("component", "worker").Logger()
	if obsCfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(obsCfg.MetricsNamespace, nil)
	}

	stopTracing, _ := obs.StartTracing(context.Background(), obs.TracingConfig{
		Enabled:       obsCfg.TracingEnabled,
		ServiceName:   "checkout-worker",
		Endpoint:      obsCfg.OTLPEndpoint,
		SamplingRatio: obsCfg.SamplingRatio,
		Environment:   cfg.AppEnv,
	}, logger)
	defer stopTracing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.Open(connectCtx, cfg, logger, "checkout-worker")
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	expiry := order.ExpiryWorker{Orders: order.NewStore(deps.DB), Logger: logger}

	worker := queue.Worker{
		R:                 deps.Redis,
		Prefix:            cfg.QueuePrefix,
		Kind:              order.TaskExpire,
		Concurrency:       cfg.WorkerConcurrent,
		VisibilityTimeout: time.Minute,
		RetryBase:         5 * time.Second,
		RetryJitter:       0.2,
		DLQ:               queue.NewStore(deps.DB),
		Logger:            &logger,
		Handler:           expiry.Handle,
	}

	go expiry.RunSweeper(ctx, cfg.ExpirySweepEvery, sweepBatch)

	logger.Info().Str("kind", worker.Kind).Int("concurrency", worker.Concurrency).Msg("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}

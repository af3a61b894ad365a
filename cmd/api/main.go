package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/backend-checkout/internal/app"
	"github.com/noah-isme/backend-checkout/internal/config"
	"github.com/noah-isme/backend-checkout/internal/health"
	"github.com/noah-isme/backend-checkout/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	obsCfg := cfg.Observability
	logger := obs.NewLogger(obsCfg.LogFormat, obsCfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	if obsCfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(obsCfg.MetricsNamespace, nil)
	}

	stopTracing, tracing := obs.StartTracing(context.Background(), obs.TracingConfig{
		Enabled:       obsCfg.TracingEnabled,
		ServiceName:   "checkout-api",
		Endpoint:      obsCfg.OTLPEndpoint,
		SamplingRatio: obsCfg.SamplingRatio,
		Environment:   cfg.AppEnv,
	}, logger)
	defer stopTracing()
	cfg.Observability.TracingEnabled = tracing

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.Open(connectCtx, cfg, logger, "checkout-api")
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	handler, err := app.NewRouter(deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("build router")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

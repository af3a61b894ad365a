package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-checkout/internal/auth"
	"github.com/noah-isme/backend-checkout/internal/cart"
	"github.com/noah-isme/backend-checkout/internal/catalog"
	"github.com/noah-isme/backend-checkout/internal/checkout"
	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/coupon"
	"github.com/noah-isme/backend-checkout/internal/health"
	"github.com/noah-isme/backend-checkout/internal/lock"
	"github.com/noah-isme/backend-checkout/internal/obs"
	"github.com/noah-isme/backend-checkout/internal/order"
	"github.com/noah-isme/backend-checkout/internal/payment"
	"github.com/noah-isme/backend-checkout/internal/queue"
	"github.com/noah-isme/backend-checkout/internal/ratelimit"
	"github.com/noah-isme/backend-checkout/internal/security"
	"github.com/noah-isme/backend-checkout/internal/shipping"
	"github.com/noah-isme/backend-checkout/internal/user"
)

// NewRouter builds every service from d and mounts the public API, the operator
// endpoints and the probes on a chi router. Nothing touches the database until a
// request arrives.
func NewRouter(d *Dependencies) (http.Handler, error) {
	cfg := d.Config
	logger := d.Logger

	tokens, err := auth.NewTokens(auth.Config{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		ClockSkew: cfg.JWTSkew,
	})
	if err != nil {
		return nil, fmt.Errorf("auth tokens: %w", err)
	}
	authMW := auth.Middleware{Tokens: tokens}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Repo:  catalog.NewStore(d.DB),
		Cache: catalog.NewCache(d.Redis, cfg.CatalogCacheTTL),
	})
	if err != nil {
		return nil, err
	}
	resolver := &cart.Resolver{Products: catalogSvc}

	shipClient, err := d.ShippingClient()
	if err != nil {
		return nil, err
	}
	shipSvc := &shipping.Service{
		Client:           shipClient,
		Provider:         cfg.Shipping.Provider,
		OriginPostalCode: cfg.Shipping.OriginPostalCode,
		Logger:           logger,
	}

	provider, err := d.PaymentProvider()
	if err != nil {
		return nil, err
	}

	addresses := user.NewStore(d.DB)
	orders := order.NewStore(d.DB)
	enqueuer := queue.Enqueuer{R: d.Redis, Prefix: cfg.QueuePrefix, DedupTTL: cfg.OrderPaymentTTL + time.Hour}

	checkoutSvc := &checkout.Service{
		Addresses:  addresses,
		Items:      resolver,
		Coupons:    &coupon.Service{Repo: coupon.NewStore(d.DB)},
		Orders:     orders,
		Payments:   &payment.Service{Provider: provider},
		Expiry:     order.ExpiryScheduler{Queue: enqueuer, TTL: cfg.OrderPaymentTTL},
		Lock:       lock.Locker{R: d.Redis, Prefix: "lock:", MaxWait: cfg.CheckoutLockWait},
		LockTTL:    cfg.CheckoutLockTTL,
		Currency:   cfg.CurrencyCode,
		PaymentTTL: cfg.OrderPaymentTTL,
		Logger:     logger,
	}

	webhook := payment.Webhook{
		Provider:  provider,
		Orders:    orders,
		Secret:    cfg.Payment.WebhookSecret,
		Tolerance: cfg.Payment.WebhookTolerance,
		Replay:    d.Redis,
		ReplayTTL: cfg.Payment.WebhookReplayTTL,
	}

	checkoutRate, err := d.rateLimit(cfg.CheckoutRate, "orders")
	if err != nil {
		return nil, err
	}
	quoteRate, err := d.rateLimit(cfg.QuoteRate, "quote")
	if err != nil {
		return nil, err
	}

	catalogHandler := catalog.NewHandler(catalogSvc)
	quoteHandler := &shipping.Handler{Items: resolver, Quotes: shipSvc, Validate: d.Validator}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Validate: d.Validator}
	addressHandler := &user.Handler{Addresses: addresses, Validate: d.Validator}
	orderHandler := &order.Handler{Orders: orders}
	orderAdmin := &order.AdminHandler{Orders: orders}
	queueAdmin := &queue.AdminHandler{Store: queue.NewStore(d.DB), Queue: enqueuer, Validate: d.Validator}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	healthHandler := health.Handler{Checker: health.Probe{DB: d.DB, Redis: d.Redis}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Observability.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Observability.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(cfg.Observability.MetricsBuckets)
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.Observability.MetricsNamespace, buckets, nil)}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		catalogHandler.Mount(v)

		v.With(authMW.Authenticate, quoteRate.Middleware).Post("/shipping/quote", quoteHandler.Quote)

		v.Group(func(authR chi.Router) {
			authR.Use(authMW.RequireAuth)
			authR.With(checkoutRate.Middleware, idem.Middleware).Post("/orders", checkoutHandler.Checkout)
			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{orderID}", orderHandler.Get)

			authR.Get("/users/me/addresses", addressHandler.List)
			authR.Post("/users/me/addresses", addressHandler.Create)
			authR.Delete("/users/me/addresses/{addressID}", addressHandler.Delete)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireAuth)
			admin.Use(auth.RequireRole("admin"))
			admin.Post("/orders/{orderID}/cancel", orderAdmin.Cancel)
			admin.Get("/queue/dlq", queueAdmin.ListDLQ)
			admin.Post("/queue/dlq/replay", queueAdmin.ReplayDLQ)
			admin.Get("/queue/stats", queueAdmin.Stats)
		})

		v.Post("/webhooks/payment", webhook.Handle)
	})

	return r, nil
}

func (d *Dependencies) rateLimit(rate, scope string) (ratelimit.Handler, error) {
	limiter, err := ratelimit.NewFixed(d.LimiterStore, rate)
	if err != nil {
		return ratelimit.Handler{}, err
	}
	logger := d.Logger
	return ratelimit.Handler{
		Limiter: limiter,
		Key:     ratelimit.ByCaller(scope),
		OnError: func(err error) {
			logger.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
		},
	}, nil
}

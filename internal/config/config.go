package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment. It is built
// once at process start and passed by pointer; nothing mutates it afterwards.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	AutoMigrate        bool
	CORSAllowedOrigins []string
	CurrencyCode       string
	PublicBaseURL      string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTSkew     time.Duration

	IdempotencyTTL   time.Duration
	CheckoutLockTTL  time.Duration
	CheckoutLockWait time.Duration
	CatalogCacheTTL  time.Duration
	OrderPaymentTTL  time.Duration
	ExpirySweepEvery time.Duration
	QueuePrefix      string
	CheckoutRate     string
	QuoteRate        string
	BodyLimitBytes   int64
	SecurityHeaders  bool
	WorkerConcurrent int

	Shipping      ShippingConfig
	Payment       PaymentConfig
	Outbound      OutboundConfig
	Observability ObservabilityConfig
}

// ShippingConfig selects and configures the carrier quoting backend.
type ShippingConfig struct {
	Provider         string
	BaseURL          string
	APIToken         string
	UserAgent        string
	OriginPostalCode string
}

// PaymentConfig selects and configures the payment preference backend.
type PaymentConfig struct {
	Provider        string
	BaseURL         string
	AccessToken     string
	WebhookSecret   string
	NotificationURL string
	SuccessURL      string
	FailureURL      string
	PendingURL      string
	Sandbox         bool

	// WebhookTolerance bounds the age of a signed notification timestamp.
	WebhookTolerance time.Duration
	WebhookReplayTTL time.Duration
}

// OutboundConfig bounds calls to third-party APIs.
type OutboundConfig struct {
	Timeout             time.Duration
	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration
}

// ObservabilityConfig controls logging, metrics and tracing.
type ObservabilityConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		AutoMigrate:        parseBool(k.String("DB_AUTO_MIGRATE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "BRL")),
		PublicBaseURL:      strings.TrimRight(valueOrDefault(k.String("PUBLIC_BASE_URL"), "http://localhost:8080"), "/"),

		JWTSecret:   k.String("JWT_SECRET"),
		JWTIssuer:   valueOrDefault(k.String("JWT_ISSUER"), "backend-checkout"),
		JWTAudience: valueOrDefault(k.String("JWT_AUDIENCE"), "storefront"),
		JWTSkew:     parseDuration(k.String("JWT_CLOCK_SKEW"), "30s"),

		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CheckoutLockTTL:  parseDuration(k.String("CHECKOUT_LOCK_TTL"), "30s"),
		CheckoutLockWait: parseDuration(k.String("CHECKOUT_LOCK_WAIT"), "5s"),
		CatalogCacheTTL:  parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		OrderPaymentTTL:  parseDuration(k.String("ORDER_PAYMENT_TTL"), "24h"),
		ExpirySweepEvery: parseDuration(k.String("ORDER_EXPIRY_SWEEP_INTERVAL"), "5m"),
		QueuePrefix:      valueOrDefault(k.String("QUEUE_PREFIX"), "checkout"),
		CheckoutRate:     valueOrDefault(k.String("RATE_LIMIT_CHECKOUT"), "20-M"),
		QuoteRate:        valueOrDefault(k.String("RATE_LIMIT_QUOTE"), "60-M"),
		BodyLimitBytes:   int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeaders:  parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
		WorkerConcurrent: parseInt(k.String("WORKER_CONCURRENCY"), 5),

		Shipping: ShippingConfig{
			Provider:         strings.ToLower(valueOrDefault(k.String("SHIPPING_PROVIDER"), "mock")),
			BaseURL:          strings.TrimSpace(k.String("SHIPPING_BASE_URL")),
			APIToken:         k.String("SHIPPING_API_TOKEN"),
			UserAgent:        valueOrDefault(k.String("SHIPPING_USER_AGENT"), "backend-checkout"),
			OriginPostalCode: k.String("SHIPPING_ORIGIN_POSTAL_CODE"),
		},
		Payment: PaymentConfig{
			Provider:         strings.ToLower(valueOrDefault(k.String("PAYMENT_PROVIDER"), "mock")),
			BaseURL:          strings.TrimSpace(k.String("PAYMENT_BASE_URL")),
			AccessToken:      k.String("PAYMENT_ACCESS_TOKEN"),
			WebhookSecret:    k.String("PAYMENT_WEBHOOK_SECRET"),
			NotificationURL:  k.String("PAYMENT_NOTIFICATION_URL"),
			SuccessURL:       k.String("PAYMENT_SUCCESS_URL"),
			FailureURL:       k.String("PAYMENT_FAILURE_URL"),
			PendingURL:       k.String("PAYMENT_PENDING_URL"),
			Sandbox:          parseBool(k.String("PAYMENT_SANDBOX")),
			WebhookTolerance: parseDuration(k.String("PAYMENT_WEBHOOK_TOLERANCE"), "10m"),
			WebhookReplayTTL: parseDuration(k.String("PAYMENT_WEBHOOK_REPLAY_TTL"), "48h"),
		},
		Outbound: OutboundConfig{
			Timeout:             parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),
			CircuitMinRequests:  parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 10),
			CircuitFailureRatio: parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
			CircuitOpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),
		},
		Observability: ObservabilityConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "checkout"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING")),
			OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.Payment.Provider == "mercadopago" && strings.TrimSpace(cfg.Payment.AccessToken) == "" {
		return nil, errors.New("PAYMENT_ACCESS_TOKEN is required for the mercadopago provider")
	}
	if cfg.Shipping.Provider == "melhorenvio" && strings.TrimSpace(cfg.Shipping.APIToken) == "" {
		return nil, errors.New("SHIPPING_API_TOKEN is required for the melhorenvio provider")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AllowedOrigins returns the CORS allow-list, defaulting to every origin.
func (c *Config) AllowedOrigins() []string {
	if len(c.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return append([]string(nil), c.CORSAllowedOrigins...)
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

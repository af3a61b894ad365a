package config

import (
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":         "postgres://localhost/checkout",
		"REDIS_URL":            "redis://localhost:6379/0",
		"JWT_SECRET":           "secret",
		"CORS_ALLOWED_ORIGINS": "https://shop.example, https://admin.example ,",
		"ORDER_PAYMENT_TTL":    "2h",
		"OUTBOUND_TIMEOUT":     "not-a-duration",
		"PAYMENT_PROVIDER":     "",
		"SHIPPING_PROVIDER":    "",
		"PORT":                 "9090",
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.HTTPAddr(); got != ":9090" {
		t.Fatalf("unexpected addr %q", got)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.example" {
		t.Fatalf("unexpected origins %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.OrderPaymentTTL != 2*time.Hour {
		t.Fatalf("expected 2h payment ttl got %s", cfg.OrderPaymentTTL)
	}
	if cfg.Outbound.Timeout != 10*time.Second {
		t.Fatalf("expected fallback outbound timeout, got %s", cfg.Outbound.Timeout)
	}
	if cfg.Payment.Provider != "mock" || cfg.Shipping.Provider != "mock" {
		t.Fatalf("expected mock providers, got %q/%q", cfg.Payment.Provider, cfg.Shipping.Provider)
	}
	if cfg.CurrencyCode != "BRL" {
		t.Fatalf("expected BRL currency, got %q", cfg.CurrencyCode)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	if _, err := LoadForTests(env); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadRequiresPaymentTokenForMercadoPago(t *testing.T) {
	env := baseEnv()
	env["PAYMENT_PROVIDER"] = "mercadopago"
	env["PAYMENT_ACCESS_TOKEN"] = ""
	if _, err := LoadForTests(env); err == nil {
		t.Fatal("expected error when payment access token is missing")
	}
}

func TestAllowedOriginsDefaultsToWildcard(t *testing.T) {
	cfg := &Config{}
	origins := cfg.AllowedOrigins()
	if len(origins) != 1 || origins[0] != "*" {
		t.Fatalf("expected wildcard, got %#v", origins)
	}
}

package shipping

import (
	"context"
	"encoding/json"
	"strings"
)

// Package is one parcel line sent to the carrier for quoting.
type Package struct {
	ID             string
	WeightGrams    int
	WidthCm        int
	HeightCm       int
	LengthCm       int
	Quantity       int
	InsuranceCents int64
}

// RateReq describes a shipping rate request.
type RateReq struct {
	OriginPostalCode      string
	DestinationPostalCode string
	Packages              []Package
}

// Rate is a carrier service quote. Carriers report unavailable services with a
// non-empty Error instead of failing the whole request.
type Rate struct {
	Carrier      string
	Service      string
	PriceCents   int64
	DeliveryDays int
	Error        string
}

// Client defines the behaviour required to quote shipping rates.
type Client interface {
	Rates(ctx context.Context, r RateReq) ([]Rate, error)
}

// MockClient returns canned rates scaled by parcel weight. It is the default for
// development and tests.
type MockClient struct{}

// Rates implements Client.
func (MockClient) Rates(_ context.Context, r RateReq) ([]Rate, error) {
	var grams int64
	for _, p := range r.Packages {
		grams += int64(p.WeightGrams) * int64(max(p.Quantity, 1))
	}
	extra := (grams / 1000) * 200
	return []Rate{
		{Carrier: "Correios", Service: "PAC", PriceCents: 1890 + extra, DeliveryDays: 7},
		{Carrier: "Correios", Service: "SEDEX", PriceCents: 3250 + extra, DeliveryDays: 2},
		{Carrier: "Jadlog", Service: ".Com", Error: "service unavailable for this route"},
	}, nil
}

// Option is a quotable shipping choice returned to clients.
type Option struct {
	Carrier          string `json:"carrier"`
	Service          string `json:"service"`
	PriceCents       int64  `json:"price_cents"`
	DeliveryTimeDays int    `json:"delivery_time_days"`
}

// Selection is the shipping choice a client submits at checkout. It is trusted
// as sent and not re-quoted.
type Selection struct {
	Carrier          string `json:"carrier"`
	Service          string `json:"service"`
	PriceCents       int64  `json:"price_cents"`
	DeliveryTimeDays int    `json:"delivery_time_days"`
}

// UnmarshalJSON accepts "name" as an alias for "service".
func (s *Selection) UnmarshalJSON(data []byte) error {
	var raw struct {
		Carrier          string `json:"carrier"`
		Service          string `json:"service"`
		Name             string `json:"name"`
		PriceCents       int64  `json:"price_cents"`
		DeliveryTimeDays int    `json:"delivery_time_days"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	service := strings.TrimSpace(raw.Service)
	if service == "" {
		service = strings.TrimSpace(raw.Name)
	}
	*s = Selection{
		Carrier:          strings.TrimSpace(raw.Carrier),
		Service:          service,
		PriceCents:       raw.PriceCents,
		DeliveryTimeDays: raw.DeliveryTimeDays,
	}
	return nil
}

// Cost returns the selection price, coercing negative values to zero.
func (s Selection) Cost() int64 {
	if s.PriceCents < 0 {
		return 0
	}
	return s.PriceCents
}

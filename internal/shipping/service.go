package shipping

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-checkout/internal/cart"
	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/obs"
)

// ErrQuoteUnavailable is wrapped by errors returned when the carrier cannot be reached.
var ErrQuoteUnavailable = errors.New("shipping quote unavailable")

// Service quotes shipping options for resolved cart items.
type Service struct {
	Client           Client
	Provider         string
	OriginPostalCode string
	Logger           zerolog.Logger
}

// Quote returns the carrier options for shipping items to postalCode. A carrier
// that offers nothing yields an empty slice, not an error. Services the carrier
// flags as unavailable are dropped.
func (s *Service) Quote(ctx context.Context, postalCode string, items []cart.Item) ([]Option, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("shipping service not configured")
	}
	destination := NormalizePostalCode(postalCode)
	if destination == "" {
		return nil, common.InvalidInput("destination postal code is required")
	}
	if len(items) == 0 {
		return nil, common.InvalidInput("items must not be empty")
	}

	req := RateReq{
		OriginPostalCode:      NormalizePostalCode(s.OriginPostalCode),
		DestinationPostalCode: destination,
		Packages:              make([]Package, 0, len(items)),
	}
	for _, it := range items {
		req.Packages = append(req.Packages, Package{
			ID:             strconv.FormatInt(it.Product.ID, 10),
			WeightGrams:    it.Product.WeightGrams,
			WidthCm:        it.Product.WidthCm,
			HeightCm:       it.Product.HeightCm,
			LengthCm:       it.Product.LengthCm,
			Quantity:       it.Quantity,
			InsuranceCents: it.UnitPrice,
		})
	}

	rates, err := s.Client.Rates(ctx, req)
	if err != nil {
		obs.ObserveShippingQuote(s.provider(), "error")
		s.Logger.Error().Err(err).Str("destination", destination).Msg("shipping quote failed")
		return nil, common.NewAppError("SHIPPING_UNAVAILABLE", "shipping quotes are temporarily unavailable", http.StatusBadGateway,
			errors.Join(ErrQuoteUnavailable, err))
	}

	options := make([]Option, 0, len(rates))
	for _, r := range rates {
		if strings.TrimSpace(r.Error) != "" {
			continue
		}
		options = append(options, Option{
			Carrier:          r.Carrier,
			Service:          r.Service,
			PriceCents:       max(r.PriceCents, 0),
			DeliveryTimeDays: r.DeliveryDays,
		})
	}
	result := "ok"
	if len(options) == 0 {
		result = "empty"
	}
	obs.ObserveShippingQuote(s.provider(), result)
	return options, nil
}

func (s *Service) provider() string {
	if s.Provider == "" {
		return "mock"
	}
	return s.Provider
}

// NormalizePostalCode strips everything but digits.
func NormalizePostalCode(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, code)
}

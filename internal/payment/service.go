package payment

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/obs"
)

// Service creates payment preferences through the configured provider.
type Service struct {
	Provider Provider
}

// CreatePreference asks the provider for a hosted checkout. Every provider failure
// is reported as a payment gateway failure so the caller can roll back.
func (s *Service) CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error) {
	if s == nil || s.Provider == nil {
		return Preference{}, common.PaymentGatewayFailure(errors.New("payment provider not configured"))
	}
	providerName := s.Provider.Name()
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreatePreference")
	defer span.End()

	start := time.Now()
	pref, err := s.Provider.CreatePreference(ctx, req)
	span.SetAttributes(
		attribute.String("payment.provider", providerName),
		attribute.String("order.id", req.OrderID),
		attribute.Int("payment.items", len(req.Items)),
		attribute.Float64("payment.preference.duration_ms", obs.DurationMillis(time.Since(start))),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create preference failed")
		obs.ObservePaymentPreference(providerName, "error")
		zerolog.Ctx(ctx).Warn().Err(err).Str("provider", providerName).Str("order_id", req.OrderID).Msg("payment preference failed")
		return Preference{}, common.PaymentGatewayFailure(err)
	}
	obs.ObservePaymentPreference(providerName, "ok")
	return pref, nil
}

package app

import (
	"fmt"
	"time"

	"github.com/noah-isme/backend-checkout/internal/payment"
	"github.com/noah-isme/backend-checkout/internal/shipping"
)

// PaymentProvider selects the payment backend named by PAYMENT_PROVIDER.
func (d *Dependencies) PaymentProvider() (payment.Provider, error) {
	cfg := d.Config.Payment
	switch cfg.Provider {
	case "mercadopago":
		return payment.NewMercadoPago(payment.MercadoPago{
			HTTP:            d.Outbound("mercadopago"),
			BaseURL:         cfg.BaseURL,
			AccessToken:     cfg.AccessToken,
			NotificationURL: cfg.NotificationURL,
			SuccessURL:      cfg.SuccessURL,
			FailureURL:      cfg.FailureURL,
			PendingURL:      cfg.PendingURL,
			Sandbox:         cfg.Sandbox,
		})
	case "mock", "":
		return payment.NewMock(d.Config.PublicBaseURL + "/mock-pay"), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// ShippingClient selects the carrier backend named by SHIPPING_PROVIDER. Rate
// lookups are reads, so they get one retry on top of the breaker.
func (d *Dependencies) ShippingClient() (shipping.Client, error) {
	cfg := d.Config.Shipping
	switch cfg.Provider {
	case "melhorenvio":
		httpClient := d.Outbound("melhorenvio")
		httpClient.MaxAttempts = 2
		httpClient.BaseBackoff = 200 * time.Millisecond
		httpClient.Jitter = 0.2
		return shipping.NewMelhorEnvio(httpClient, cfg.BaseURL, cfg.APIToken, cfg.UserAgent)
	case "mock", "":
		return shipping.MockClient{}, nil
	default:
		return nil, fmt.Errorf("unknown shipping provider %q", cfg.Provider)
	}
}

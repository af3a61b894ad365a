package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-checkout/internal/resilience"
)

const mercadoPagoBaseURL = "https://api.mercadopago.com"

// MercadoPago creates Checkout Pro preferences and reads payments.
type MercadoPago struct {
	HTTP            resilience.HTTPClient
	BaseURL         string
	AccessToken     string
	NotificationURL string
	SuccessURL      string
	FailureURL      string
	PendingURL      string
	Sandbox         bool
}

type mpItem struct {
	ID         string      `json:"id,omitempty"`
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	CurrencyID string      `json:"currency_id,omitempty"`
}

type mpPreferenceRequest struct {
	Items             []mpItem `json:"items"`
	Payer             *mpPayer `json:"payer,omitempty"`
	ExternalReference string   `json:"external_reference"`
	NotificationURL   string   `json:"notification_url,omitempty"`
	BackURLs          *mpBack  `json:"back_urls,omitempty"`
	AutoReturn        string   `json:"auto_return,omitempty"`
	Expires           bool     `json:"expires"`
	ExpirationDateTo  string   `json:"expiration_date_to,omitempty"`
}

type mpPayer struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type mpBack struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type mpPreferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type mpPaymentResponse struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
}

// Name implements Provider.
func (MercadoPago) Name() string { return "mercadopago" }

// CreatePreference implements Provider. It makes exactly one attempt.
func (m MercadoPago) CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return Preference{}, errors.New("order id is required")
	}
	payload := mpPreferenceRequest{
		Items:             make([]mpItem, 0, len(req.Items)),
		ExternalReference: req.OrderID,
		NotificationURL:   m.NotificationURL,
	}
	for _, it := range req.Items {
		payload.Items = append(payload.Items, mpItem{
			ID:         it.ID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  json.Number(it.UnitPrice.StringFixed(2)),
			CurrencyID: req.Currency,
		})
	}
	if req.Payer.Email != "" || req.Payer.Name != "" {
		payload.Payer = &mpPayer{Email: req.Payer.Email, Name: req.Payer.Name}
	}
	if m.SuccessURL != "" || m.FailureURL != "" || m.PendingURL != "" {
		payload.BackURLs = &mpBack{Success: m.SuccessURL, Failure: m.FailureURL, Pending: m.PendingURL}
		if m.SuccessURL != "" {
			payload.AutoReturn = "approved"
		}
	}
	if !req.ExpiresAt.IsZero() {
		payload.Expires = true
		payload.ExpirationDateTo = req.ExpiresAt.UTC().Format("2006-01-02T15:04:05.000-07:00")
	}

	var out mpPreferenceResponse
	if err := m.call(ctx, http.MethodPost, "/checkout/preferences", payload, req.OrderID, &out); err != nil {
		return Preference{}, err
	}
	redirect := out.InitPoint
	if m.Sandbox && out.SandboxInitPoint != "" {
		redirect = out.SandboxInitPoint
	}
	if out.ID == "" || redirect == "" {
		return Preference{}, errors.New("mercadopago: preference response missing id or init point")
	}
	return Preference{ID: out.ID, RedirectURL: redirect}, nil
}

// GetPayment implements Provider.
func (m MercadoPago) GetPayment(ctx context.Context, paymentID string) (PaymentInfo, error) {
	var out mpPaymentResponse
	if err := m.call(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, "", &out); err != nil {
		return PaymentInfo{}, err
	}
	return PaymentInfo{
		ID:      out.ID.String(),
		Status:  out.Status,
		OrderID: out.ExternalReference,
		Amount:  out.TransactionAmount,
	}, nil
}

func (m MercadoPago) call(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	base := strings.TrimRight(strings.TrimSpace(m.BaseURL), "/")
	if base == "" {
		base = mercadoPagoBaseURL
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode mercadopago request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := m.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("mercadopago %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrPaymentNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mercadopago %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode mercadopago response: %w", err)
	}
	return nil
}

// NewMercadoPago validates credentials and returns a client with a default timeout.
func NewMercadoPago(m MercadoPago) (MercadoPago, error) {
	if strings.TrimSpace(m.AccessToken) == "" {
		return MercadoPago{}, errors.New("payment: access token is required")
	}
	if m.HTTP.Client == nil {
		m.HTTP.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return m, nil
}

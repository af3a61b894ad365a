package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-checkout/internal/resilience"
)

const melhorEnvioSandboxURL = "https://sandbox.melhorenvio.com.br"

// MelhorEnvio quotes rates with the Melhor Envio shipment calculator.
type MelhorEnvio struct {
	HTTP      resilience.HTTPClient
	BaseURL   string
	Token     string
	UserAgent string
}

type meCalcRequest struct {
	From     mePostal    `json:"from"`
	To       mePostal    `json:"to"`
	Products []meProduct `json:"products"`
}

type mePostal struct {
	PostalCode string `json:"postal_code"`
}

type meProduct struct {
	ID             string      `json:"id"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	Length         int         `json:"length"`
	Weight         json.Number `json:"weight"`
	InsuranceValue json.Number `json:"insurance_value"`
	Quantity       int         `json:"quantity"`
}

type meCalcResult struct {
	ID           int              `json:"id"`
	Name         string           `json:"name"`
	Price        *decimal.Decimal `json:"price"`
	CustomPrice  *decimal.Decimal `json:"custom_price"`
	DeliveryTime int              `json:"delivery_time"`
	Error        string           `json:"error"`
	Company      struct {
		Name string `json:"name"`
	} `json:"company"`
}

// Rates implements Client.
func (m MelhorEnvio) Rates(ctx context.Context, r RateReq) ([]Rate, error) {
	payload := meCalcRequest{
		From:     mePostal{PostalCode: r.OriginPostalCode},
		To:       mePostal{PostalCode: r.DestinationPostalCode},
		Products: make([]meProduct, 0, len(r.Packages)),
	}
	for _, p := range r.Packages {
		payload.Products = append(payload.Products, meProduct{
			ID:             p.ID,
			Width:          p.WidthCm,
			Height:         p.HeightCm,
			Length:         p.LengthCm,
			Weight:         json.Number(decimal.New(int64(p.WeightGrams), -3).String()),
			InsuranceValue: json.Number(decimal.New(p.InsuranceCents, -2).StringFixed(2)),
			Quantity:       p.Quantity,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode rate request: %w", err)
	}
	base := strings.TrimRight(strings.TrimSpace(m.BaseURL), "/")
	if base == "" {
		base = melhorEnvioSandboxURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v2/me/shipment/calculate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.Token)
	if m.UserAgent != "" {
		req.Header.Set("User-Agent", m.UserAgent)
	}

	resp, err := m.HTTP.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("melhorenvio calculate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("melhorenvio calculate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var results []meCalcResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode melhorenvio response: %w", err)
	}
	rates := make([]Rate, 0, len(results))
	for _, res := range results {
		rate := Rate{
			Carrier:      res.Company.Name,
			Service:      res.Name,
			DeliveryDays: res.DeliveryTime,
			Error:        res.Error,
		}
		price := res.Price
		if price == nil {
			price = res.CustomPrice
		}
		switch {
		case price != nil:
			rate.PriceCents = price.Shift(2).Round(0).IntPart()
		case rate.Error == "":
			rate.Error = "missing price for service " + strconv.Itoa(res.ID)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// ErrNoToken is returned when the carrier client is built without credentials.
var ErrNoToken = errors.New("shipping: api token is required")

// NewMelhorEnvio validates credentials and returns a client.
func NewMelhorEnvio(httpClient resilience.HTTPClient, baseURL, token, userAgent string) (MelhorEnvio, error) {
	if strings.TrimSpace(token) == "" {
		return MelhorEnvio{}, ErrNoToken
	}
	return MelhorEnvio{HTTP: httpClient, BaseURL: baseURL, Token: token, UserAgent: userAgent}, nil
}

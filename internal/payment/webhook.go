package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-checkout/internal/common"
	"github.com/noah-isme/backend-checkout/internal/obs"
	"github.com/noah-isme/backend-checkout/internal/order"
	"github.com/noah-isme/backend-checkout/internal/pricing"
)

// Signature errors.
var (
	ErrSignatureMissing = errors.New("signature header missing")
	ErrSignatureInvalid = errors.New("signature mismatch")
	ErrSignatureExpired = errors.New("signature timestamp outside tolerance")
)

const maxWebhookBody = 64 << 10

// OrderUpdater applies payment outcomes to orders.
type OrderUpdater interface {
	MarkPaid(ctx context.Context, orderID, paymentID string, amount pricing.Money) error
	Cancel(ctx context.Context, orderID, reason string) error
}

// Webhook handles payment provider notifications. The notification only names a
// payment; its status is always read back from the provider.
type Webhook struct {
	Provider  Provider
	Orders    OrderUpdater
	Secret    string
	Tolerance time.Duration
	Replay    *redis.Client
	ReplayTTL time.Duration
	Now       func() time.Time
}

type notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID notificationID `json:"id"`
	} `json:"data"`
}

// notificationID accepts the payment id as a JSON string or number.
type notificationID string

func (n *notificationID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = notificationID(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = notificationID(num.String())
	return nil
}

// Handle processes a notification and acknowledges it with 200 once applied.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Provider == nil || h.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	ctx := r.Context()
	providerName := h.Provider.Name()
	logger := zerolog.Ctx(ctx).With().Str("provider", providerName).Logger()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	var note notification
	if len(body) > 0 {
		if err := json.Unmarshal(body, &note); err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "malformed notification", nil)
			return
		}
	}
	q := r.URL.Query()
	kind := strings.ToLower(strings.TrimSpace(firstNonEmpty(note.Type, q.Get("type"), q.Get("topic"))))
	dataID := strings.TrimSpace(firstNonEmpty(q.Get("data.id"), string(note.Data.ID), q.Get("id")))

	if err := h.verify(r, dataID); err != nil {
		obs.ObservePaymentWebhook(providerName, "unauthorized")
		logger.Warn().Err(err).Msg("payment webhook rejected")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	if kind != "payment" || dataID == "" {
		obs.ObservePaymentWebhook(providerName, "ignored")
		common.JSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	replayKey := ""
	if h.Replay != nil && h.ReplayTTL > 0 {
		replayKey = fmt.Sprintf("wh:%s:%s", providerName, common.HashKey(r.Header.Get("x-request-id"), string(body), dataID))
		ok, err := h.Replay.SetNX(ctx, replayKey, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay store unavailable", nil)
			return
		}
		if !ok {
			obs.ObservePaymentWebhook(providerName, "duplicate")
			common.JSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
	}

	result, err := h.apply(ctx, dataID)
	if err != nil {
		if replayKey != "" {
			_ = h.Replay.Del(context.WithoutCancel(ctx), replayKey).Err()
		}
		obs.ObservePaymentWebhook(providerName, "error")
		logger.Error().Err(err).Str("payment_id", dataID).Msg("payment webhook failed")
		common.JSONError(w, http.StatusInternalServerError, "WEBHOOK_FAILED", "unable to process notification", nil)
		return
	}
	obs.ObservePaymentWebhook(providerName, result)
	logger.Info().Str("payment_id", dataID).Str("result", result).Msg("payment webhook processed")
	common.JSON(w, http.StatusOK, map[string]string{"status": result})
}

// apply loads the payment and moves the referenced order. It returns the outcome label.
func (h Webhook) apply(ctx context.Context, paymentID string) (string, error) {
	info, err := h.Provider.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return "ignored", nil
		}
		return "", err
	}
	if strings.TrimSpace(info.OrderID) == "" {
		return "ignored", nil
	}

	switch normaliseStatus(info.Status) {
	case StatusApproved:
		err = h.Orders.MarkPaid(ctx, info.OrderID, info.ID, toMinor(info.Amount))
		if err == nil {
			return "paid", nil
		}
	case StatusCancelled:
		err = h.Orders.Cancel(ctx, info.OrderID, "payment "+info.Status)
		if err == nil {
			return "cancelled", nil
		}
	default:
		return "pending", nil
	}

	switch {
	case errors.Is(err, order.ErrNotFound):
		zerolog.Ctx(ctx).Warn().Str("order_id", info.OrderID).Msg("payment references unknown order")
		return "ignored", nil
	case errors.Is(err, order.ErrNotPending):
		zerolog.Ctx(ctx).Warn().Str("order_id", info.OrderID).Str("payment_status", info.Status).Msg("payment for order that is no longer pending")
		return "stale", nil
	case errors.Is(err, order.ErrAmountMismatch):
		zerolog.Ctx(ctx).Error().Str("order_id", info.OrderID).Str("amount", info.Amount.String()).Msg("payment amount mismatch")
		return "mismatch", nil
	}
	return "", err
}

// verify checks an x-signature header of the form "ts=<unix>,v1=<hex>". The signed
// manifest is "id:<data.id>;request-id:<x-request-id>;ts:<ts>;" with absent parts
// omitted. An empty secret disables verification.
func (h Webhook) verify(r *http.Request, dataID string) error {
	if h.Secret == "" {
		return nil
	}
	header := r.Header.Get("x-signature")
	if header == "" {
		return ErrSignatureMissing
	}
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	if ts == "" || v1 == "" {
		return ErrSignatureMissing
	}
	if h.Tolerance > 0 {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return ErrSignatureInvalid
		}
		// Some senders use milliseconds.
		if sec > 1e12 {
			sec /= 1000
		}
		now := time.Now
		if h.Now != nil {
			now = h.Now
		}
		if d := now().Sub(time.Unix(sec, 0)); d > h.Tolerance || d < -h.Tolerance {
			return ErrSignatureExpired
		}
	}
	expected := Sign(h.Secret, SignatureManifest(dataID, r.Header.Get("x-request-id"), ts))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		return ErrSignatureInvalid
	}
	return nil
}

// SignatureManifest builds the string signed by the provider.
func SignatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA256 of manifest.
func Sign(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func normaliseStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusApproved:
		return StatusApproved
	case StatusCancelled, StatusRefunded, StatusChargedBack:
		return StatusCancelled
	default:
		return StatusPending
	}
}

func toMinor(amount decimal.Decimal) pricing.Money {
	if amount.IsZero() {
		return 0
	}
	return pricing.ToMinor(amount)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package payment

import (
	"context"
	"strings"
	"sync"
)

// Mock is an in-memory Provider used in development and tests.
type Mock struct {
	BaseURL string
	// Err, when set, is returned by CreatePreference.
	Err error

	mu       sync.Mutex
	created  []PreferenceRequest
	payments map[string]PaymentInfo
}

// NewMock returns a mock provider whose redirect URLs live under baseURL.
func NewMock(baseURL string) *Mock {
	return &Mock{BaseURL: strings.TrimRight(baseURL, "/"), payments: map[string]PaymentInfo{}}
}

// Name implements Provider.
func (*Mock) Name() string { return "mock" }

// CreatePreference implements Provider.
func (m *Mock) CreatePreference(_ context.Context, req PreferenceRequest) (Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	if m.Err != nil {
		return Preference{}, m.Err
	}
	id := "mock-" + req.OrderID
	return Preference{ID: id, RedirectURL: m.BaseURL + "/mock/checkout/" + id}, nil
}

// GetPayment implements Provider.
func (m *Mock) GetPayment(_ context.Context, paymentID string) (PaymentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.payments[paymentID]
	if !ok {
		return PaymentInfo{}, ErrPaymentNotFound
	}
	return info, nil
}

// SetPayment registers a payment returned by later GetPayment calls.
func (m *Mock) SetPayment(info PaymentInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.payments == nil {
		m.payments = map[string]PaymentInfo{}
	}
	m.payments[info.ID] = info
}

// Requests returns a copy of every preference request received so far.
func (m *Mock) Requests() []PreferenceRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PreferenceRequest(nil), m.created...)
}

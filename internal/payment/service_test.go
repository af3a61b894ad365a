package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-checkout/internal/common"
)

func TestServiceWrapsProviderFailure(t *testing.T) {
	mock := NewMock("http://pay.test")
	mock.Err = errors.New("timeout")
	svc := &Service{Provider: mock}

	_, err := svc.CreatePreference(context.Background(), PreferenceRequest{OrderID: "o-1"})
	require.ErrorIs(t, err, common.ErrPaymentGateway)
	require.ErrorIs(t, err, mock.Err)
	require.Len(t, mock.Requests(), 1)
}

func TestServiceReturnsPreference(t *testing.T) {
	svc := &Service{Provider: NewMock("http://pay.test/")}
	pref, err := svc.CreatePreference(context.Background(), PreferenceRequest{OrderID: "o-1"})
	require.NoError(t, err)
	require.Equal(t, Preference{ID: "mock-o-1", RedirectURL: "http://pay.test/mock/checkout/mock-o-1"}, pref)
}

func TestServiceWithoutProvider(t *testing.T) {
	var svc *Service
	_, err := svc.CreatePreference(context.Background(), PreferenceRequest{OrderID: "o-1"})
	require.ErrorIs(t, err, common.ErrPaymentGateway)
}

package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-checkout/internal/cart"
	"github.com/noah-isme/backend-checkout/internal/catalog"
	"github.com/noah-isme/backend-checkout/internal/common"
)

type stubClient struct {
	rates []Rate
	err   error
	req   RateReq
}

func (s *stubClient) Rates(_ context.Context, r RateReq) ([]Rate, error) {
	s.req = r
	return s.rates, s.err
}

func sampleItems() []cart.Item {
	return []cart.Item{{
		Product:   catalog.Product{ID: 3, Title: "Mug", WeightGrams: 400, WidthCm: 10, HeightCm: 12, LengthCm: 10},
		Quantity:  2,
		UnitPrice: 1000,
	}}
}

func TestQuoteFiltersUnavailableServices(t *testing.T) {
	client := &stubClient{rates: []Rate{
		{Carrier: "Correios", Service: "PAC", PriceCents: 1890, DeliveryDays: 7},
		{Carrier: "Jadlog", Service: ".Com", Error: "unavailable"},
	}}
	svc := &Service{Client: client, OriginPostalCode: "01310-100"}

	options, err := svc.Quote(context.Background(), "20040-002", sampleItems())
	require.NoError(t, err)
	require.Equal(t, []Option{{Carrier: "Correios", Service: "PAC", PriceCents: 1890, DeliveryTimeDays: 7}}, options)
	require.Equal(t, "01310100", client.req.OriginPostalCode)
	require.Equal(t, "20040002", client.req.DestinationPostalCode)
	require.Equal(t, Package{ID: "3", WeightGrams: 400, WidthCm: 10, HeightCm: 12, LengthCm: 10, Quantity: 2, InsuranceCents: 1000}, client.req.Packages[0])
}

func TestQuoteNoOptionsIsEmptyNotError(t *testing.T) {
	svc := &Service{Client: &stubClient{rates: []Rate{{Error: "nope"}}}}
	options, err := svc.Quote(context.Background(), "20040002", sampleItems())
	require.NoError(t, err)
	require.NotNil(t, options)
	require.Empty(t, options)
}

func TestQuoteValidation(t *testing.T) {
	svc := &Service{Client: &stubClient{}}
	_, err := svc.Quote(context.Background(), "  -  ", sampleItems())
	require.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = svc.Quote(context.Background(), "20040002", nil)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestQuoteCarrierFailure(t *testing.T) {
	boom := errors.New("dial tcp: timeout")
	svc := &Service{Client: &stubClient{err: boom}}
	_, err := svc.Quote(context.Background(), "20040002", sampleItems())
	require.ErrorIs(t, err, ErrQuoteUnavailable)
	require.ErrorIs(t, err, boom)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 502, appErr.HTTPStatus)
}

func TestMockClientOffersTwoServices(t *testing.T) {
	svc := &Service{Client: MockClient{}}
	options, err := svc.Quote(context.Background(), "20040002", sampleItems())
	require.NoError(t, err)
	require.Len(t, options, 2)
}

func TestSelectionAcceptsNameAlias(t *testing.T) {
	var sel Selection
	require.NoError(t, sel.UnmarshalJSON([]byte(`{"carrier":"Correios","name":"SEDEX","price_cents":-5,"delivery_time_days":2}`)))
	require.Equal(t, "SEDEX", sel.Service)
	require.Equal(t, int64(0), sel.Cost())

	require.NoError(t, sel.UnmarshalJSON([]byte(`{"service":"PAC","name":"ignored","price_cents":500}`)))
	require.Equal(t, "PAC", sel.Service)
	require.Equal(t, int64(500), sel.Cost())
}

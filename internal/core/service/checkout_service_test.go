package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name        string
	redirect    *provider.Redirect
	initiateErr error

	initiated     bool
	initiateOrder *core.Order
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error) {
	return json.Marshal(map[string]string{"secret": "s3cret"})
}

func (f *fakeProvider) Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*provider.Redirect, error) {
	f.initiated = true
	f.initiateOrder = order
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return f.redirect, nil
}

func widgetRequest(providerName string) *core.PaymentRequest {
	return &core.PaymentRequest{
		Provider: providerName,
		Items: []core.OrderItem{{
			Title:      "Widget",
			Quantity:   1,
			Price:      decimal.NewFromInt(100),
			GrandTotal: decimal.NewFromInt(100),
		}},
		Currency:   "ISK",
		Locale:     "is-IS",
		SuccessURL: "https://shop.example/success",
		CancelURL:  "https://shop.example/cancel",
		ErrorURL:   "https://shop.example/error",
	}
}

func TestCheckoutCreatesPendingOrderBeforeInitiation(t *testing.T) {
	p := &fakeProvider{name: "demo", redirect: &provider.Redirect{HTML: "<form></form>"}}

	var persisted *core.Order
	repo := new(mockOrderRepository)
	repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		persisted = args.Get(1).(*core.Order)
		assert.False(t, p.initiated, "order must be persisted before the provider is contacted")
	}).Return(nil)

	svc := NewCheckoutService(zap.NewNop(), repo, []provider.Provider{p}, core.NewEventBus())
	result, err := svc.Checkout(context.Background(), widgetRequest("demo"))

	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, result.OrderID, persisted.UniqueID)
	assert.False(t, persisted.Paid)
	assert.True(t, persisted.Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "Widget", persisted.OrderName)
	assert.Equal(t, "demo", persisted.Provider)
	assert.Equal(t, "<form></form>", result.HTML)
	assert.Same(t, persisted, p.initiateOrder)
}

func TestCheckoutUnknownProvider(t *testing.T) {
	svc := NewCheckoutService(zap.NewNop(), new(mockOrderRepository), nil, core.NewEventBus())
	_, err := svc.Checkout(context.Background(), widgetRequest("nope"))
	assert.ErrorIs(t, err, core.ErrUnknownProvider)
}

func TestCheckoutValidation(t *testing.T) {
	p := &fakeProvider{name: "demo", redirect: &provider.Redirect{HTML: "x"}}
	svc := NewCheckoutService(zap.NewNop(), new(mockOrderRepository), []provider.Provider{p}, core.NewEventBus())

	tests := []struct {
		name   string
		mutate func(*core.PaymentRequest)
	}{
		{"no items", func(r *core.PaymentRequest) { r.Items = nil }},
		{"no currency", func(r *core.PaymentRequest) { r.Currency = "" }},
		{"no locale", func(r *core.PaymentRequest) { r.Locale = "" }},
		{"no success url", func(r *core.PaymentRequest) { r.SuccessURL = "" }},
		{"zero quantity", func(r *core.PaymentRequest) { r.Items[0].Quantity = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := widgetRequest("demo")
			tt.mutate(req)
			_, err := svc.Checkout(context.Background(), req)
			assert.ErrorIs(t, err, core.ErrInvalidRequest)
		})
	}
}

func TestCheckoutPersistsProviderCorrelationKey(t *testing.T) {
	p := &fakeProvider{name: "siminnpay", redirect: &provider.Redirect{
		Location:   "https://pay.example/o/1",
		CustomData: "ok-123",
	}}

	repo := new(mockOrderRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("SetCustomData", mock.Anything, mock.AnythingOfType("uuid.UUID"), "ok-123").Return(nil)

	svc := NewCheckoutService(zap.NewNop(), repo, []provider.Provider{p}, core.NewEventBus())
	result, err := svc.Checkout(context.Background(), widgetRequest("siminnpay"))

	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/o/1", result.Location)
	repo.AssertExpectations(t)
}

func TestCheckoutCorrelationKeyFailureFiresErrorEvent(t *testing.T) {
	p := &fakeProvider{name: "siminnpay", redirect: &provider.Redirect{
		Location:   "https://pay.example/o/1",
		CustomData: "ok-123",
	}}

	repo := new(mockOrderRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("SetCustomData", mock.Anything, mock.AnythingOfType("uuid.UUID"), "ok-123").Return(assert.AnError)

	bus := core.NewEventBus()
	var failures int
	bus.SubscribeError(func(ctx context.Context, e core.ErrorEvent) error {
		failures++
		assert.Equal(t, "siminnpay", e.Provider)
		require.NotNil(t, e.Order, "the stranded order must be identifiable in the alert")
		return nil
	})

	svc := NewCheckoutService(zap.NewNop(), repo, []provider.Provider{p}, bus)
	_, err := svc.Checkout(context.Background(), widgetRequest("siminnpay"))

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, failures)
}

func TestCheckoutInitiationFailureFiresErrorEvent(t *testing.T) {
	p := &fakeProvider{name: "demo", initiateErr: &core.TransportError{Provider: "demo", Err: assert.AnError}}

	repo := new(mockOrderRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	bus := core.NewEventBus()
	var failures int
	bus.SubscribeError(func(ctx context.Context, e core.ErrorEvent) error {
		failures++
		assert.Equal(t, "demo", e.Provider)
		require.NotNil(t, e.Order)
		assert.NotEqual(t, uuid.Nil, e.Order.UniqueID)
		return nil
	})

	svc := NewCheckoutService(zap.NewNop(), repo, []provider.Provider{p}, bus)
	_, err := svc.Checkout(context.Background(), widgetRequest("demo"))

	var transportErr *core.TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 1, failures)
}

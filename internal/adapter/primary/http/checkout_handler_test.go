package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/port/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCheckoutService struct {
	result *input.Checkout
	err    error
	gotReq *core.PaymentRequest
}

func (m *mockCheckoutService) Checkout(ctx context.Context, req *core.PaymentRequest) (*input.Checkout, error) {
	m.gotReq = req
	return m.result, m.err
}

func newCheckoutContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/demo", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/checkout/:provider")
	c.SetParamNames("provider")
	c.SetParamValues("demo")
	return c, rec
}

const checkoutBody = `{
	"items": [{"title": "Widget", "quantity": 1, "price": 100, "grandTotal": 100}],
	"currency": "ISK",
	"locale": "is-IS",
	"successUrl": "https://shop.example/success",
	"cancelUrl": "https://shop.example/cancel"
}`

func TestCheckoutHandlerSuccess(t *testing.T) {
	orderID := uuid.New()
	svc := &mockCheckoutService{result: &input.Checkout{OrderID: orderID, HTML: "<form></form>"}}
	h := NewCheckoutHandler(zap.NewNop(), svc)

	c, rec := newCheckoutContext(checkoutBody)
	require.NoError(t, h.Checkout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), orderID.String())
	require.NotNil(t, svc.gotReq)
	assert.Equal(t, "demo", svc.gotReq.Provider, "provider comes from the route, not the body")
}

func TestCheckoutHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown provider", core.ErrUnknownProvider, http.StatusNotFound},
		{"misconfigured", &core.ConfigError{Provider: "demo", Field: "secret"}, http.StatusUnprocessableEntity},
		{"provider down", &core.TransportError{Provider: "demo", Err: assert.AnError}, http.StatusBadGateway},
		{"invalid request", core.ErrInvalidRequest, http.StatusBadRequest},
		{"internal", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCheckoutService{err: tt.err}
			h := NewCheckoutHandler(zap.NewNop(), svc)

			c, rec := newCheckoutContext(checkoutBody)
			require.NoError(t, h.Checkout(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

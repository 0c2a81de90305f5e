package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northpay/gateway/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func siminnPayOrder(apiURL string) *core.Order {
	return &core.Order{
		UniqueID:         testOrderID,
		Amount:           decimal.NewFromInt(2500),
		Provider:         SiminnPayName,
		CustomData:       "ok-123",
		SettingsSnapshot: []byte(`{"provider":"siminnpay","currency":"ISK"}`),
		ProviderSnapshot: []byte(`{"apiKey":"key-1","apiUrl":"` + apiURL + `","secret":"simsecret"}`),
	}
}

func TestSiminnPayInitiate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, float64(2500), payload["amount"])
		assert.Equal(t, testOrderID.String(), payload["referenceId"])

		json.NewEncoder(w).Encode(map[string]string{
			"orderKey": "ok-123",
			"status":   "CREATED",
			"url":      "https://pay.siminn.example/o/ok-123",
		})
	}))
	defer server.Close()

	order := siminnPayOrder(server.URL)
	order.CustomData = ""
	s := NewSiminnPay(zap.NewNop(), nil, nil, "https://gw.example/payments/siminnpay", server.Client())

	req := &core.PaymentRequest{
		Provider:     SiminnPayName,
		Items:        []core.OrderItem{{Title: "Widget", Quantity: 1, GrandTotal: decimal.NewFromInt(2500)}},
		Currency:     "ISK",
		SuccessURL:   "https://shop.example/success",
		CustomerInfo: core.CustomerInfo{PhoneNumber: "7771234"},
	}

	redirect, err := s.Initiate(context.Background(), req, order, order.ProviderSnapshot)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.siminn.example/o/ok-123", redirect.Location)
	assert.Equal(t, "ok-123", redirect.CustomData, "order key must be persisted for callback lookup")
}

func TestSiminnPayInitiateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	order := siminnPayOrder(server.URL)
	s := NewSiminnPay(zap.NewNop(), nil, nil, "https://gw.example/payments/siminnpay", server.Client())

	req := &core.PaymentRequest{
		Items:        []core.OrderItem{{Title: "Widget", Quantity: 1}},
		CustomerInfo: core.CustomerInfo{PhoneNumber: "7771234"},
	}
	_, err := s.Initiate(context.Background(), req, order, order.ProviderSnapshot)

	var transportErr *core.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestSiminnPayCallbackLookup(t *testing.T) {
	cb := SiminnPayCallback{OrderKey: "ok-123", Status: SiminnPayStatusSuccessful}
	lookup, err := cb.Lookup()
	require.NoError(t, err)
	assert.Equal(t, "ok-123", lookup.CustomData)

	cb.Status = SiminnPayStatusCancelled
	_, err = cb.Lookup()
	assert.ErrorIs(t, err, ErrIgnoreCallback)
}

func TestSiminnPayCallbackVerify(t *testing.T) {
	order := siminnPayOrder("https://api.siminn.example")

	cb := SiminnPayCallback{
		OrderKey:  "ok-123",
		Amount:    2500,
		Status:    SiminnPayStatusSuccessful,
		ExpiresAt: time.Date(2024, 3, 5, 12, 30, 45, 0, time.UTC),
		HMAC:      "818580B59CD49BF5E14CF6DD9B5DCEBA5D464D22106AAE63B3883A419D51FFA0",
	}
	assert.NoError(t, cb.Verify(context.Background(), order, order.ProviderSnapshot))

	cb.Amount = 2501
	var verificationErr *core.VerificationError
	assert.ErrorAs(t, cb.Verify(context.Background(), order, order.ProviderSnapshot), &verificationErr)
}

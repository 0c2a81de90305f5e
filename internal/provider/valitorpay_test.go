package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/northpay/gateway/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Base64 of {"orderId":"<test uuid>"} and its HMAC-SHA256 under "abc123",
// the last segment of api key "Public.abc123".
const (
	valitorPayMD  = "eyJvcmRlcklkIjoiOWExYjhlMGUtM2M3YS00YjZkLTlmMmUtMWQ0YzViNmE3ZjgwIn0="
	valitorPaySig = "MRYmC7+JAaPsmjFwON4/YbSipppQG3HCHBFBRiBDqTI="
)

func valitorPayOrder(apiURL string) *core.Order {
	return &core.Order{
		UniqueID:         testOrderID,
		Amount:           decimal.NewFromInt(1000),
		Provider:         ValitorPayName,
		SettingsSnapshot: []byte(`{"provider":"valitorpay","currency":"ISK"}`),
		ProviderSnapshot: []byte(`{"apiUrl":"` + apiURL + `","apiKey":"Public.abc123"}`),
	}
}

func TestValitorPaySigningSecret(t *testing.T) {
	s := ValitorPaySettings{APIKey: "Public.abc123"}
	assert.Equal(t, "abc123", s.signingSecret())
}

func TestValitorPayInitiate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cardVerification", r.URL.Path)
		assert.Equal(t, "Public.abc123", r.Header.Get("valitorpay-api-key"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, float64(100000), payload["amount"], "amount travels in minor units")
		assert.Equal(t, valitorPayMD, payload["merchantData"])
		assert.Equal(t, valitorPaySig, payload["merchantDataSignature"])

		json.NewEncoder(w).Encode(map[string]any{
			"isSuccess":                   true,
			"cardVerificationRawResponse": "<html>3ds</html>",
		})
	}))
	defer server.Close()

	order := valitorPayOrder(server.URL)
	v := NewValitorPay(zap.NewNop(), nil, nil, "https://gw.example/payments/valitorpay", server.Client())

	redirect, err := v.Initiate(context.Background(), &core.PaymentRequest{}, order, order.ProviderSnapshot)
	require.NoError(t, err)
	assert.Equal(t, "<html>3ds</html>", redirect.HTML)
}

func TestValitorPayCallbackLookup(t *testing.T) {
	cb := &ValitorPayCallback{MD: valitorPayMD}
	lookup, err := cb.Lookup()
	require.NoError(t, err)
	assert.Equal(t, testOrderID, lookup.UniqueID)

	cb = &ValitorPayCallback{MD: "%%%"}
	_, err = cb.Lookup()
	assert.Error(t, err)
}

func TestValitorPayCallbackVerify(t *testing.T) {
	// Verification is signature-only: no provider call happens here.
	order := valitorPayOrder("https://unused.example")
	cb := &ValitorPayCallback{MD: valitorPayMD, MdStatus: 1, Signature: valitorPaySig}
	require.NoError(t, cb.Verify(context.Background(), order, order.ProviderSnapshot))
}

func TestValitorPayCallbackVerifyRejects(t *testing.T) {
	order := valitorPayOrder("https://unused.example")

	t.Run("bad md status", func(t *testing.T) {
		cb := &ValitorPayCallback{MD: valitorPayMD, MdStatus: 0, Signature: valitorPaySig}
		var verificationErr *core.VerificationError
		assert.ErrorAs(t, cb.Verify(context.Background(), order, order.ProviderSnapshot), &verificationErr)
	})

	t.Run("signature mismatch", func(t *testing.T) {
		cb := &ValitorPayCallback{MD: valitorPayMD, MdStatus: 1, Signature: "bm90LXRoZS1zaWduYXR1cmU="}
		var verificationErr *core.VerificationError
		assert.ErrorAs(t, cb.Verify(context.Background(), order, order.ProviderSnapshot), &verificationErr)
	})
}

func TestValitorPayCallbackChargeRunsSale(t *testing.T) {
	var sales int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment", r.URL.Path)
		sales++

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Sale", payload["operation"])

		json.NewEncoder(w).Encode(map[string]any{
			"isSuccess":        true,
			"maskedCardNumber": "558740******2037",
		})
	}))
	defer server.Close()

	order := valitorPayOrder(server.URL)
	cb := &ValitorPayCallback{
		client:    server.Client(),
		MD:        valitorPayMD,
		MdStatus:  1,
		Signature: valitorPaySig,
	}

	require.NoError(t, cb.Charge(context.Background(), order, order.ProviderSnapshot))
	assert.Equal(t, 1, sales)

	detail := cb.Detail(order)
	assert.Equal(t, "558740******2037", detail.CardNumber)
}

func TestValitorPayCallbackChargeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"isSuccess": false, "responseCode": "051"})
	}))
	defer server.Close()

	order := valitorPayOrder(server.URL)
	cb := &ValitorPayCallback{client: server.Client(), MD: valitorPayMD, MdStatus: 1, Signature: valitorPaySig}
	var verificationErr *core.VerificationError
	assert.ErrorAs(t, cb.Charge(context.Background(), order, order.ProviderSnapshot), &verificationErr)
}

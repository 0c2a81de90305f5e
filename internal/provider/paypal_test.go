package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/northpay/gateway/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func payPalOrder(verificationURL string) *core.Order {
	return &core.Order{
		UniqueID:         testOrderID,
		Amount:           decimal.NewFromInt(1000),
		Provider:         PayPalName,
		SettingsSnapshot: []byte(`{"provider":"paypal","currency":"ISK"}`),
		ProviderSnapshot: []byte(`{"account":"merchant@example.com","paymentPageUrl":"https://www.paypal.com/cgi-bin/webscr","verificationUrl":"` + verificationURL + `"}`),
	}
}

func TestPayPalInitiateForm(t *testing.T) {
	p := NewPayPal(zap.NewNop(), nil, nil, "https://gw.example/payments/paypal", nil)
	order := payPalOrder("https://ipnpb.paypal.com/cgi-bin/webscr")

	req := &core.PaymentRequest{
		Provider:   PayPalName,
		Items:      []core.OrderItem{{Title: "Widget", Quantity: 2, Price: decimal.RequireFromString("10.5"), GrandTotal: decimal.NewFromInt(21)}},
		Currency:   "USD",
		Locale:     "en-US",
		SuccessURL: "https://shop.example/success",
	}

	redirect, err := p.Initiate(context.Background(), req, order, order.ProviderSnapshot)
	require.NoError(t, err)
	assert.Contains(t, redirect.HTML, `name="cmd" value="_cart"`)
	assert.Contains(t, redirect.HTML, `name="business" value="merchant@example.com"`)
	assert.Contains(t, redirect.HTML, `name="custom" value="`+testOrderID.String()+`"`)
	assert.Contains(t, redirect.HTML, `name="item_name_1" value="Widget"`)
	assert.Contains(t, redirect.HTML, `name="quantity_1" value="2"`)
	assert.Contains(t, redirect.HTML, `name="amount_1" value="10.50"`)
}

func TestPayPalCallbackVerify(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
	}{
		{"verified", "VERIFIED", false},
		{"invalid", "INVALID", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				values, err := url.ParseQuery(string(body))
				require.NoError(t, err)
				// The postback must echo the notification plus the validate command.
				assert.Equal(t, "_notify-validate", values.Get("cmd"))
				assert.Equal(t, testOrderID.String(), values.Get("custom"))
				io.WriteString(w, tt.response)
			}))
			defer server.Close()

			order := payPalOrder(server.URL)
			p := NewPayPal(zap.NewNop(), nil, nil, "https://gw.example/payments/paypal", server.Client())
			cb := p.NewCallback(url.Values{
				"custom":         {testOrderID.String()},
				"payment_status": {"Completed"},
			})

			err := cb.Verify(context.Background(), order, order.ProviderSnapshot)
			if tt.wantErr {
				var verificationErr *core.VerificationError
				assert.ErrorAs(t, err, &verificationErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPayPalCallbackLookup(t *testing.T) {
	p := NewPayPal(zap.NewNop(), nil, nil, "", nil)

	cb := p.NewCallback(url.Values{"custom": {testOrderID.String()}})
	lookup, err := cb.Lookup()
	require.NoError(t, err)
	assert.Equal(t, testOrderID, lookup.UniqueID)

	cb = p.NewCallback(url.Values{})
	_, err = cb.Lookup()
	assert.Error(t, err)
}

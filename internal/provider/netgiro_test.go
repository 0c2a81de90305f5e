package provider

import (
	"context"
	"testing"

	"github.com/northpay/gateway/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func netgiroOrder() *core.Order {
	return &core.Order{
		UniqueID:         testOrderID,
		Amount:           decimal.RequireFromString("99.1"),
		Provider:         NetgiroName,
		SettingsSnapshot: []byte(`{"provider":"netgiro","currency":"ISK"}`),
		ProviderSnapshot: []byte(`{"applicationId":"app-1","secret":"leyndarmal","paymentPageUrl":"https://securepay.netgiro.is/v1"}`),
	}
}

func TestNetgiroInitiateRoundsUp(t *testing.T) {
	n := NewNetgiro(zap.NewNop(), nil, nil, "https://gw.example/payments/netgiro")
	order := netgiroOrder()

	req := &core.PaymentRequest{
		Provider:   NetgiroName,
		Items:      []core.OrderItem{{Title: "Widget", Quantity: 1, Price: decimal.RequireFromString("99.1"), GrandTotal: decimal.RequireFromString("99.1")}},
		Currency:   "ISK",
		SuccessURL: "https://shop.example/success",
		CancelURL:  "https://shop.example/cancel",
	}

	redirect, err := n.Initiate(context.Background(), req, order, order.ProviderSnapshot)
	require.NoError(t, err)

	// Netgiro accepts whole ISK only; 99.1 rounds up and the signature is
	// computed over the rounded amount.
	assert.Contains(t, redirect.HTML, `name="TotalAmount" value="100"`)
	assert.Contains(t, redirect.HTML, `name="Signature" value="e56b8be7aea550aba3db86d1f6f51ad095a7508e977e03a2e863e18801c0f638"`)
	assert.Contains(t, redirect.HTML, `name="ConfirmationType" value="1"`)
	assert.Contains(t, redirect.HTML, `name="ReferenceNumber" value="`+testOrderID.String()+`"`)
}

func TestNetgiroCallbackVerify(t *testing.T) {
	order := netgiroOrder()

	cb := NetgiroCallback{
		Signature:        "0f4a7ea079fa03e32cdf6be967c570465c8efffff321d0ec5f5cac8ec3fcf8a4",
		ReferenceNumber:  testOrderID.String(),
		ConfirmationCode: "CONF123",
		InvoiceNumber:    "INV456",
	}
	assert.NoError(t, cb.Verify(context.Background(), order, order.ProviderSnapshot))

	cb.ConfirmationCode = "CONF124"
	var verificationErr *core.VerificationError
	assert.ErrorAs(t, cb.Verify(context.Background(), order, order.ProviderSnapshot), &verificationErr)
}

func TestNetgiroCallbackLookupRejectsNilUUID(t *testing.T) {
	cb := NetgiroCallback{ReferenceNumber: "00000000-0000-0000-0000-000000000000"}
	_, err := cb.Lookup()
	assert.Error(t, err)
}

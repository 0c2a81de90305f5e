package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/core/amount"
	"github.com/northpay/gateway/internal/core/checksum"
	"github.com/northpay/gateway/internal/port/output"
	"go.uber.org/zap"
)

const NetgiroName = "netgiro"

// netgiroServerCallback asks Netgiro to confirm carts with a server-to-server
// callback instead of polling. https://netgiro.github.io/checkout.html
const netgiroServerCallback = "1"

// NetgiroSettings is the merchant configuration for the Netgiro securepay
// page.
type NetgiroSettings struct {
	ApplicationID  string `json:"applicationId"`
	Secret         string `json:"secret"`
	PaymentPageURL string `json:"paymentPageUrl"`
	IFrame         *bool  `json:"iframe,omitempty"`
}

// Netgiro initiates payments against the Netgiro securepay page and verifies
// its confirmation callbacks.
type Netgiro struct {
	log         *zap.Logger
	store       output.SettingsStore
	defaults    json.RawMessage
	callbackURL string
}

// NewNetgiro creates the Netgiro adapter.
func NewNetgiro(log *zap.Logger, store output.SettingsStore, defaults json.RawMessage, callbackURL string) *Netgiro {
	return &Netgiro{log: log, store: store, defaults: defaults, callbackURL: callbackURL}
}

func (n *Netgiro) Name() string { return NetgiroName }

// ResolveSettings merges and validates the Netgiro merchant configuration.
func (n *Netgiro) ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error) {
	var settings NetgiroSettings
	if err := resolveSettings(ctx, n.store, NetgiroName, n.defaults, req.ProviderSettings, &settings); err != nil {
		return nil, err
	}

	switch {
	case settings.ApplicationID == "":
		return nil, &core.ConfigError{Provider: NetgiroName, Field: "applicationId"}
	case settings.Secret == "":
		return nil, &core.ConfigError{Provider: NetgiroName, Field: "secret"}
	case settings.PaymentPageURL == "":
		return nil, &core.ConfigError{Provider: NetgiroName, Field: "paymentPageUrl"}
	}

	return json.Marshal(settings)
}

// Initiate builds the auto-submitting form posting the customer to the
// Netgiro payment page. Netgiro accepts whole ISK only, so the total is
// rounded up.
func (n *Netgiro) Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*Redirect, error) {
	var settings NetgiroSettings
	if err := json.Unmarshal(snapshot, &settings); err != nil {
		return nil, fmt.Errorf("netgiro: bad settings snapshot: %w", err)
	}

	totalAmount := amount.WholeCeil(order.Amount)

	var fields formValues
	fields.add("ApplicationID", settings.ApplicationID)
	fields.add("ConfirmationType", netgiroServerCallback)
	fields.add("PaymentSuccessfulURL", req.SuccessURL+"?reference="+order.UniqueID.String())
	fields.add("PaymentCancelledURL", req.CancelURL+"?reference="+order.UniqueID.String())
	fields.add("PaymentConfirmedURL", n.callbackURL)
	fields.add("TotalAmount", totalAmount)

	if settings.IFrame != nil {
		fields.add("iframe", strconv.FormatBool(*settings.IFrame))
	}

	for i, item := range req.Items {
		line := strconv.Itoa(i)
		fields.add("Items["+line+"].Name", item.Title)
		fields.add("Items["+line+"].Quantity", strconv.Itoa(item.Quantity))
		fields.add("Items["+line+"].UnitPrice", amount.WholeTrunc(item.Price))
		fields.add("Items["+line+"].Amount", amount.WholeTrunc(item.GrandTotal))
	}

	sig := checksum.SHA256Hex(settings.Secret + order.UniqueID.String() + totalAmount + settings.ApplicationID)
	fields.add("Signature", sig)
	fields.add("ReferenceNumber", order.UniqueID.String())

	n.log.Info("netgiro payment request",
		zap.String("order_id", order.UniqueID.String()),
		zap.String("amount", totalAmount))

	return &Redirect{HTML: autoSubmitForm(settings.PaymentPageURL, fields)}, nil
}

// NetgiroCallback is the JSON payload of Netgiro's confirmation callback.
type NetgiroCallback struct {
	Signature        string `json:"Signature"`
	ReferenceNumber  string `json:"ReferenceNumber"`
	ConfirmationCode string `json:"ConfirmationCode"`
	InvoiceNumber    string `json:"InvoiceNumber"`
}

func (c *NetgiroCallback) Provider() string { return NetgiroName }

func (c *NetgiroCallback) Lookup() (Lookup, error) {
	id, err := uuid.Parse(c.ReferenceNumber)
	if err != nil || id == uuid.Nil {
		return Lookup{}, fmt.Errorf("netgiro: bad reference number %q", c.ReferenceNumber)
	}
	return Lookup{UniqueID: id}, nil
}

// Verify recomputes the signature: SHA-256 over secret, reference,
// confirmation code and invoice number concatenated.
func (c *NetgiroCallback) Verify(ctx context.Context, order *core.Order, snapshot []byte) error {
	var settings NetgiroSettings
	if _, err := decodeSnapshots(order, snapshot, &settings); err != nil {
		return err
	}

	computed := checksum.SHA256Hex(settings.Secret + c.ReferenceNumber + c.ConfirmationCode + c.InvoiceNumber)
	if !checksum.Equal(c.Signature, computed) {
		return &core.VerificationError{Provider: NetgiroName, Reason: "signature mismatch"}
	}
	return nil
}

func (c *NetgiroCallback) Detail(order *core.Order) *core.PaymentDetail {
	raw, _ := json.Marshal(c)
	return &core.PaymentDetail{
		OrderID:       order.UniqueID,
		PaymentMethod: "Netgiro",
		Amount:        order.Amount.String(),
		RawResponse:   raw,
	}
}

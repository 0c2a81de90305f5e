package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/core/amount"
	"github.com/northpay/gateway/internal/port/output"
	"go.uber.org/zap"
)

const PayPalName = "paypal"

// PayPalSettings is the merchant configuration for PayPal website payments.
type PayPalSettings struct {
	// Account is the merchant business account email.
	Account        string `json:"account"`
	PaymentPageURL string `json:"paymentPageUrl"`
	// VerificationURL is the IPN postback endpoint; the sandbox and live
	// environments use different hosts.
	VerificationURL string `json:"verificationUrl"`
	ImageURL        string `json:"imageUrl,omitempty"`
}

// PayPal initiates cart payments against PayPal and verifies IPN callbacks
// by posting them back to PayPal for validation.
type PayPal struct {
	log         *zap.Logger
	store       output.SettingsStore
	defaults    json.RawMessage
	callbackURL string
	client      *http.Client
}

// NewPayPal creates the PayPal adapter.
func NewPayPal(log *zap.Logger, store output.SettingsStore, defaults json.RawMessage, callbackURL string, client *http.Client) *PayPal {
	if client == nil {
		client = http.DefaultClient
	}
	return &PayPal{log: log, store: store, defaults: defaults, callbackURL: callbackURL, client: client}
}

func (p *PayPal) Name() string { return PayPalName }

// ResolveSettings merges and validates the PayPal merchant configuration.
func (p *PayPal) ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error) {
	var settings PayPalSettings
	if err := resolveSettings(ctx, p.store, PayPalName, p.defaults, req.ProviderSettings, &settings); err != nil {
		return nil, err
	}

	switch {
	case settings.Account == "":
		return nil, &core.ConfigError{Provider: PayPalName, Field: "account"}
	case settings.PaymentPageURL == "":
		return nil, &core.ConfigError{Provider: PayPalName, Field: "paymentPageUrl"}
	case settings.VerificationURL == "":
		return nil, &core.ConfigError{Provider: PayPalName, Field: "verificationUrl"}
	}

	return json.Marshal(settings)
}

// Initiate builds the auto-submitting cart upload form for PayPal.
func (p *PayPal) Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*Redirect, error) {
	var settings PayPalSettings
	if err := json.Unmarshal(snapshot, &settings); err != nil {
		return nil, fmt.Errorf("paypal: bad settings snapshot: %w", err)
	}

	var fields formValues
	fields.add("upload", "1")
	fields.add("cmd", "_cart")
	fields.add("business", settings.Account)
	fields.add("return", req.SuccessURL+"?reference="+order.UniqueID.String())
	fields.add("shopping_url", settings.PaymentPageURL)
	fields.add("notify_url", p.callbackURL)
	fields.add("currency_code", req.Currency)
	fields.add("lc", req.Locale)
	fields.add("invoice", order.UniqueID.String())
	fields.add("custom", order.UniqueID.String())

	if settings.ImageURL != "" {
		fields.add("image_url", settings.ImageURL)
	}

	for i, item := range req.Items {
		line := strconv.Itoa(i + 1)
		fields.add("item_name_"+line, item.Title)
		fields.add("quantity_"+line, strconv.Itoa(item.Quantity))
		fields.add("amount_"+line, amount.DotTwoPlaces(item.Price))
		fields.add("discount_amount_"+line, strconv.Itoa(item.Discount))
	}

	p.log.Info("paypal payment request",
		zap.String("order_id", order.UniqueID.String()),
		zap.String("amount", order.Amount.String()))

	return &Redirect{HTML: autoSubmitForm(settings.PaymentPageURL, fields)}, nil
}

// NewCallback wraps raw IPN values for processing. The full value set must be
// preserved: verification echoes it back to PayPal byte-for-byte.
func (p *PayPal) NewCallback(values url.Values) *PayPalCallback {
	return &PayPalCallback{client: p.client, Values: values}
}

// PayPalCallback is an Instant Payment Notification from PayPal.
type PayPalCallback struct {
	client *http.Client

	// Values is the complete IPN payload as received.
	Values url.Values
}

func (c *PayPalCallback) Provider() string { return PayPalName }

func (c *PayPalCallback) Lookup() (Lookup, error) {
	id, err := uuid.Parse(c.Values.Get("custom"))
	if err != nil {
		return Lookup{}, fmt.Errorf("paypal: bad custom field %q: %w", c.Values.Get("custom"), err)
	}
	return Lookup{UniqueID: id}, nil
}

// Verify posts the notification back to PayPal with cmd=_notify-validate.
// PayPal answers VERIFIED for genuine notifications and INVALID otherwise.
func (c *PayPalCallback) Verify(ctx context.Context, order *core.Order, snapshot []byte) error {
	var settings PayPalSettings
	if _, err := decodeSnapshots(order, snapshot, &settings); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("cmd", "_notify-validate")
	for k, vs := range c.Values {
		for _, v := range vs {
			form.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.VerificationURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return &core.TransportError{Provider: PayPalName, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return &core.TransportError{Provider: PayPalName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32))
	if err != nil {
		return &core.TransportError{Provider: PayPalName, Err: err}
	}

	if strings.TrimSpace(string(body)) != "VERIFIED" {
		return &core.VerificationError{Provider: PayPalName, Reason: "IPN postback returned " + strings.TrimSpace(string(body))}
	}
	return nil
}

func (c *PayPalCallback) Detail(order *core.Order) *core.PaymentDetail {
	raw, _ := json.Marshal(c.Values)
	return &core.PaymentDetail{
		OrderID:       order.UniqueID,
		PaymentMethod: "PayPal",
		Amount:        amount.DotTwoPlaces(order.Amount),
		RawResponse:   raw,
	}
}

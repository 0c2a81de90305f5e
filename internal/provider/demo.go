package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/core/amount"
	"github.com/northpay/gateway/internal/core/checksum"
	"github.com/northpay/gateway/internal/port/output"
	"go.uber.org/zap"
)

const DemoName = "demo"

// DemoSettings configures the built-in demo payment page, used for local
// development and integration testing without any external provider.
type DemoSettings struct {
	Secret         string `json:"secret"`
	PaymentPageURL string `json:"paymentPageUrl"`
}

// Demo is a self-contained provider that mimics the form-post integration
// style: initiation posts the customer to a payment page, the page calls
// back with an MD5 checksum over the sorted payload.
type Demo struct {
	log         *zap.Logger
	store       output.SettingsStore
	defaults    json.RawMessage
	callbackURL string
}

// NewDemo creates the demo adapter.
func NewDemo(log *zap.Logger, store output.SettingsStore, defaults json.RawMessage, callbackURL string) *Demo {
	return &Demo{log: log, store: store, defaults: defaults, callbackURL: callbackURL}
}

func (d *Demo) Name() string { return DemoName }

func (d *Demo) ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error) {
	var settings DemoSettings
	if err := resolveSettings(ctx, d.store, DemoName, d.defaults, req.ProviderSettings, &settings); err != nil {
		return nil, err
	}

	switch {
	case settings.Secret == "":
		return nil, &core.ConfigError{Provider: DemoName, Field: "secret"}
	case settings.PaymentPageURL == "":
		return nil, &core.ConfigError{Provider: DemoName, Field: "paymentPageUrl"}
	}

	return json.Marshal(settings)
}

func (d *Demo) Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*Redirect, error) {
	var settings DemoSettings
	if err := json.Unmarshal(snapshot, &settings); err != nil {
		return nil, fmt.Errorf("demo: bad settings snapshot: %w", err)
	}

	var fields formValues
	fields.add("reference", order.UniqueID.String())
	fields.add("amount", amount.DotTwoPlaces(order.Amount))
	fields.add("currency", req.Currency)
	fields.add("successUrl", req.SuccessURL+"?reference="+order.UniqueID.String())
	fields.add("cancelUrl", req.CancelURL)
	fields.add("callbackUrl", d.callbackURL)

	d.log.Info("demo payment request",
		zap.String("order_id", order.UniqueID.String()))

	return &Redirect{HTML: autoSubmitForm(settings.PaymentPageURL, fields)}, nil
}

// DemoCallback is the form payload of the demo payment page's confirmation.
type DemoCallback struct {
	Reference string `form:"reference" json:"reference"`
	Amount    string `form:"amount" json:"amount"`
	Currency  string `form:"currency" json:"currency"`
	Checksum  string `form:"checksum" json:"checksum"`
}

func (c *DemoCallback) Provider() string { return DemoName }

func (c *DemoCallback) Lookup() (Lookup, error) {
	id, err := uuid.Parse(c.Reference)
	if err != nil {
		return Lookup{}, fmt.Errorf("demo: bad reference %q: %w", c.Reference, err)
	}
	return Lookup{UniqueID: id}, nil
}

// Verify recomputes the checksum: MD5 over the sorted key=value pairs of the
// payload plus the shared secret, joined with commas.
func (c *DemoCallback) Verify(ctx context.Context, order *core.Order, snapshot []byte) error {
	var settings DemoSettings
	if _, err := decodeSnapshots(order, snapshot, &settings); err != nil {
		return err
	}

	computed := checksum.MD5SortedPairs(map[string]string{
		"reference": c.Reference,
		"amount":    c.Amount,
		"currency":  c.Currency,
		"secret":    settings.Secret,
	})
	if !checksum.Equal(c.Checksum, computed) {
		return &core.VerificationError{Provider: DemoName, Reason: "checksum mismatch"}
	}
	return nil
}

func (c *DemoCallback) Detail(order *core.Order) *core.PaymentDetail {
	raw, _ := json.Marshal(c)
	return &core.PaymentDetail{
		OrderID:       order.UniqueID,
		PaymentMethod: "Demo",
		Amount:        amount.DotTwoPlaces(order.Amount),
		RawResponse:   raw,
	}
}

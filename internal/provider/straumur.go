package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/core/amount"
	"github.com/northpay/gateway/internal/core/checksum"
	"github.com/northpay/gateway/internal/port/output"
	"go.uber.org/zap"
)

const StraumurName = "straumur"

// StraumurSettings is the merchant configuration for the Straumur hosted
// checkout API.
type StraumurSettings struct {
	// PaymentPageURL is the hosted checkout endpoint.
	PaymentPageURL string `json:"paymentPageUrl"`
	APIKey         string `json:"apiKey"`
	// HMACKey is the hex-encoded callback signing key issued in the merchant
	// portal.
	HMACKey            string `json:"hmacKey"`
	TerminalIdentifier string `json:"terminalIdentifier"`
}

// Straumur initiates payments through Straumur's hosted checkout API and
// redirects the customer to the returned checkout page. The callback endpoint
// is registered on the terminal in Straumur's merchant portal, not sent per
// request.
type Straumur struct {
	log      *zap.Logger
	store    output.SettingsStore
	defaults json.RawMessage
	client   *http.Client
}

// NewStraumur creates the Straumur adapter.
func NewStraumur(log *zap.Logger, store output.SettingsStore, defaults json.RawMessage, client *http.Client) *Straumur {
	if client == nil {
		client = http.DefaultClient
	}
	return &Straumur{log: log, store: store, defaults: defaults, client: client}
}

func (s *Straumur) Name() string { return StraumurName }

// ResolveSettings merges and validates the Straumur merchant configuration.
func (s *Straumur) ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error) {
	var settings StraumurSettings
	if err := resolveSettings(ctx, s.store, StraumurName, s.defaults, req.ProviderSettings, &settings); err != nil {
		return nil, err
	}

	switch {
	case settings.PaymentPageURL == "":
		return nil, &core.ConfigError{Provider: StraumurName, Field: "paymentPageUrl"}
	case settings.APIKey == "":
		return nil, &core.ConfigError{Provider: StraumurName, Field: "apiKey"}
	case settings.HMACKey == "":
		return nil, &core.ConfigError{Provider: StraumurName, Field: "hmacKey"}
	case settings.TerminalIdentifier == "":
		return nil, &core.ConfigError{Provider: StraumurName, Field: "terminalIdentifier"}
	}

	return json.Marshal(settings)
}

type straumurItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Amount    int64  `json:"amount"`
}

type straumurCheckoutRequest struct {
	Amount             int64          `json:"amount"`
	Currency           string         `json:"currency"`
	ReturnURL          string         `json:"returnUrl"`
	Reference          string         `json:"reference"`
	TerminalIdentifier string         `json:"terminalIdentifier"`
	Culture            string         `json:"culture"`
	Items              []straumurItem `json:"items"`
}

type straumurCheckoutResponse struct {
	URL               string `json:"url"`
	CheckoutReference string `json:"checkoutReference"`
}

// Initiate creates a hosted checkout session for the order and returns the
// checkout page URL. Amounts travel in minor units.
func (s *Straumur) Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*Redirect, error) {
	var settings StraumurSettings
	if err := json.Unmarshal(snapshot, &settings); err != nil {
		return nil, fmt.Errorf("straumur: bad settings snapshot: %w", err)
	}

	items := make([]straumurItem, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, straumurItem{
			Name:      line.Title,
			Quantity:  line.Quantity,
			UnitPrice: amount.MinorUnits(line.Price),
			Amount:    amount.MinorUnits(line.GrandTotal),
		})
	}

	payload := straumurCheckoutRequest{
		Amount:             amount.MinorUnits(order.Amount),
		Currency:           req.Currency,
		ReturnURL:          req.SuccessURL + "?reference=" + order.UniqueID.String(),
		Reference:          order.UniqueID.String(),
		TerminalIdentifier: settings.TerminalIdentifier,
		Culture:            straumurCulture(req.Locale),
		Items:              items,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("straumur: marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.PaymentPageURL, bytes.NewReader(body))
	if err != nil {
		return nil, &core.TransportError{Provider: StraumurName, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-key", settings.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &core.TransportError{Provider: StraumurName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.TransportError{Provider: StraumurName, Err: fmt.Errorf("hosted checkout returned %s", resp.Status)}
	}

	var checkout straumurCheckoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		return nil, &core.TransportError{Provider: StraumurName, Err: err}
	}

	s.log.Info("straumur checkout created",
		zap.String("order_id", order.UniqueID.String()),
		zap.String("checkout_reference", checkout.CheckoutReference))

	return &Redirect{Location: checkout.URL}, nil
}

// straumurCulture maps the request locale onto the two cultures Straumur's
// checkout page supports; anything but English falls back to Icelandic.
func straumurCulture(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	if strings.EqualFold(lang, "en") {
		return "en"
	}
	return "is"
}

// StraumurCallback is the JSON payload of Straumur's payment webhook.
type StraumurCallback struct {
	CheckoutReference string `json:"checkoutReference"`
	PayfacReference   string `json:"payfacReference"`
	MerchantReference string `json:"merchantReference"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Reason            string `json:"reason"`
	Success           string `json:"success"`
	HMACSignature     string `json:"hmacSignature"`
	AdditionalData    struct {
		CardNumber string `json:"cardNumber"`
	} `json:"additionalData"`
}

func (c *StraumurCallback) Provider() string { return StraumurName }

func (c *StraumurCallback) Lookup() (Lookup, error) {
	if c.Success == "false" {
		return Lookup{}, ErrIgnoreCallback
	}
	if c.MerchantReference == "" {
		return Lookup{}, fmt.Errorf("straumur: missing merchant reference")
	}

	// Merchants may prefix the reference with cart data separated by
	// semicolons; the uuid comes last.
	ref := c.MerchantReference
	if idx := strings.LastIndexByte(ref, ';'); idx >= 0 {
		ref = ref[idx+1:]
	}

	id, err := uuid.Parse(ref)
	if err != nil {
		return Lookup{}, fmt.Errorf("straumur: bad merchant reference %q: %w", c.MerchantReference, err)
	}
	return Lookup{UniqueID: id}, nil
}

// Verify recomputes the webhook signature: HMAC-SHA256 under the hex-decoded
// key over the colon-joined field list, base64 output. The key itself is the
// first element of the signed payload.
func (c *StraumurCallback) Verify(ctx context.Context, order *core.Order, snapshot []byte) error {
	var settings StraumurSettings
	if _, err := decodeSnapshots(order, snapshot, &settings); err != nil {
		return err
	}

	payload := strings.Join([]string{
		settings.HMACKey,
		c.CheckoutReference,
		c.PayfacReference,
		c.MerchantReference,
		c.Amount,
		c.Currency,
		c.Reason,
		c.Success,
	}, ":")

	computed := checksum.HMACSHA256Base64HexKey(settings.HMACKey, payload)
	if !checksum.Equal(c.HMACSignature, computed) {
		return &core.VerificationError{Provider: StraumurName, Reason: "hmac signature mismatch"}
	}
	return nil
}

func (c *StraumurCallback) Detail(order *core.Order) *core.PaymentDetail {
	raw, _ := json.Marshal(c)
	return &core.PaymentDetail{
		OrderID:       order.UniqueID,
		CardNumber:    c.AdditionalData.CardNumber,
		PaymentMethod: "Straumur",
		Amount:        order.Amount.String(),
		RawResponse:   raw,
	}
}

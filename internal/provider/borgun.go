package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/core/amount"
	"github.com/northpay/gateway/internal/core/checksum"
	"github.com/northpay/gateway/internal/port/output"
	"go.uber.org/zap"
)

const BorgunName = "borgun"

// BorgunSettings is the merchant configuration for the Borgun hosted
// payment page.
type BorgunSettings struct {
	MerchantID       string `json:"merchantId"`
	PaymentGatewayID int    `json:"paymentGatewayId"`
	SecretCode       string `json:"secretCode"`
	PaymentPageURL   string `json:"paymentPageUrl"`

	MerchantEmail string `json:"merchantEmail,omitempty"`
	MerchantLogo  string `json:"merchantLogo,omitempty"`

	// RequireCustomerInformation asks the payment page to collect email,
	// mobile number and home address. Requires MerchantEmail: Borgun returns
	// cardholder information by email to the merchant.
	RequireCustomerInformation bool `json:"requireCustomerInformation,omitempty"`
}

// Borgun initiates payments against the Borgun SecurePay hosted page and
// verifies its server callbacks.
type Borgun struct {
	log         *zap.Logger
	store       output.SettingsStore
	defaults    json.RawMessage
	callbackURL string
}

// NewBorgun creates the Borgun adapter. callbackURL is the absolute URL
// Borgun reports successful payments to.
func NewBorgun(log *zap.Logger, store output.SettingsStore, defaults json.RawMessage, callbackURL string) *Borgun {
	return &Borgun{log: log, store: store, defaults: defaults, callbackURL: callbackURL}
}

func (b *Borgun) Name() string { return BorgunName }

// ResolveSettings merges and validates the Borgun merchant configuration.
func (b *Borgun) ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error) {
	var settings BorgunSettings
	if err := resolveSettings(ctx, b.store, BorgunName, b.defaults, req.ProviderSettings, &settings); err != nil {
		return nil, err
	}

	switch {
	case settings.MerchantID == "":
		return nil, &core.ConfigError{Provider: BorgunName, Field: "merchantId"}
	case settings.SecretCode == "":
		return nil, &core.ConfigError{Provider: BorgunName, Field: "secretCode"}
	case settings.PaymentPageURL == "":
		return nil, &core.ConfigError{Provider: BorgunName, Field: "paymentPageUrl"}
	}

	return json.Marshal(settings)
}

// Initiate builds the auto-submitting form posting the customer to the
// Borgun payment page.
func (b *Borgun) Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*Redirect, error) {
	var settings BorgunSettings
	if err := json.Unmarshal(snapshot, &settings); err != nil {
		return nil, fmt.Errorf("borgun: bad settings snapshot: %w", err)
	}

	total := amount.CommaTwoPlaces(order.Amount)
	orderID := order.ShortID()

	var fields formValues
	fields.add("merchantid", settings.MerchantID)
	fields.add("paymentgatewayid", strconv.Itoa(settings.PaymentGatewayID))
	fields.add("returnurlsuccess", req.SuccessURL)
	fields.add("returnurlcancel", req.CancelURL+"?paymentError=cancelPayment")
	fields.add("returnurlerror", req.ErrorURL+"?paymentError=errorPayment")
	fields.add("returnurlsuccessserver", b.callbackURL)
	fields.add("amount", total)
	fields.add("currency", req.Currency)
	fields.add("language", borgunLanguage(req.Locale))

	for i, item := range req.Items {
		n := strconv.Itoa(i)
		fields.add("itemdescription_"+n, item.Title)
		fields.add("itemcount_"+n, strconv.Itoa(item.Quantity))
		fields.add("itemunitamount_"+n, amount.CommaTwoPlaces(item.Price))
		fields.add("itemamount_"+n, amount.CommaTwoPlaces(item.GrandTotal))
	}

	fields.add("skipreceiptpage", "1")

	if settings.MerchantEmail != "" {
		fields.add("merchantemail", settings.MerchantEmail)
	}
	if settings.MerchantLogo != "" {
		fields.add("merchantlogo", settings.MerchantLogo)
	}
	// pagetype 1 makes the payment page collect cardholder contact details.
	if settings.RequireCustomerInformation && settings.MerchantEmail != "" {
		fields.add("pagetype", "1")
	}

	checkHash := checksum.HMACSHA256Hex(settings.SecretCode, strings.Join([]string{
		settings.MerchantID,
		req.SuccessURL,
		b.callbackURL,
		orderID,
		total,
		req.Currency,
	}, "|"))

	fields.add("checkhash", checkHash)
	fields.add("reference", order.UniqueID.String())
	fields.add("orderid", orderID)

	b.log.Info("borgun payment request",
		zap.String("order_id", order.UniqueID.String()),
		zap.String("amount", total))

	return &Redirect{HTML: autoSubmitForm(settings.PaymentPageURL, fields)}, nil
}

// borgunLanguage maps a locale to the two-letter code the payment page
// accepts.
func borgunLanguage(locale string) string {
	upper := strings.ToUpper(locale)
	if upper == "IS-IS" {
		return "IS"
	}
	if idx := strings.IndexByte(upper, '-'); idx > 0 {
		return upper[:idx]
	}
	return upper
}

// BorgunCallback is the query-string payload of Borgun's server callback.
type BorgunCallback struct {
	Status            string `query:"status" form:"status"`
	OrderHash         string `query:"orderhash" form:"orderhash"`
	OrderID           string `query:"orderid" form:"orderid"`
	AuthorizationCode string `query:"authorizationcode" form:"authorizationcode"`
	CreditCardNumber  string `query:"creditcardnumber" form:"creditcardnumber"`
	Step              string `query:"step" form:"step"`
	Reference         string `query:"reference" form:"reference"`
}

func (c *BorgunCallback) Provider() string { return BorgunName }

// Lookup resolves the order by the reference field, which echoes the full
// unique id sent at initiation. The orderid field only carries the short id
// and participates in the hash instead.
func (c *BorgunCallback) Lookup() (Lookup, error) {
	id, err := uuid.Parse(c.Reference)
	if err != nil {
		return Lookup{}, fmt.Errorf("borgun: bad reference %q: %w", c.Reference, err)
	}
	return Lookup{UniqueID: id}, nil
}

// Verify recomputes the orderhash over orderid|amount|currency with the
// merchant secret. The amount must render exactly as at initiation.
func (c *BorgunCallback) Verify(ctx context.Context, order *core.Order, snapshot []byte) error {
	var settings BorgunSettings
	req, err := decodeSnapshots(order, snapshot, &settings)
	if err != nil {
		return err
	}

	if c.OrderID != order.ShortID() {
		return &core.VerificationError{Provider: BorgunName, Reason: "orderid mismatch"}
	}

	computed := checksum.HMACSHA256Hex(settings.SecretCode, strings.Join([]string{
		c.OrderID,
		amount.CommaTwoPlaces(order.Amount),
		req.Currency,
	}, "|"))

	if !checksum.Equal(c.OrderHash, computed) {
		return &core.VerificationError{Provider: BorgunName, Reason: "orderhash mismatch"}
	}
	return nil
}

func (c *BorgunCallback) Detail(order *core.Order) *core.PaymentDetail {
	raw, _ := json.Marshal(c)
	return &core.PaymentDetail{
		OrderID:       order.UniqueID,
		CardNumber:    c.CreditCardNumber,
		PaymentMethod: "Borgun",
		Amount:        order.Amount.String(),
		RawResponse:   raw,
	}
}

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

const ValitorName = "valitor"

// Valitor card loan modes.
const (
	ValitorLoanDisabled     = 0
	ValitorLoanStandard     = 1
	ValitorLoanInterestFree = 2
)

// ValitorSettings is the merchant configuration for the Valitor hosted
// payment page.
type ValitorSettings struct {
	MerchantID       string `json:"merchantId"`
	VerificationCode string `json:"verificationCode"`
	PaymentPageURL   string `json:"paymentPageUrl"`

	// LoanType enables Valitor card loans. Loans require MerchantName and a
	// minimum amount under Icelandic cost-of-credit rules.
	LoanType     int    `json:"loanType,omitempty"`
	MerchantName string `json:"merchantName,omitempty"`

	SessionExpiredTimeoutInSeconds int    `json:"sessionExpiredTimeoutInSeconds,omitempty"`
	SessionExpiredRedirectURL      string `json:"sessionExpiredRedirectUrl,omitempty"`
}

// Valitor initiates payments against the Valitor hosted page and verifies
// its server callbacks.
type Valitor struct {
	log         *zap.Logger
	store       output.SettingsStore
	defaults    json.RawMessage
	callbackURL string
}

// NewValitor creates the Valitor adapter.
func NewValitor(log *zap.Logger, store output.SettingsStore, defaults json.RawMessage, callbackURL string) *Valitor {
	return &Valitor{log: log, store: store, defaults: defaults, callbackURL: callbackURL}
}

func (v *Valitor) Name() string { return ValitorName }

// ResolveSettings merges and validates the Valitor merchant configuration.
func (v *Valitor) ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error) {
	var settings ValitorSettings
	if err := resolveSettings(ctx, v.store, ValitorName, v.defaults, req.ProviderSettings, &settings); err != nil {
		return nil, err
	}

	switch {
	case settings.MerchantID == "":
		return nil, &core.ConfigError{Provider: ValitorName, Field: "merchantId"}
	case settings.VerificationCode == "":
		return nil, &core.ConfigError{Provider: ValitorName, Field: "verificationCode"}
	case settings.PaymentPageURL == "":
		return nil, &core.ConfigError{Provider: ValitorName, Field: "paymentPageUrl"}
	case settings.LoanType != ValitorLoanDisabled && settings.MerchantName == "":
		return nil, &core.ConfigError{Provider: ValitorName, Field: "merchantName"}
	}

	return json.Marshal(settings)
}

// Initiate builds the auto-submitting form posting the customer to the
// Valitor payment page. The DigitalSignature covers the verification code,
// every line item, and the urls in the documented order.
func (v *Valitor) Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*Redirect, error) {
	var settings ValitorSettings
	if err := json.Unmarshal(snapshot, &settings); err != nil {
		return nil, fmt.Errorf("valitor: bad settings snapshot: %w", err)
	}

	successURL := req.SuccessURL + "?reference=" + order.UniqueID.String()

	var sig strings.Builder
	sig.WriteString(settings.VerificationCode)
	sig.WriteString("0") // AuthorizationOnly

	var fields formValues
	fields.add("MerchantID", settings.MerchantID)
	fields.add("AuthorizationOnly", "0")
	fields.add("ReferenceNumber", order.UniqueID.String())
	fields.add("Currency", req.Currency)
	fields.add("Language", valitorLanguage(req.Locale))
	fields.add("PaymentSuccessfulURL", successURL)
	fields.add("PaymentSuccessfulURLText", "-")
	fields.add("PaymentSuccessfulAutomaticRedirect", "1")
	fields.add("PaymentCancelledURL", req.CancelURL)
	fields.add("PaymentSuccessfulServerSideURL", v.callbackURL)

	if settings.SessionExpiredTimeoutInSeconds != 0 {
		if settings.SessionExpiredRedirectURL != "" {
			fields.add("SessionExpiredTimeoutInSeconds", strconv.Itoa(settings.SessionExpiredTimeoutInSeconds))
			fields.add("SessionExpiredRedirectURL", settings.SessionExpiredRedirectURL)
		} else {
			v.log.Error("valitor session timeout configured without redirect url, skipping")
		}
	}

	for i, item := range req.Items {
		line := strconv.Itoa(i + 1)
		quantity := strconv.Itoa(item.Quantity)
		price := amount.WholeTrunc(item.Price)
		discount := strconv.Itoa(item.Discount)

		fields.add("Product_"+line+"_Description", item.Title)
		fields.add("Product_"+line+"_Quantity", quantity)
		fields.add("Product_"+line+"_Price", price)
		fields.add("Product_"+line+"_Discount", discount)

		sig.WriteString(quantity)
		sig.WriteString(price)
		sig.WriteString(discount)
	}

	sig.WriteString(settings.MerchantID)
	sig.WriteString(order.UniqueID.String())
	sig.WriteString(successURL)
	sig.WriteString(v.callbackURL)
	sig.WriteString(req.Currency)

	switch settings.LoanType {
	case ValitorLoanStandard:
		fields.add("IsCardLoan", "1")
		fields.add("MerchantName", settings.MerchantName)
		fields.add("IsInterestFree", "0")
		sig.WriteString("0")
	case ValitorLoanInterestFree:
		fields.add("IsCardLoan", "1")
		fields.add("MerchantName", settings.MerchantName)
		fields.add("IsInterestFree", "1")
		sig.WriteString("1")
	}

	fields.add("DigitalSignature", checksum.SHA256Hex(sig.String()))

	v.log.Info("valitor payment request",
		zap.String("order_id", order.UniqueID.String()),
		zap.String("amount", order.Amount.String()))

	return &Redirect{HTML: autoSubmitForm(settings.PaymentPageURL, fields)}, nil
}

// valitorLanguage maps a locale to one of the languages the payment page
// supports, defaulting to Icelandic.
func valitorLanguage(locale string) string {
	code := strings.ToUpper(locale)
	if idx := strings.IndexByte(code, '-'); idx > 0 {
		code = code[:idx]
	}
	switch code {
	case "IS", "EN", "DA", "DE":
		return code
	default:
		return "IS"
	}
}

// ValitorCallback is the query-string payload of Valitor's server callback.
type ValitorCallback struct {
	ReferenceNumber          string `query:"ReferenceNumber" form:"ReferenceNumber"`
	DigitalSignatureResponse string `query:"DigitalSignatureResponse" form:"DigitalSignatureResponse"`
	CardNumberMasked         string `query:"CardNumberMasked" form:"CardNumberMasked"`
	AuthorizationNumber      string `query:"AuthorizationNumber" form:"AuthorizationNumber"`
	TransactionNumber        string `query:"TransactionNumber" form:"TransactionNumber"`
}

func (c *ValitorCallback) Provider() string { return ValitorName }

func (c *ValitorCallback) Lookup() (Lookup, error) {
	id, err := uuid.Parse(c.ReferenceNumber)
	if err != nil {
		return Lookup{}, fmt.Errorf("valitor: bad reference number %q: %w", c.ReferenceNumber, err)
	}
	return Lookup{UniqueID: id}, nil
}

// Verify recomputes the response signature: SHA-256 over the verification
// code concatenated with the reference number.
func (c *ValitorCallback) Verify(ctx context.Context, order *core.Order, snapshot []byte) error {
	var settings ValitorSettings
	if _, err := decodeSnapshots(order, snapshot, &settings); err != nil {
		return err
	}

	computed := checksum.SHA256Hex(settings.VerificationCode + c.ReferenceNumber)
	if !checksum.Equal(c.DigitalSignatureResponse, computed) {
		return &core.VerificationError{Provider: ValitorName, Reason: "digital signature mismatch"}
	}
	return nil
}

func (c *ValitorCallback) Detail(order *core.Order) *core.PaymentDetail {
	raw, _ := json.Marshal(c)
	return &core.PaymentDetail{
		OrderID:       order.UniqueID,
		CardNumber:    c.CardNumberMasked,
		PaymentMethod: "Valitor",
		Amount:        order.Amount.String(),
		RawResponse:   raw,
	}
}

package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/core/amount"
	"github.com/northpay/gateway/internal/core/checksum"
	"github.com/northpay/gateway/internal/port/output"
	"go.uber.org/zap"
)

const ValitorPayName = "valitorpay"

// valitorPaySuccessStatuses are the 3-D Secure MD statuses that allow
// charging the card. 1 is fully authenticated, 2 and 4 are attempted
// authentications the scheme accepts.
var valitorPaySuccessStatuses = map[int]bool{1: true, 2: true, 4: true}

// ValitorPaySettings is the merchant configuration for the ValitorPay API.
type ValitorPaySettings struct {
	APIURL string `json:"apiUrl"`
	// APIKey is dot-separated; its last segment doubles as the merchant data
	// signing secret.
	APIKey          string `json:"apiKey"`
	AgreementNumber string `json:"agreementNumber,omitempty"`
	TerminalID      string `json:"terminalId,omitempty"`
}

// signingSecret returns the merchant data secret embedded in the api key.
func (s *ValitorPaySettings) signingSecret() string {
	return s.APIKey[strings.LastIndexByte(s.APIKey, '.')+1:]
}

// valitorPayMerchantData rides through the 3-D Secure flow and returns in
// the callback, signed so the callback can be tied to the order.
type valitorPayMerchantData struct {
	OrderID string `json:"orderId"`
}

// ValitorPay initiates direct card payments through the ValitorPay API. The
// card is verified with 3-D Secure first; the callback completes the charge.
type ValitorPay struct {
	log         *zap.Logger
	store       output.SettingsStore
	defaults    json.RawMessage
	callbackURL string
	client      *http.Client
}

// NewValitorPay creates the ValitorPay adapter.
func NewValitorPay(log *zap.Logger, store output.SettingsStore, defaults json.RawMessage, callbackURL string, client *http.Client) *ValitorPay {
	if client == nil {
		client = http.DefaultClient
	}
	return &ValitorPay{log: log, store: store, defaults: defaults, callbackURL: callbackURL, client: client}
}

func (v *ValitorPay) Name() string { return ValitorPayName }

// ResolveSettings merges and validates the ValitorPay merchant configuration.
func (v *ValitorPay) ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error) {
	var settings ValitorPaySettings
	if err := resolveSettings(ctx, v.store, ValitorPayName, v.defaults, req.ProviderSettings, &settings); err != nil {
		return nil, err
	}

	switch {
	case settings.APIURL == "":
		return nil, &core.ConfigError{Provider: ValitorPayName, Field: "apiUrl"}
	case settings.APIKey == "":
		return nil, &core.ConfigError{Provider: ValitorPayName, Field: "apiKey"}
	}

	return json.Marshal(settings)
}

type valitorPayVerificationRequest struct {
	CardNumber        string `json:"cardNumber,omitempty"`
	ExpirationMonth   int    `json:"expirationMonth,omitempty"`
	ExpirationYear    int    `json:"expirationYear,omitempty"`
	Amount            int64  `json:"amount"`
	AuthenticationURL string `json:"authenticationUrl"`
	TerminalID        string `json:"terminalId,omitempty"`
	AgreementNumber   string `json:"agreementNumber,omitempty"`
	MerchantData      string `json:"merchantData"`
	MerchantDataSig   string `json:"merchantDataSignature"`
}

type valitorPayVerificationResponse struct {
	IsSuccess   bool   `json:"isSuccess"`
	RawResponse string `json:"cardVerificationRawResponse"`
}

// Initiate starts 3-D Secure card verification. ValitorPay answers with an
// HTML document that runs the authentication flow in the customer's browser;
// the signed merchant data returns in the callback.
func (v *ValitorPay) Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*Redirect, error) {
	var settings ValitorPaySettings
	if err := json.Unmarshal(snapshot, &settings); err != nil {
		return nil, fmt.Errorf("valitorpay: bad settings snapshot: %w", err)
	}

	md, _ := json.Marshal(valitorPayMerchantData{OrderID: order.UniqueID.String()})
	encoded := base64.StdEncoding.EncodeToString(md)

	payload := valitorPayVerificationRequest{
		Amount:            amount.MinorUnits(order.Amount),
		AuthenticationURL: v.callbackURL,
		TerminalID:        settings.TerminalID,
		AgreementNumber:   settings.AgreementNumber,
		MerchantData:      encoded,
		MerchantDataSig:   checksum.HMACSHA256Base64(settings.signingSecret(), encoded),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("valitorpay: marshal verification request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		settings.APIURL+"/cardVerification", bytes.NewReader(body))
	if err != nil {
		return nil, &core.TransportError{Provider: ValitorPayName, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("valitorpay-api-key", settings.APIKey)

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return nil, &core.TransportError{Provider: ValitorPayName, Err: err}
	}
	defer resp.Body.Close()

	var verification valitorPayVerificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&verification); err != nil {
		return nil, &core.TransportError{Provider: ValitorPayName, Err: err}
	}
	if !verification.IsSuccess {
		return nil, &core.TransportError{
			Provider: ValitorPayName,
			Err:      fmt.Errorf("card verification rejected"),
		}
	}

	v.log.Info("valitorpay card verification started",
		zap.String("order_id", order.UniqueID.String()))

	return &Redirect{HTML: verification.RawResponse}, nil
}

// NewCallback wraps a bound 3-D Secure callback so verification can charge
// the card through the same API client.
func (v *ValitorPay) NewCallback() *ValitorPayCallback {
	return &ValitorPayCallback{client: v.client, log: v.log}
}

// ValitorPayCallback is the form payload posted after 3-D Secure
// authentication completes.
type ValitorPayCallback struct {
	client *http.Client
	log    *zap.Logger

	// maskedCard is captured from the sale response for the audit record.
	maskedCard string

	MD        string `form:"MD" json:"MD"`
	MdStatus  int    `form:"mdStatus" json:"mdStatus"`
	Signature string `form:"signature" json:"signature"`
	Cavv      string `form:"cavv" json:"cavv"`
	Xid       string `form:"xid" json:"xid"`
	DsTransID string `form:"dsTransId" json:"dsTransId"`
}

var _ Charger = (*ValitorPayCallback)(nil)

func (c *ValitorPayCallback) Provider() string { return ValitorPayName }

func (c *ValitorPayCallback) merchantData() (*valitorPayMerchantData, error) {
	raw, err := base64.StdEncoding.DecodeString(c.MD)
	if err != nil {
		return nil, fmt.Errorf("valitorpay: bad merchant data encoding: %w", err)
	}
	var md valitorPayMerchantData
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("valitorpay: bad merchant data: %w", err)
	}
	return &md, nil
}

func (c *ValitorPayCallback) Lookup() (Lookup, error) {
	md, err := c.merchantData()
	if err != nil {
		return Lookup{}, err
	}
	id, err := uuid.Parse(md.OrderID)
	if err != nil {
		return Lookup{}, fmt.Errorf("valitorpay: bad order id in merchant data: %w", err)
	}
	return Lookup{UniqueID: id}, nil
}

type valitorPayPaymentRequest struct {
	Operation            string `json:"operation"`
	Amount               int64  `json:"amount"`
	TerminalID           string `json:"terminalId,omitempty"`
	AgreementNumber      string `json:"agreementNumber,omitempty"`
	CardVerificationData struct {
		DsTransID string `json:"dsTransId"`
		Cavv      string `json:"cavv"`
		Xid       string `json:"xid"`
		MdStatus  int    `json:"mdStatus"`
	} `json:"cardVerificationData"`
	MerchantReferenceData string `json:"merchantReferenceData"`
}

type valitorPayPaymentResponse struct {
	IsSuccess        bool   `json:"isSuccess"`
	ResponseCode     string `json:"responseCode"`
	MaskedCardNumber string `json:"maskedCardNumber"`
}

// Verify authenticates the callback signature and MD status. The charge
// itself happens in Charge, after the caller has claimed the paid
// transition.
func (c *ValitorPayCallback) Verify(ctx context.Context, order *core.Order, snapshot []byte) error {
	var settings ValitorPaySettings
	if _, err := decodeSnapshots(order, snapshot, &settings); err != nil {
		return err
	}

	if !valitorPaySuccessStatuses[c.MdStatus] {
		return &core.VerificationError{Provider: ValitorPayName, Reason: fmt.Sprintf("md status %d", c.MdStatus)}
	}

	computed := checksum.HMACSHA256Base64(settings.signingSecret(), c.MD)
	if !checksum.Equal(c.Signature, computed) {
		return &core.VerificationError{Provider: ValitorPayName, Reason: "merchant data signature mismatch"}
	}
	return nil
}

// Charge completes the sale for a verified 3-D Secure authentication. Only
// the callback that wins the paid transition runs this, so a single sale
// reaches ValitorPay per order.
func (c *ValitorPayCallback) Charge(ctx context.Context, order *core.Order, snapshot []byte) error {
	var settings ValitorPaySettings
	if _, err := decodeSnapshots(order, snapshot, &settings); err != nil {
		return err
	}

	payload := valitorPayPaymentRequest{
		Operation:             "Sale",
		Amount:                amount.MinorUnits(order.Amount),
		TerminalID:            settings.TerminalID,
		AgreementNumber:       settings.AgreementNumber,
		MerchantReferenceData: strings.ReplaceAll(order.UniqueID.String(), "-", ""),
	}
	payload.CardVerificationData.DsTransID = c.DsTransID
	payload.CardVerificationData.Cavv = c.Cavv
	payload.CardVerificationData.Xid = c.Xid
	payload.CardVerificationData.MdStatus = c.MdStatus

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("valitorpay: marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		settings.APIURL+"/payment", bytes.NewReader(body))
	if err != nil {
		return &core.TransportError{Provider: ValitorPayName, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("valitorpay-api-key", settings.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &core.TransportError{Provider: ValitorPayName, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &core.TransportError{Provider: ValitorPayName, Err: err}
	}

	var payment valitorPayPaymentResponse
	if err := json.Unmarshal(respBody, &payment); err != nil {
		return &core.TransportError{Provider: ValitorPayName, Err: err}
	}
	if !payment.IsSuccess {
		return &core.VerificationError{
			Provider: ValitorPayName,
			Reason:   "sale rejected with code " + payment.ResponseCode,
		}
	}

	c.maskedCard = payment.MaskedCardNumber
	return nil
}

func (c *ValitorPayCallback) Detail(order *core.Order) *core.PaymentDetail {
	return &core.PaymentDetail{
		OrderID:       order.UniqueID,
		CardNumber:    c.maskedCard,
		PaymentMethod: "ValitorPay",
		Amount:        order.Amount.String(),
		RawResponse:   nil,
	}
}

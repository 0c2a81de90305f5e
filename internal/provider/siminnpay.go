package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/core/amount"
	"github.com/northpay/gateway/internal/core/checksum"
	"github.com/northpay/gateway/internal/port/output"
	"go.uber.org/zap"
)

const SiminnPayName = "siminnpay"

// SiminnPay order statuses as reported in callbacks.
const (
	SiminnPayStatusSuccessful = "PAYMENT_SUCCESSFUL"
	SiminnPayStatusCancelled  = "CANCELLED"
	SiminnPayStatusExpired    = "EXPIRED"
)

// siminnPayExpiryLayout formats callback expiry timestamps; the value
// participates in the HMAC body.
const siminnPayExpiryLayout = "02.01.2006 15:04:05"

// SiminnPaySettings is the merchant configuration for the SiminnPay API.
type SiminnPaySettings struct {
	APIKey         string `json:"apiKey"`
	APIURL         string `json:"apiUrl"`
	Secret         string `json:"secret"`
	Currency       string `json:"currency,omitempty"`
	RestrictToLoan bool   `json:"restrictToLoan,omitempty"`
}

// SiminnPay initiates mobile payments via the SiminnPay REST API and
// verifies its HMAC-signed callbacks. Customers approve the payment on
// their phone, so initiation requires a phone number.
type SiminnPay struct {
	log         *zap.Logger
	store       output.SettingsStore
	defaults    json.RawMessage
	callbackURL string
	client      *http.Client
}

// NewSiminnPay creates the SiminnPay adapter.
func NewSiminnPay(log *zap.Logger, store output.SettingsStore, defaults json.RawMessage, callbackURL string, client *http.Client) *SiminnPay {
	if client == nil {
		client = http.DefaultClient
	}
	return &SiminnPay{log: log, store: store, defaults: defaults, callbackURL: callbackURL, client: client}
}

func (s *SiminnPay) Name() string { return SiminnPayName }

// ResolveSettings merges and validates the SiminnPay merchant configuration.
func (s *SiminnPay) ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error) {
	var settings SiminnPaySettings
	if err := resolveSettings(ctx, s.store, SiminnPayName, s.defaults, req.ProviderSettings, &settings); err != nil {
		return nil, err
	}

	switch {
	case settings.APIKey == "":
		return nil, &core.ConfigError{Provider: SiminnPayName, Field: "apiKey"}
	case settings.APIURL == "":
		return nil, &core.ConfigError{Provider: SiminnPayName, Field: "apiUrl"}
	case settings.Secret == "":
		return nil, &core.ConfigError{Provider: SiminnPayName, Field: "secret"}
	case req.CustomerInfo.PhoneNumber == "":
		return nil, &core.ConfigError{Provider: SiminnPayName, Field: "customerInfo.phoneNumber"}
	}

	return json.Marshal(settings)
}

type siminnPayOrderRequest struct {
	Description    string `json:"description"`
	PhoneNumber    string `json:"phoneNumber"`
	Amount         int64  `json:"amount"`
	ReferenceID    string `json:"referenceId"`
	CallbackURL    string `json:"callbackUrl"`
	Currency       string `json:"currency,omitempty"`
	RestrictToLoan bool   `json:"restrictToLoan,omitempty"`
}

type siminnPayOrderResponse struct {
	OrderKey string `json:"orderKey"`
	Status   string `json:"status"`
	URL      string `json:"url"`
}

// Initiate creates a payment order through the SiminnPay API and returns the
// URL the customer completes the payment at. The provider-issued order key
// is persisted as the callback lookup key.
func (s *SiminnPay) Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*Redirect, error) {
	var settings SiminnPaySettings
	if err := json.Unmarshal(snapshot, &settings); err != nil {
		return nil, fmt.Errorf("siminnpay: bad settings snapshot: %w", err)
	}

	payload := siminnPayOrderRequest{
		Description:    req.Items[0].Title,
		PhoneNumber:    req.CustomerInfo.PhoneNumber,
		Amount:         order.Amount.Truncate(0).IntPart(),
		ReferenceID:    order.UniqueID.String(),
		CallbackURL:    s.callbackURL,
		Currency:       settings.Currency,
		RestrictToLoan: settings.RestrictToLoan,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("siminnpay: marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.APIURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, &core.TransportError{Provider: SiminnPayName, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+settings.APIKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &core.TransportError{Provider: SiminnPayName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.TransportError{
			Provider: SiminnPayName,
			Err:      fmt.Errorf("create payment order returned %s", resp.Status),
		}
	}

	var orderResp siminnPayOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&orderResp); err != nil {
		return nil, &core.TransportError{Provider: SiminnPayName, Err: err}
	}

	s.log.Info("siminnpay payment order created",
		zap.String("order_id", order.UniqueID.String()),
		zap.String("order_key", orderResp.OrderKey))

	return &Redirect{Location: orderResp.URL, CustomData: orderResp.OrderKey}, nil
}

// SiminnPayCallback is the JSON payload of SiminnPay's status callback.
type SiminnPayCallback struct {
	OrderKey           string    `json:"orderKey"`
	Amount             float64   `json:"amount"`
	Status             string    `json:"status"`
	ExpiresAt          time.Time `json:"expiresAt"`
	HMAC               string    `json:"hmac"`
	TransactionDetails struct {
		TransactionID string `json:"transactionId"`
	} `json:"transactionDetails"`
}

func (c *SiminnPayCallback) Provider() string { return SiminnPayName }

// Lookup resolves the order by the provider-issued order key stored at
// initiation. Non-success statuses are acknowledged without processing.
func (c *SiminnPayCallback) Lookup() (Lookup, error) {
	if c.OrderKey == "" {
		return Lookup{}, fmt.Errorf("siminnpay: missing order key")
	}
	if c.Status != SiminnPayStatusSuccessful {
		return Lookup{}, ErrIgnoreCallback
	}
	return Lookup{CustomData: c.OrderKey}, nil
}

// Verify recomputes the callback HMAC: HMAC-SHA256 over the order key, the
// truncated amount and the expiry timestamp.
func (c *SiminnPayCallback) Verify(ctx context.Context, order *core.Order, snapshot []byte) error {
	var settings SiminnPaySettings
	if _, err := decodeSnapshots(order, snapshot, &settings); err != nil {
		return err
	}

	body := c.OrderKey +
		strconv.FormatInt(int64(c.Amount), 10) +
		c.ExpiresAt.Format(siminnPayExpiryLayout)

	computed := checksum.HMACSHA256Hex(settings.Secret, body)
	if !checksum.Equal(c.HMAC, computed) {
		return &core.VerificationError{Provider: SiminnPayName, Reason: "hmac mismatch"}
	}
	return nil
}

func (c *SiminnPayCallback) Detail(order *core.Order) *core.PaymentDetail {
	raw, _ := json.Marshal(c)
	return &core.PaymentDetail{
		OrderID:       order.UniqueID,
		PaymentMethod: "SiminnPay",
		Amount:        amount.WholeTrunc(order.Amount),
		RawResponse:   raw,
	}
}

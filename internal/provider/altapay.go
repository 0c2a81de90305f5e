package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/core/amount"
	"github.com/northpay/gateway/internal/port/output"
	"go.uber.org/zap"
)

const AltaPayName = "altapay"

// AltaPay callback payment statuses.
const (
	AltaPayStatusSucceeded = "SUCCEEDED"
	AltaPayStatusFailed    = "FAILED"
)

// AltaPaySettings is the merchant configuration for the AltaPay (Straumur)
// session API.
type AltaPaySettings struct {
	APIUserName       string `json:"apiUserName"`
	APIPassword       string `json:"apiPassword"`
	AuthenticationURL string `json:"authenticationUrl"`
	SessionURL        string `json:"sessionUrl"`
	TerminalID        string `json:"terminalId,omitempty"`
}

// AltaPay initiates payments through the AltaPay session API: authenticate,
// create a checkout session, redirect the customer to the session URL.
// Callbacks are authenticated by session id and merchant reference equality.
type AltaPay struct {
	log         *zap.Logger
	store       output.SettingsStore
	defaults    json.RawMessage
	callbackURL string
	client      *http.Client
}

// NewAltaPay creates the AltaPay adapter.
func NewAltaPay(log *zap.Logger, store output.SettingsStore, defaults json.RawMessage, callbackURL string, client *http.Client) *AltaPay {
	if client == nil {
		client = http.DefaultClient
	}
	return &AltaPay{log: log, store: store, defaults: defaults, callbackURL: callbackURL, client: client}
}

func (a *AltaPay) Name() string { return AltaPayName }

// ResolveSettings merges and validates the AltaPay merchant configuration.
func (a *AltaPay) ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error) {
	var settings AltaPaySettings
	if err := resolveSettings(ctx, a.store, AltaPayName, a.defaults, req.ProviderSettings, &settings); err != nil {
		return nil, err
	}

	switch {
	case settings.APIUserName == "":
		return nil, &core.ConfigError{Provider: AltaPayName, Field: "apiUserName"}
	case settings.APIPassword == "":
		return nil, &core.ConfigError{Provider: AltaPayName, Field: "apiPassword"}
	case settings.AuthenticationURL == "":
		return nil, &core.ConfigError{Provider: AltaPayName, Field: "authenticationUrl"}
	case settings.SessionURL == "":
		return nil, &core.ConfigError{Provider: AltaPayName, Field: "sessionUrl"}
	}

	return json.Marshal(settings)
}

type altaPayAuthResponse struct {
	Token string `json:"token"`
}

type altaPaySessionRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	OrderID     string `json:"orderId"`
	ReturnURL   string `json:"returnUrl"`
	CallbackURL string `json:"callbackUrl"`
	TerminalID  string `json:"terminalIdentifier,omitempty"`
}

type altaPaySessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Initiate authenticates against AltaPay, creates a checkout session for the
// order and returns the session URL. The session id is persisted as the
// callback correlation key.
func (a *AltaPay) Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*Redirect, error) {
	var settings AltaPaySettings
	if err := json.Unmarshal(snapshot, &settings); err != nil {
		return nil, fmt.Errorf("altapay: bad settings snapshot: %w", err)
	}

	token, err := a.authenticate(ctx, &settings)
	if err != nil {
		return nil, err
	}

	session, err := a.createSession(ctx, &settings, token, altaPaySessionRequest{
		Amount:      amount.MinorUnits(order.Amount),
		Currency:    req.Currency,
		OrderID:     order.UniqueID.String(),
		ReturnURL:   req.SuccessURL + "?reference=" + order.UniqueID.String(),
		CallbackURL: a.callbackURL,
		TerminalID:  settings.TerminalID,
	})
	if err != nil {
		return nil, err
	}

	a.log.Info("altapay session created",
		zap.String("order_id", order.UniqueID.String()),
		zap.String("session_id", session.SessionID))

	return &Redirect{Location: session.URL, CustomData: session.SessionID}, nil
}

func (a *AltaPay) authenticate(ctx context.Context, settings *AltaPaySettings) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.AuthenticationURL, nil)
	if err != nil {
		return "", &core.TransportError{Provider: AltaPayName, Err: err}
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(settings.APIUserName + ":" + settings.APIPassword))
	httpReq.Header.Set("Authorization", "Basic "+credentials)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", &core.TransportError{Provider: AltaPayName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &core.TransportError{Provider: AltaPayName, Err: fmt.Errorf("authentication returned %s", resp.Status)}
	}

	var auth altaPayAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", &core.TransportError{Provider: AltaPayName, Err: err}
	}
	return auth.Token, nil
}

func (a *AltaPay) createSession(ctx context.Context, settings *AltaPaySettings, token string, session altaPaySessionRequest) (*altaPaySessionResponse, error) {
	body, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("altapay: marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.SessionURL, bytes.NewReader(body))
	if err != nil {
		return nil, &core.TransportError{Provider: AltaPayName, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &core.TransportError{Provider: AltaPayName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.TransportError{Provider: AltaPayName, Err: fmt.Errorf("create session returned %s", resp.Status)}
	}

	var sessionResp altaPaySessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sessionResp); err != nil {
		return nil, &core.TransportError{Provider: AltaPayName, Err: err}
	}
	return &sessionResp, nil
}

// AltaPayCallback is the JSON payload of AltaPay's payment callback.
type AltaPayCallback struct {
	SessionID     string `json:"sessionId"`
	PaymentStatus string `json:"paymentStatus"`
	Order         struct {
		// OrderID is the merchant reference; some integrations prefix it
		// with store data separated by semicolons, the uuid comes last.
		OrderID string `json:"orderId"`
	} `json:"order"`
	CardInformation struct {
		LastFourDigits string `json:"lastFourDigits"`
	} `json:"cardInformation"`
}

func (c *AltaPayCallback) Provider() string { return AltaPayName }

func (c *AltaPayCallback) Lookup() (Lookup, error) {
	if c.PaymentStatus != AltaPayStatusSucceeded {
		return Lookup{}, ErrIgnoreCallback
	}
	if c.Order.OrderID == "" {
		return Lookup{}, fmt.Errorf("altapay: missing merchant reference")
	}

	ref := c.Order.OrderID
	if idx := strings.LastIndexByte(ref, ';'); idx >= 0 {
		ref = ref[idx+1:]
	}

	id, err := uuid.Parse(ref)
	if err != nil {
		return Lookup{}, fmt.Errorf("altapay: bad merchant reference %q: %w", c.Order.OrderID, err)
	}
	return Lookup{UniqueID: id}, nil
}

// Verify checks the callback against the session created at initiation: the
// session id must match the one stored on the order.
func (c *AltaPayCallback) Verify(ctx context.Context, order *core.Order, snapshot []byte) error {
	if order.CustomData == "" || c.SessionID != order.CustomData {
		return &core.VerificationError{Provider: AltaPayName, Reason: "session id mismatch"}
	}
	return nil
}

func (c *AltaPayCallback) Detail(order *core.Order) *core.PaymentDetail {
	raw, _ := json.Marshal(c)
	card := ""
	if c.CardInformation.LastFourDigits != "" {
		card = "**** **** **** " + c.CardInformation.LastFourDigits
	}
	return &core.PaymentDetail{
		OrderID:       order.UniqueID,
		CardNumber:    card,
		PaymentMethod: "AltaPay",
		Amount:        order.Amount.String(),
		RawResponse:   raw,
	}
}

package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order represents a single checkout attempt, correlated to both the hosting
// application's cart and the provider's transaction.
type Order struct {
	// UniqueID is the primary correlation key handed to the provider and
	// returned in callbacks. Immutable once created.
	UniqueID uuid.UUID

	// ReferenceID is a secondary numeric id some providers require in lieu
	// of a uuid. Assigned by the database, immutable.
	ReferenceID int64

	OrderName string
	Amount    decimal.Decimal
	Paid      bool

	// SettingsSnapshot holds the generic payment settings active at request
	// time; callbacks arrive out-of-session later and must not depend on the
	// live configuration.
	SettingsSnapshot []byte

	// ProviderSnapshot holds the provider-specific settings (secrets used to
	// verify the callback). Sensitive.
	ProviderSnapshot []byte

	// CustomData is a free-form correlation value, occasionally used as an
	// alternate lookup key (f.x. a provider-issued order key).
	CustomData string

	Provider  string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShortID returns the last group of the order uuid. Some providers only
// accept short alphanumeric order ids.
func (o *Order) ShortID() string {
	s := o.UniqueID.String()
	return s[strings.LastIndex(s, "-")+1:]
}

// PaymentDetail is the audit record of a successful payment, written once on
// the first verified callback for an order.
type PaymentDetail struct {
	OrderID       uuid.UUID
	CardNumber    string
	PaymentMethod string
	Amount        string
	RawResponse   []byte
	CreatedAt     time.Time
}

// OrderItem is a single line in a checkout request.
type OrderItem struct {
	Title      string          `json:"title"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Discount   int             `json:"discount"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// CustomerInfo carries optional customer fields forwarded to providers that
// want them (SiminnPay requires the phone number).
type CustomerInfo struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// PaymentRequest is the generic settings bag for initiating a payment,
// independent of provider.
type PaymentRequest struct {
	Provider string      `json:"provider"`
	Items    []OrderItem `json:"items"`

	OrderName string `json:"orderName,omitempty"`
	Currency  string `json:"currency"`
	Locale    string `json:"locale"`

	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
	ErrorURL   string `json:"errorUrl"`

	CustomerInfo CustomerInfo `json:"customerInfo,omitempty"`

	// ProviderSettings optionally overrides stored provider configuration
	// for this single request. Highest precedence in the resolution chain.
	ProviderSettings map[string]any `json:"providerSettings,omitempty"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// Total sums the grand totals of all line items.
func (r *PaymentRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.GrandTotal)
	}
	return total
}

package input

import (
	"context"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/provider"
)

// Checkout is the outcome of a successful payment initiation. Exactly one of
// HTML and Location is set, depending on the provider's integration style.
type Checkout struct {
	OrderID uuid.UUID

	// HTML is a self-submitting form the hosting application serves to the
	// customer's browser.
	HTML string

	// Location is a provider-hosted payment page to redirect the customer to.
	Location string
}

// CheckoutService is the primary port for initiating payments.
type CheckoutService interface {
	// Checkout resolves provider settings, persists a pending order and
	// initiates the payment with the provider. The order is persisted before
	// the provider is contacted.
	Checkout(ctx context.Context, req *core.PaymentRequest) (*Checkout, error)
}

// CallbackService is the primary port for processing provider callbacks.
type CallbackService interface {
	// Process resolves, verifies and settles the order a callback refers to.
	// The returned order is non-nil whenever one was resolved, including on
	// core.ErrAlreadyPaid replays. Error values callers dispatch on:
	// provider.ErrIgnoreCallback, core.ErrOrderNotFound, core.ErrAlreadyPaid
	// and *core.VerificationError.
	Process(ctx context.Context, cb provider.Callback) (*core.Order, error)
}

package output

import (
	"context"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
)

// OrderRepository is an output port (secondary port) for order persistence.
// Secondary adapters (database implementations) will implement this.
type OrderRepository interface {
	// Create persists a new pending order. Fills in ReferenceID.
	Create(ctx context.Context, order *core.Order) error

	// GetByUniqueID retrieves an order by its unique id.
	// Returns core.ErrOrderNotFound when no such order exists.
	GetByUniqueID(ctx context.Context, id uuid.UUID) (*core.Order, error)

	// GetByCustomData retrieves an order by its alternate correlation key.
	// Returns core.ErrOrderNotFound when no such order exists.
	GetByCustomData(ctx context.Context, customData string) (*core.Order, error)

	// SetCustomData stores a provider-issued correlation key on an order
	// after initiation.
	SetCustomData(ctx context.Context, id uuid.UUID, customData string) error

	// MarkPaid atomically flips the paid flag if it is still unset.
	// Returns false when the order was already paid, so concurrent duplicate
	// callbacks resolve to exactly one transition.
	MarkPaid(ctx context.Context, id uuid.UUID) (bool, error)

	// RevertPaid releases a paid claim this process made when the charge
	// following it fails, so the provider's retry can attempt the
	// transition again. Never driven by callback input.
	RevertPaid(ctx context.Context, id uuid.UUID) error

	// CreatePaymentDetail writes the audit record for a verified payment.
	// Inserts only; an order's detail row is never overwritten.
	CreatePaymentDetail(ctx context.Context, detail *core.PaymentDetail) error

	// HasPaymentDetail reports whether an audit record exists for the order.
	HasPaymentDetail(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// SettingsStore is an output port for stored per-provider configuration
// profiles, the middle layer of the settings resolution chain.
type SettingsStore interface {
	// ProfileJSON returns the stored settings profile for a provider as raw
	// JSON, or nil when no profile exists.
	ProfileJSON(ctx context.Context, provider string) ([]byte, error)
}

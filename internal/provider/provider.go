// Package provider contains one adapter per supported payment provider.
// Each adapter translates the generic payment request into the provider's
// wire format on the way out, and authenticates the provider's callback on
// the way back in.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/port/output"
)

// Redirect is the artifact handed back to the hosting application after
// initiation: either an auto-submitting HTML form or a URL to send the
// customer to, depending on the provider's integration style.
type Redirect struct {
	// HTML is a self-submitting form document. Set by form-post providers.
	HTML string
	// Location is the provider-hosted payment page URL. Set by API providers.
	Location string
	// CustomData is an optional provider-issued correlation key to persist
	// on the order for callback lookup.
	CustomData string
}

// Lookup identifies the order a callback refers to, either by the unique id
// this gateway issued or by the provider correlation key stored at
// initiation.
type Lookup struct {
	UniqueID   uuid.UUID
	CustomData string
}

// ErrIgnoreCallback signals a callback that is valid but carries nothing to
// process (f.x. a non-success status notification); the provider expects a
// plain acknowledgment.
var ErrIgnoreCallback = errors.New("callback requires no processing")

// Callback is a parsed provider callback payload. Implementations live next
// to their provider adapter.
type Callback interface {
	// Provider names the adapter this callback belongs to.
	Provider() string

	// Lookup extracts the order reference from the payload. A malformed
	// reference is a bad request; ErrIgnoreCallback acknowledges without
	// processing.
	Lookup() (Lookup, error)

	// Verify authenticates the payload against the order and the provider
	// settings snapshot taken at initiation. Returns *core.VerificationError
	// on mismatch.
	Verify(ctx context.Context, order *core.Order, snapshot []byte) error

	// Detail builds the audit record persisted on first verification.
	Detail(order *core.Order) *core.PaymentDetail
}

// Charger is implemented by callbacks whose settlement moves money through
// an outbound provider call (verification alone does not charge). The
// pipeline runs Charge only after winning the paid transition, so concurrent
// duplicate callbacks cannot charge the card twice.
type Charger interface {
	Charge(ctx context.Context, order *core.Order, snapshot []byte) error
}

// Provider initiates payments for a single external payment provider.
type Provider interface {
	Name() string

	// ResolveSettings merges the provider configuration for this request
	// (explicit request overrides > stored profile > static defaults),
	// validates mandatory fields and returns the serialized snapshot
	// persisted with the order.
	ResolveSettings(ctx context.Context, req *core.PaymentRequest) ([]byte, error)

	// Initiate builds the provider-specific payment initiation from an
	// already persisted pending order. Callers must persist the order first:
	// the provider callback can race ahead of this call returning.
	Initiate(ctx context.Context, req *core.PaymentRequest, order *core.Order, snapshot []byte) (*Redirect, error)
}

// resolveSettings applies the configuration precedence chain into dst:
// static defaults first, then the stored profile, then explicit request
// overrides. Later layers only overwrite fields they carry.
func resolveSettings(
	ctx context.Context,
	store output.SettingsStore,
	name string,
	defaults json.RawMessage,
	explicit map[string]any,
	dst any,
) error {
	if len(defaults) > 0 {
		if err := json.Unmarshal(defaults, dst); err != nil {
			return fmt.Errorf("%s: invalid static defaults: %w", name, err)
		}
	}

	if store != nil {
		profile, err := store.ProfileJSON(ctx, name)
		if err != nil {
			return fmt.Errorf("%s: failed to load settings profile: %w", name, err)
		}
		if len(profile) > 0 {
			if err := json.Unmarshal(profile, dst); err != nil {
				return fmt.Errorf("%s: invalid settings profile: %w", name, err)
			}
		}
	}

	if len(explicit) > 0 {
		raw, err := json.Marshal(explicit)
		if err != nil {
			return fmt.Errorf("%s: invalid explicit settings: %w", name, err)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%s: invalid explicit settings: %w", name, err)
		}
	}

	return nil
}

// decodeSnapshots unpacks the order's settings snapshots taken at
// initiation. Callback verification must never consult live configuration.
func decodeSnapshots(order *core.Order, snapshot []byte, providerSettings any) (*core.PaymentRequest, error) {
	var req core.PaymentRequest
	if err := json.Unmarshal(order.SettingsSnapshot, &req); err != nil {
		return nil, fmt.Errorf("corrupt settings snapshot for order %s: %w", order.UniqueID, err)
	}
	if err := json.Unmarshal(snapshot, providerSettings); err != nil {
		return nil, fmt.Errorf("corrupt provider snapshot for order %s: %w", order.UniqueID, err)
	}
	return &req, nil
}

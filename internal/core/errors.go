package core

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned when a callback references an order this
// gateway never issued.
var ErrOrderNotFound = errors.New("order not found")

// ErrAlreadyPaid signals an idempotent replay: the order was settled by an
// earlier callback and no further side effects may run.
var ErrAlreadyPaid = errors.New("order already paid")

// ErrUnknownProvider is returned when a request names a provider no adapter
// is registered for.
var ErrUnknownProvider = errors.New("unknown payment provider")

// ErrInvalidRequest marks a payment request that fails generic validation
// before any provider is involved.
var ErrInvalidRequest = errors.New("invalid payment request")

// ConfigError marks a missing or invalid provider setting. Fatal for the
// initiation attempt, never retried.
type ConfigError struct {
	Provider string
	Field    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: missing required setting %q", e.Provider, e.Field)
}

// TransportError wraps a network failure talking to a provider API.
// Initiation is not idempotent against the provider, so the caller decides
// whether to retry.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: provider request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// VerificationError marks a callback whose signature/hash did not match.
// The order is left unpaid so the provider may retry per its own policy.
type VerificationError struct {
	Provider string
	Reason   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: callback verification failed: %s", e.Provider, e.Reason)
}

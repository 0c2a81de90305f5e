package core

import (
	"context"
	"errors"
	"sync"
)

// SuccessEvent is published after an order transitions to paid.
type SuccessEvent struct {
	Order *Order
}

// ErrorEvent is published on initiation or callback failures. Order may be
// nil when the failure happened before the order could be resolved.
type ErrorEvent struct {
	Provider string
	Order    *Order
	Err      error
}

// SuccessHandler reacts to a verified payment.
type SuccessHandler func(ctx context.Context, e SuccessEvent) error

// ErrorHandler reacts to a payment failure.
type ErrorHandler func(ctx context.Context, e ErrorEvent) error

// EventBus notifies the hosting application of payment outcomes. Handlers
// are registered at startup and invoked synchronously in registration order;
// every handler runs before publish returns, and their errors are joined.
type EventBus struct {
	mu        sync.RWMutex
	onSuccess []SuccessHandler
	onError   []ErrorHandler
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// SubscribeSuccess registers a handler for verified payments.
func (b *EventBus) SubscribeSuccess(h SuccessHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSuccess = append(b.onSuccess, h)
}

// SubscribeError registers a handler for payment failures.
func (b *EventBus) SubscribeError(h ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = append(b.onError, h)
}

// PublishSuccess invokes all success handlers. A failing handler does not
// stop the remaining handlers.
func (b *EventBus) PublishSuccess(ctx context.Context, e SuccessEvent) error {
	b.mu.RLock()
	handlers := b.onSuccess
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishError invokes all error handlers.
func (b *EventBus) PublishError(ctx context.Context, e ErrorEvent) error {
	b.mu.RLock()
	handlers := b.onError
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

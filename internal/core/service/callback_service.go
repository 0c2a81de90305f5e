package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/port/input"
	"github.com/northpay/gateway/internal/port/output"
	"github.com/northpay/gateway/internal/provider"
	"go.uber.org/zap"
)

// CallbackService implements input.CallbackService: it resolves the order a
// provider callback refers to, authenticates the payload and performs the
// single pending-to-paid transition.
type CallbackService struct {
	log  *zap.Logger
	repo output.OrderRepository
	bus  *core.EventBus
}

// NewCallbackService creates the callback service.
func NewCallbackService(log *zap.Logger, repo output.OrderRepository, bus *core.EventBus) *CallbackService {
	return &CallbackService{log: log, repo: repo, bus: bus}
}

var _ input.CallbackService = (*CallbackService)(nil)

// Process runs the callback pipeline: lookup, replay short-circuit,
// verification, paid transition, charge (for charging callbacks), audit
// record, success event. Duplicate callbacks are acknowledged via
// core.ErrAlreadyPaid without re-running any side effect.
func (s *CallbackService) Process(ctx context.Context, cb provider.Callback) (*core.Order, error) {
	lookup, err := cb.Lookup()
	if err != nil {
		if errors.Is(err, provider.ErrIgnoreCallback) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve callback reference: %w", err)
	}

	order, err := s.resolve(ctx, lookup)
	if err != nil {
		return nil, err
	}

	log := s.log.With(
		zap.String("order_id", order.UniqueID.String()),
		zap.String("provider", cb.Provider()))

	if order.Provider != cb.Provider() {
		return order, &core.VerificationError{Provider: cb.Provider(), Reason: "order belongs to another provider"}
	}

	if order.Paid {
		log.Info("duplicate callback for settled order")
		return order, core.ErrAlreadyPaid
	}

	if err := cb.Verify(ctx, order, order.ProviderSnapshot); err != nil {
		log.Warn("callback verification failed", zap.Error(err))
		if busErr := s.bus.PublishError(ctx, core.ErrorEvent{Provider: cb.Provider(), Order: order, Err: err}); busErr != nil {
			log.Warn("error handler failed", zap.Error(busErr))
		}
		return order, err
	}

	won, err := s.repo.MarkPaid(ctx, order.UniqueID)
	if err != nil {
		if busErr := s.bus.PublishError(ctx, core.ErrorEvent{Provider: cb.Provider(), Order: order, Err: err}); busErr != nil {
			log.Warn("error handler failed", zap.Error(busErr))
		}
		return order, fmt.Errorf("mark order paid: %w", err)
	}
	if !won {
		log.Info("lost paid transition to concurrent callback")
		return order, core.ErrAlreadyPaid
	}
	order.Paid = true

	// Charging callbacks move money only after winning the claim above, so
	// concurrent duplicates cannot double-charge. A failed charge releases
	// the claim again: the provider's retry must be able to run the charge.
	if charger, ok := cb.(provider.Charger); ok {
		if err := charger.Charge(ctx, order, order.ProviderSnapshot); err != nil {
			order.Paid = false
			if revertErr := s.repo.RevertPaid(ctx, order.UniqueID); revertErr != nil {
				log.Error("failed to release paid claim after charge failure", zap.Error(revertErr))
			}
			log.Warn("charge failed", zap.Error(err))
			if busErr := s.bus.PublishError(ctx, core.ErrorEvent{Provider: cb.Provider(), Order: order, Err: err}); busErr != nil {
				log.Warn("error handler failed", zap.Error(busErr))
			}
			return order, err
		}
	}

	// The audit record is best-effort: a failure here must not lose the paid
	// transition the provider has already committed to on its side.
	if detail := cb.Detail(order); detail != nil {
		exists, err := s.repo.HasPaymentDetail(ctx, order.UniqueID)
		if err != nil {
			log.Warn("failed to check payment detail", zap.Error(err))
		}
		if !exists {
			if err := s.repo.CreatePaymentDetail(ctx, detail); err != nil {
				log.Warn("failed to persist payment detail", zap.Error(err))
			}
		}
	}

	log.Info("order settled")

	if err := s.bus.PublishSuccess(ctx, core.SuccessEvent{Order: order}); err != nil {
		// The transition is durable; handler failures are reported but do not
		// fail the callback, the provider must not retry a settled order.
		log.Error("success handler failed", zap.Error(err))
	}

	return order, nil
}

func (s *CallbackService) resolve(ctx context.Context, lookup provider.Lookup) (*core.Order, error) {
	if lookup.UniqueID != uuid.Nil {
		return s.repo.GetByUniqueID(ctx, lookup.UniqueID)
	}
	if lookup.CustomData != "" {
		return s.repo.GetByCustomData(ctx, lookup.CustomData)
	}
	return nil, core.ErrOrderNotFound
}

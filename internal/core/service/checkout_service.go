package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/port/input"
	"github.com/northpay/gateway/internal/port/output"
	"github.com/northpay/gateway/internal/provider"
	"go.uber.org/zap"
)

// CheckoutService implements input.CheckoutService on top of the registered
// provider adapters and the order store.
type CheckoutService struct {
	log       *zap.Logger
	repo      output.OrderRepository
	providers map[string]provider.Provider
	bus       *core.EventBus
}

// NewCheckoutService creates the checkout service over the given providers.
func NewCheckoutService(log *zap.Logger, repo output.OrderRepository, providers []provider.Provider, bus *core.EventBus) *CheckoutService {
	byName := make(map[string]provider.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &CheckoutService{log: log, repo: repo, providers: byName, bus: bus}
}

var _ input.CheckoutService = (*CheckoutService)(nil)

// Checkout resolves settings, persists the pending order and initiates the
// payment. Persisting happens before the provider is contacted: a fast
// provider callback must find the order already in the store.
func (s *CheckoutService) Checkout(ctx context.Context, req *core.PaymentRequest) (*input.Checkout, error) {
	p, ok := s.providers[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownProvider, req.Provider)
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	providerSnapshot, err := p.ResolveSettings(ctx, req)
	if err != nil {
		if busErr := s.bus.PublishError(ctx, core.ErrorEvent{Provider: req.Provider, Err: err}); busErr != nil {
			s.log.Warn("error handler failed", zap.Error(busErr))
		}
		return nil, err
	}

	settingsSnapshot, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	order := &core.Order{
		UniqueID:         uuid.New(),
		OrderName:        req.OrderName,
		Amount:           req.Total(),
		SettingsSnapshot: settingsSnapshot,
		ProviderSnapshot: providerSnapshot,
		Provider:         req.Provider,
		IPAddress:        req.IPAddress,
		UserAgent:        req.UserAgent,
	}
	if order.OrderName == "" {
		order.OrderName = req.Items[0].Title
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.log.Info("order created",
		zap.String("order_id", order.UniqueID.String()),
		zap.String("provider", req.Provider),
		zap.String("amount", order.Amount.String()))

	redirect, err := p.Initiate(ctx, req, order, providerSnapshot)
	if err != nil {
		if busErr := s.bus.PublishError(ctx, core.ErrorEvent{Provider: req.Provider, Order: order, Err: err}); busErr != nil {
			s.log.Warn("error handler failed", zap.Error(busErr))
		}
		return nil, err
	}

	if redirect.CustomData != "" {
		if err := s.repo.SetCustomData(ctx, order.UniqueID, redirect.CustomData); err != nil {
			// The provider-side order already exists; without the correlation
			// key its callback will never find ours, so alert administrators.
			err = fmt.Errorf("persist provider correlation key: %w", err)
			if busErr := s.bus.PublishError(ctx, core.ErrorEvent{Provider: req.Provider, Order: order, Err: err}); busErr != nil {
				s.log.Warn("error handler failed", zap.Error(busErr))
			}
			return nil, err
		}
	}

	return &input.Checkout{
		OrderID:  order.UniqueID,
		HTML:     redirect.HTML,
		Location: redirect.Location,
	}, nil
}

func validateRequest(req *core.PaymentRequest) error {
	switch {
	case len(req.Items) == 0:
		return fmt.Errorf("%w: no items", core.ErrInvalidRequest)
	case req.Currency == "":
		return fmt.Errorf("%w: no currency", core.ErrInvalidRequest)
	case req.Locale == "":
		return fmt.Errorf("%w: no locale", core.ErrInvalidRequest)
	case req.SuccessURL == "":
		return fmt.Errorf("%w: no success url", core.ErrInvalidRequest)
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", core.ErrInvalidRequest, i)
		}
	}
	if req.Total().IsNegative() {
		return fmt.Errorf("%w: negative total", core.ErrInvalidRequest)
	}
	return nil
}

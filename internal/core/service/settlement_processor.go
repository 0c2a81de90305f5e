package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/port/output"
	"go.uber.org/zap"
)

// SettlementProcessor handles paid-order messages on the worker side: it
// confirms the order against the store before downstream fulfilment runs.
type SettlementProcessor struct {
	log  *zap.Logger
	repo output.OrderRepository
}

// NewSettlementProcessor creates the settlement processor.
func NewSettlementProcessor(log *zap.Logger, repo output.OrderRepository) *SettlementProcessor {
	return &SettlementProcessor{log: log, repo: repo}
}

// Process validates a settlement notification. Unknown orders are terminal;
// an order that is not paid yet means the message raced ahead of the
// transaction and should be retried.
func (p *SettlementProcessor) Process(ctx context.Context, orderID uuid.UUID) error {
	order, err := p.repo.GetByUniqueID(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Paid {
		return fmt.Errorf("order %s not marked paid yet", orderID)
	}

	p.log.Info("settlement confirmed",
		zap.String("order_id", order.UniqueID.String()),
		zap.String("provider", order.Provider),
		zap.String("amount", order.Amount.String()))
	return nil
}

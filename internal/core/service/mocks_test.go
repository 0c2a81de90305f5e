package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/core"
	"github.com/stretchr/testify/mock"
)

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *core.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByUniqueID(ctx context.Context, id uuid.UUID) (*core.Order, error) {
	args := m.Called(ctx, id)
	if order := args.Get(0); order != nil {
		return order.(*core.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepository) GetByCustomData(ctx context.Context, customData string) (*core.Order, error) {
	args := m.Called(ctx, customData)
	if order := args.Get(0); order != nil {
		return order.(*core.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepository) SetCustomData(ctx context.Context, id uuid.UUID, customData string) error {
	args := m.Called(ctx, id, customData)
	return args.Error(0)
}

func (m *mockOrderRepository) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepository) RevertPaid(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOrderRepository) CreatePaymentDetail(ctx context.Context, detail *core.PaymentDetail) error {
	args := m.Called(ctx, detail)
	return args.Error(0)
}

func (m *mockOrderRepository) HasPaymentDetail(ctx context.Context, orderID uuid.UUID) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

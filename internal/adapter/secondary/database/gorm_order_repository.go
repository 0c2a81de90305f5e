package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/northpay/gateway/internal/constant/model/db"
	"github.com/northpay/gateway/internal/core"
	"github.com/northpay/gateway/internal/port/output"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormOrderRepository is a secondary adapter implementing the OrderRepository
// output port on PostgreSQL via GORM.
type GormOrderRepository struct {
	db *db.DB
}

// NewGormOrderRepository creates a new GORM-backed order repository.
func NewGormOrderRepository(database *db.DB) output.OrderRepository {
	return &GormOrderRepository{db: database}
}

// Create persists a new pending order and fills in the database-assigned
// reference id and timestamps.
func (r *GormOrderRepository) Create(ctx context.Context, order *core.Order) error {
	model := toOrderModel(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	order.ReferenceID = model.ReferenceID
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByUniqueID retrieves an order by its unique id.
func (r *GormOrderRepository) GetByUniqueID(ctx context.Context, id uuid.UUID) (*core.Order, error) {
	var model db.Order
	err := r.db.WithContext(ctx).First(&model, "unique_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return toDomainOrder(&model), nil
}

// GetByCustomData retrieves an order by its provider correlation key.
func (r *GormOrderRepository) GetByCustomData(ctx context.Context, customData string) (*core.Order, error) {
	var model db.Order
	err := r.db.WithContext(ctx).First(&model, "custom_data = ?", customData).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return toDomainOrder(&model), nil
}

// SetCustomData stores a provider-issued correlation key after initiation.
func (r *GormOrderRepository) SetCustomData(ctx context.Context, id uuid.UUID, customData string) error {
	result := r.db.WithContext(ctx).
		Model(&db.Order{}).
		Where("unique_id = ?", id).
		Update("custom_data", customData)
	if result.Error != nil {
		return fmt.Errorf("failed to set custom data: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return core.ErrOrderNotFound
	}
	return nil
}

// MarkPaid flips the paid flag with a conditional update, so exactly one of
// any number of concurrent callbacks performs the transition.
func (r *GormOrderRepository) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&db.Order{}).
		Where("unique_id = ? AND paid = ?", id, false).
		Update("paid", true)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// RevertPaid releases a paid claim after a failed post-claim charge.
func (r *GormOrderRepository) RevertPaid(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&db.Order{}).
		Where("unique_id = ? AND paid = ?", id, true).
		Update("paid", false)
	if result.Error != nil {
		return fmt.Errorf("failed to revert paid flag: %w", result.Error)
	}
	return nil
}

// CreatePaymentDetail writes the audit record for a verified payment.
func (r *GormOrderRepository) CreatePaymentDetail(ctx context.Context, detail *core.PaymentDetail) error {
	model := &db.PaymentDetail{
		OrderID:       detail.OrderID,
		CardNumber:    detail.CardNumber,
		PaymentMethod: detail.PaymentMethod,
		Amount:        detail.Amount,
		RawResponse:   datatypes.JSON(detail.RawResponse),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create payment detail: %w", err)
	}
	detail.CreatedAt = model.CreatedAt
	return nil
}

// HasPaymentDetail reports whether an audit record exists for the order.
func (r *GormOrderRepository) HasPaymentDetail(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.PaymentDetail{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check payment detail: %w", err)
	}
	return count > 0, nil
}

func toOrderModel(order *core.Order) *db.Order {
	return &db.Order{
		UniqueID:         order.UniqueID,
		ReferenceID:      order.ReferenceID,
		OrderName:        order.OrderName,
		Amount:           order.Amount,
		Paid:             order.Paid,
		SettingsSnapshot: datatypes.JSON(order.SettingsSnapshot),
		ProviderSnapshot: datatypes.JSON(order.ProviderSnapshot),
		CustomData:       order.CustomData,
		Provider:         order.Provider,
		IPAddress:        order.IPAddress,
		UserAgent:        order.UserAgent,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

func toDomainOrder(model *db.Order) *core.Order {
	return &core.Order{
		UniqueID:         model.UniqueID,
		ReferenceID:      model.ReferenceID,
		OrderName:        model.OrderName,
		Amount:           model.Amount,
		Paid:             model.Paid,
		SettingsSnapshot: []byte(model.SettingsSnapshot),
		ProviderSnapshot: []byte(model.ProviderSnapshot),
		CustomData:       model.CustomData,
		Provider:         model.Provider,
		IPAddress:        model.IPAddress,
		UserAgent:        model.UserAgent,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

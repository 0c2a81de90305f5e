package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order is the persistence model for payment orders.
type Order struct {
	UniqueID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReferenceID int64     `gorm:"autoIncrement;uniqueIndex"`

	OrderName string
	Amount    decimal.Decimal `gorm:"type:numeric(18,2)"`
	Paid      bool            `gorm:"not null;default:false"`

	SettingsSnapshot datatypes.JSON
	ProviderSnapshot datatypes.JSON

	CustomData string `gorm:"index"`
	Provider   string `gorm:"index"`
	IPAddress  string
	UserAgent  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// PaymentDetail is the audit record written on the first verified callback.
// One row per order, insert only.
type PaymentDetail struct {
	OrderID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	CardNumber    string
	PaymentMethod string
	Amount        string
	RawResponse   datatypes.JSON
	CreatedAt     time.Time
}

// TableName specifies the table name for GORM
func (PaymentDetail) TableName() string {
	return "payment_details"
}

// ProviderProfile stores a per-provider settings profile, the middle layer of
// the settings resolution chain.
type ProviderProfile struct {
	Provider  string `gorm:"primaryKey"`
	Settings  datatypes.JSON
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (ProviderProfile) TableName() string {
	return "provider_profiles"
}

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/northpay/gateway/internal/constant/model/db"
	"github.com/northpay/gateway/internal/port/output"
	"gorm.io/gorm"
)

// GormSettingsStore implements the SettingsStore output port: per-provider
// configuration profiles stored as JSON rows.
type GormSettingsStore struct {
	db *db.DB
}

// NewGormSettingsStore creates a new GORM-backed settings store.
func NewGormSettingsStore(database *db.DB) output.SettingsStore {
	return &GormSettingsStore{db: database}
}

// ProfileJSON returns the stored profile for a provider, or nil when no
// profile exists. Missing profiles are not an error; the resolution chain
// simply skips the layer.
func (s *GormSettingsStore) ProfileJSON(ctx context.Context, provider string) ([]byte, error) {
	var profile db.ProviderProfile
	err := s.db.WithContext(ctx).First(&profile, "provider = ?", provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings profile: %w", err)
	}
	return []byte(profile.Settings), nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsjuju-chat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository stores key/value settings
type SettingRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type GormSettingRepository struct {
	db *gorm.DB
}

func NewGormSettingRepository(db *gorm.DB) *GormSettingRepository {
	return &GormSettingRepository{db: db}
}

// Get returns the value for key; found is false when no row exists
func (r *GormSettingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Where(&models.Setting{Key: key}).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("repository.GetSetting: %w", err)
	}
	return setting.Value, true, nil
}

func (r *GormSettingRepository) Set(ctx context.Context, key, value string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.Setting{Key: key, Value: value, UpdatedAt: time.Now()}).Error
	if err != nil {
		return fmt.Errorf("repository.SetSetting: %w", err)
	}
	return nil
}

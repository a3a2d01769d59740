package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/deolexx/smart-home-secure/internal/models"
)

// latestLimit — сколько последних записей отдаём наружу.
const latestLimit = 100

type TelemetryStore struct{ db *gorm.DB }

func NewTelemetryStore(db *gorm.DB) *TelemetryStore { return &TelemetryStore{db: db} }

// Insert пишет одну запись телеметрии. Timestamp назначает сервер.
func (s *TelemetryStore) Insert(ctx context.Context, rec *models.DeviceTelemetry) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

// Latest — последние записи устройства, новые первыми.
func (s *TelemetryStore) Latest(ctx context.Context, devUUID string) ([]models.DeviceTelemetry, error) {
	var d models.Device
	err := s.db.WithContext(ctx).Where("uuid = ?", devUUID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var out []models.DeviceTelemetry
	err = s.db.WithContext(ctx).
		Where("device_id = ?", d.ID).
		Order("timestamp DESC, id DESC").
		Limit(latestLimit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

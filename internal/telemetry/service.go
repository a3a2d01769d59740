package telemetry

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/deolexx/smart-home-secure/internal/logs"
	"github.com/deolexx/smart-home-secure/internal/models"
	"github.com/deolexx/smart-home-secure/internal/repo"
)

// Service — конвейер приёма телеметрии с моста.
type Service struct {
	devices *repo.DeviceStore
	store   *repo.TelemetryStore
	log     *logrus.Entry
}

func NewService(devices *repo.DeviceStore, store *repo.TelemetryStore) *Service {
	return &Service{
		devices: devices,
		store:   store,
		log:     logs.With("telemetry"),
	}
}

// Ingest сохраняет сообщение устройства. Незнакомый client id — сообщение
// игнорируется (авто-регистрация — забота MarkOnline, здесь её нет).
// Нечитаемый payload — не повод терять данные: запись уходит в БД
// с пустыми типизированными полями и исходным текстом.
func (s *Service) Ingest(ctx context.Context, clientID string, raw []byte) error {
	d, err := s.devices.GetByClientID(ctx, clientID)
	if errors.Is(err, repo.ErrNotFound) {
		s.log.Debugf("telemetry from unknown client %q ignored", clientID)
		return nil
	}
	if err != nil {
		return err
	}

	p := Parse(raw)
	if !p.Parsed {
		s.log.Debugf("unparsable telemetry from %s, storing raw only", clientID)
	}
	rec := models.DeviceTelemetry{
		DeviceID:    d.ID,
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
		Status:      p.Status,
		RawJSON:     string(raw),
	}
	return s.store.Insert(ctx, &rec)
}

// Latest — последние записи устройства (новые первыми).
func (s *Service) Latest(ctx context.Context, devUUID string) ([]models.DeviceTelemetry, error) {
	return s.store.Latest(ctx, devUUID)
}

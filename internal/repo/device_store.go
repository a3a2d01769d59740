package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deolexx/smart-home-secure/internal/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("device not accessible")
	ErrConflict   = errors.New("device already claimed")
	ErrNoClientID = errors.New("device has no mqtt client id")
)

type DeviceStore struct{ db *gorm.DB }

func NewDeviceStore(db *gorm.DB) *DeviceStore { return &DeviceStore{db: db} }

type CreateDeviceInput struct {
	Name         string
	Type         string
	MQTTClientID string
}

// -------- CRUD --------

// Create заводит устройство вручную: всегда OFFLINE и без владельца.
func (s *DeviceStore) Create(ctx context.Context, in CreateDeviceInput) (*models.Device, error) {
	typ := strings.ToUpper(strings.TrimSpace(in.Type))
	if typ == "" {
		typ = models.DeviceTypeSensor
	}
	d := models.Device{
		UUID:         uuid.NewString(),
		Name:         in.Name,
		Type:         typ,
		Status:       models.DeviceStatusOffline,
		MQTTClientID: strings.TrimSpace(in.MQTTClientID),
	}
	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeviceStore) Get(ctx context.Context, devUUID string) (*models.Device, error) {
	var d models.Device
	err := s.db.WithContext(ctx).Where("uuid = ?", devUUID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeviceStore) GetByClientID(ctx context.Context, clientID string) (*models.Device, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrNotFound
	}
	var d models.Device
	err := s.db.WithContext(ctx).Where("mqtt_client_id = ?", clientID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetForSubject — чтение с проверкой владения: админ видит всё, остальные —
// только свободные устройства и свои.
func (s *DeviceStore) GetForSubject(ctx context.Context, devUUID, subject string, isAdmin bool) (*models.Device, error) {
	d, err := s.Get(ctx, devUUID)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return d, nil
	}
	if d.OwnerSubject == nil || *d.OwnerSubject == subject {
		return d, nil
	}
	return nil, ErrForbidden
}

// ListForSubject — список по тому же правилу владения, что и GetForSubject.
func (s *DeviceStore) ListForSubject(ctx context.Context, subject string, isAdmin bool) ([]models.Device, error) {
	var out []models.Device
	q := s.db.WithContext(ctx).Order("id")
	if !isAdmin {
		q = q.Where("owner_subject IS NULL OR owner_subject = ?", subject)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type UpdateDeviceInput struct {
	Name string
	Type string
}

// Update меняет только пользовательские поля. Статус и владелец отсюда
// недостижимы: статусом управляет мост, владельцем — claim.
func (s *DeviceStore) Update(ctx context.Context, devUUID string, in UpdateDeviceInput) (*models.Device, error) {
	d, err := s.Get(ctx, devUUID)
	if err != nil {
		return nil, err
	}
	if n := strings.TrimSpace(in.Name); n != "" {
		d.Name = n
	}
	if t := strings.ToUpper(strings.TrimSpace(in.Type)); t != "" {
		d.Type = t
	}
	if err := s.db.WithContext(ctx).Save(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DeviceStore) Delete(ctx context.Context, devUUID string) error {
	res := s.db.WithContext(ctx).Where("uuid = ?", devUUID).Delete(&models.Device{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// -------- Сигналы моста --------

// MarkOnline поднимает устройство по client id; незнакомый client id —
// авто-регистрация: имя по конвенции, тип SENSOR, без владельца.
func (s *DeviceStore) MarkOnline(ctx context.Context, clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("mqtt_client_id = ?", clientID).
		Updates(map[string]any{
			"status":     models.DeviceStatusOnline,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	d := models.Device{
		UUID:         uuid.NewString(),
		Name:         "Auto-" + clientID,
		Type:         models.DeviceTypeSensor,
		Status:       models.DeviceStatusOnline,
		MQTTClientID: clientID,
	}
	return s.db.WithContext(ctx).Create(&d).Error
}

// MarkOffline гасит устройство. Авто-регистрации здесь нет.
func (s *DeviceStore) MarkOffline(ctx context.Context, clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Device{}).
		Where("mqtt_client_id = ?", clientID).
		Updates(map[string]any{
			"status":     models.DeviceStatusOffline,
			"updated_at": time.Now().UTC(),
		}).Error
}

// -------- Claim --------

// Claim привязывает свободное устройство к subject. Проверка и запись —
// один условный UPDATE (owner_subject IS NULL), поэтому из двух
// конкурентных claim ровно один получает строку, второй — ErrConflict.
func (s *DeviceStore) Claim(ctx context.Context, devUUID, subject string) (*models.Device, error) {
	res := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("uuid = ? AND owner_subject IS NULL", devUUID).
		Update("owner_subject", subject)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// либо устройства нет, либо оно уже занято
		if _, err := s.Get(ctx, devUUID); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return s.Get(ctx, devUUID)
}

package models

import (
	"time"
)

// DeviceTelemetry — одна запись телеметрии. Неизменяемая после записи.
// Типизированные поля опциональны: если полезная нагрузка не распарсилась,
// остаётся только RawJSON (сообщения не теряем).
type DeviceTelemetry struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	DeviceID  uint      `gorm:"index;not null" json:"-"`
	Timestamp time.Time `gorm:"index;not null;autoCreateTime" json:"timestamp"`

	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Status      *string  `gorm:"size:64" json:"status,omitempty"`

	// Исходная полезная нагрузка как есть, всегда заполнена.
	RawJSON string `gorm:"column:raw_json;type:text;not null" json:"raw_json"`
}

func (DeviceTelemetry) TableName() string { return "device_telemetry" }

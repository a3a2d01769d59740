package models

import (
	"time"
)

// Статусы подключения устройства. Меняются только мостом (телеметрия /
// last-will) либо выставляются при создании — но не через общий update.
const (
	DeviceStatusOnline  = "ONLINE"
	DeviceStatusOffline = "OFFLINE"
)

// Типы устройств.
const (
	DeviceTypeSensor = "SENSOR"
	DeviceTypeSwitch = "SWITCH"
	DeviceTypeCamera = "CAMERA"
)

type Device struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UUID   string `gorm:"uniqueIndex;size:64;not null" json:"uuid"`
	Name   string `gorm:"size:128;not null" json:"name"`
	Type   string `gorm:"size:32;not null" json:"type"`
	Status string `gorm:"size:16;not null" json:"status"`

	// Идентификатор, под которым устройство ходит в MQTT-брокер.
	// Пустая строка — устройство ещё не привязано к транспорту.
	MQTTClientID string `gorm:"column:mqtt_client_id;index;size:128" json:"mqtt_client_id,omitempty"`

	// Владелец — subject из Keycloak. nil — устройство свободно.
	// Заполняется ровно один раз через claim.
	OwnerSubject *string `gorm:"size:64;index" json:"owner_subject,omitempty"`
}

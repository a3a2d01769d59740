package commands

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/deolexx/smart-home-secure/internal/models"
	"github.com/deolexx/smart-home-secure/internal/repo"
)

// ErrBadUnit — единица измерения не из допустимого набора.
var ErrBadUnit = errors.New("unit must be C or F")

// Publisher — то, что диспетчеру нужно от моста: отправить и забыть.
type Publisher interface {
	Publish(clientID string, payload []byte)
}

// Dispatcher формирует исходящие команды и отдаёт их мосту.
// Подтверждения доставки нет: publish асинхронный, ответ клиенту — 202.
type Dispatcher struct {
	devices *repo.DeviceStore
	pub     Publisher
}

func NewDispatcher(devices *repo.DeviceStore, pub Publisher) *Dispatcher {
	return &Dispatcher{devices: devices, pub: pub}
}

// SendRaw публикует произвольную команду устройству по его uuid.
func (d *Dispatcher) SendRaw(ctx context.Context, devUUID string, payload []byte) error {
	dev, err := d.devices.Get(ctx, devUUID)
	if err != nil {
		return err
	}
	return d.publish(dev, payload)
}

type unitCommand struct {
	Unit string `json:"unit"`
}

// NormalizeUnit валидирует единицу температуры без оглядки на регистр
// и приводит к верхнему: "c" → "C".
func NormalizeUnit(unit string) (string, error) {
	u := strings.ToUpper(strings.TrimSpace(unit))
	if u != "C" && u != "F" {
		return "", ErrBadUnit
	}
	return u, nil
}

// SendTemperatureUnit шлёт команду смены единиц по uuid устройства.
// Невалидная единица отсекается до любого обращения к мосту.
func (d *Dispatcher) SendTemperatureUnit(ctx context.Context, devUUID, unit string) error {
	payload, err := unitPayload(unit)
	if err != nil {
		return err
	}
	dev, err := d.devices.Get(ctx, devUUID)
	if err != nil {
		return err
	}
	return d.publish(dev, payload)
}

// SendTemperatureUnitByClientID — то же, но адресуем по транспортному id.
func (d *Dispatcher) SendTemperatureUnitByClientID(ctx context.Context, clientID, unit string) error {
	payload, err := unitPayload(unit)
	if err != nil {
		return err
	}
	dev, err := d.devices.GetByClientID(ctx, clientID)
	if err != nil {
		return err
	}
	return d.publish(dev, payload)
}

func unitPayload(unit string) ([]byte, error) {
	u, err := NormalizeUnit(unit)
	if err != nil {
		return nil, err
	}
	return json.Marshal(unitCommand{Unit: u})
}

func (d *Dispatcher) publish(dev *models.Device, payload []byte) error {
	if strings.TrimSpace(dev.MQTTClientID) == "" {
		return repo.ErrNoClientID
	}
	d.pub.Publish(dev.MQTTClientID, payload)
	return nil
}

package telemetry

import (
	"encoding/json"
	"strings"
)

// ParsedPayload — результат разбора полезной нагрузки. Явный тип вместо
// ошибок как control flow: при Parsed=false типизированные поля пустые,
// но запись всё равно будет сохранена с исходным payload'ом.
type ParsedPayload struct {
	Temperature *float64
	Humidity    *float64
	Status      *string
	Parsed      bool
}

// Parse пытается вытащить известные поля из JSON-объекта телеметрии.
// Лишние поля (unit, ts, ...) игнорируются. Невалидный JSON — не ошибка.
func Parse(raw []byte) ParsedPayload {
	var fields struct {
		Temperature *float64 `json:"temperature"`
		Humidity    *float64 `json:"humidity"`
		Status      *string  `json:"status"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ParsedPayload{}
	}
	return ParsedPayload{
		Temperature: fields.Temperature,
		Humidity:    fields.Humidity,
		Status:      fields.Status,
		Parsed:      true,
	}
}

// SignalsOffline — признак last-will сообщения: устройство публикует
// {"status":"offline"} в свой же топик телеметрии перед отключением.
func SignalsOffline(raw []byte) bool {
	p := Parse(raw)
	return p.Status != nil && strings.EqualFold(*p.Status, "offline")
}

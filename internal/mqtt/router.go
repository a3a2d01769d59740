package mqtt

import (
	"strings"
)

// ParseTelemetryTopic выделяет client id из топика телеметрии.
// Ожидаемая форма: devices/{clientId}/telemetry — client id берётся
// по фиксированной позиции после разбиения по "/".
// Кривые топики (мало сегментов, пустой client id) — ok=false.
func ParseTelemetryTopic(topic string) (clientID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

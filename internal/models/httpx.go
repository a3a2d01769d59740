package models

import (
	"encoding/json"
	"net/http"
)

// Problem — ответ об ошибке в стиле RFC 7807. Единый формат для всего API,
// включая 404/405 на несуществующих маршрутах и ответы recoverer'а.
type Problem struct {
	Type     string `json:"type,omitempty"` // URL с описанием типа проблемы
	Title    string `json:"title"`          // краткое название
	Status   int    `json:"status"`         // HTTP код
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Extra    any    `json:"extra,omitempty"` // произвольные поля (map/struct)
}

// WriteProblem пишет problem-ответ с кодом status.
func WriteProblem(w http.ResponseWriter, status int, title, detail string, extra any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  title,
		Status: status,
		Detail: detail,
		Extra:  extra,
	})
}

// WriteJSON пишет успешный JSON-ответ с кодом status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

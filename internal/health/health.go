package health

import (
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/deolexx/smart-home-secure/internal/models"
)

// RegisterRoutes вешает liveness и readiness. Readiness требует живую БД;
// состояние брокера в ответе информационное — без брокера хаб продолжает
// обслуживать API, деградирует только доставка команд и телеметрии.
func RegisterRoutes(r *mux.Router, db *gorm.DB, brokerUp func() bool) {
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		status := map[string]string{"db": "ok", "broker": "down"}
		if brokerUp != nil && brokerUp() {
			status["broker"] = "connected"
		}
		code := http.StatusOK
		switch {
		case db == nil:
			status["db"] = "not configured"
			code = http.StatusServiceUnavailable
		default:
			if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
				status["db"] = "unreachable"
				code = http.StatusServiceUnavailable
			}
		}
		models.WriteJSON(w, code, status)
	}).Methods(http.MethodGet)
}

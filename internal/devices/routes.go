package devices

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/deolexx/smart-home-secure/internal/auth"
)

// RegisterRoutes вешает API устройств. Чтение и claim доступны ADMIN и USER
// (с фильтрацией по владельцу в сторе), всё пишущее и команды — только ADMIN.
func RegisterRoutes(r *mux.Router, h *Handler) {
	admin := auth.RequireAuthority(auth.AuthorityAdmin)
	anyUser := auth.RequireAuthority(auth.AuthorityAdmin, auth.AuthorityUser)

	r.Handle("/api/devices", anyUser(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	r.Handle("/api/devices", admin(http.HandlerFunc(h.Create))).Methods(http.MethodPost)

	// by-client раньше {uuid}, чтобы не конкурировать с ним при матчинге
	r.Handle("/api/devices/by-client/{clientId}/temperature-unit",
		admin(http.HandlerFunc(h.SetTemperatureUnitByClientID))).Methods(http.MethodPost)

	r.Handle("/api/devices/{uuid}", anyUser(http.HandlerFunc(h.Get))).Methods(http.MethodGet)
	r.Handle("/api/devices/{uuid}", admin(http.HandlerFunc(h.Update))).Methods(http.MethodPut)
	r.Handle("/api/devices/{uuid}", admin(http.HandlerFunc(h.Delete))).Methods(http.MethodDelete)
	r.Handle("/api/devices/{uuid}/claim", anyUser(http.HandlerFunc(h.Claim))).Methods(http.MethodPost)
	r.Handle("/api/devices/{uuid}/commands", admin(http.HandlerFunc(h.SendCommand))).Methods(http.MethodPost)
	r.Handle("/api/devices/{uuid}/temperature-unit",
		admin(http.HandlerFunc(h.SetTemperatureUnit))).Methods(http.MethodPost)
}

package telemetryapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/deolexx/smart-home-secure/internal/auth"
	"github.com/deolexx/smart-home-secure/internal/models"
	"github.com/deolexx/smart-home-secure/internal/repo"
	"github.com/deolexx/smart-home-secure/internal/telemetry"
)

type Handler struct {
	devices *repo.DeviceStore
	svc     *telemetry.Service
}

func NewHandler(devices *repo.DeviceStore, svc *telemetry.Service) *Handler {
	return &Handler{devices: devices, svc: svc}
}

// Latest — последние записи телеметрии устройства. Перед выдачей — та же
// проверка владения, что и у чтения устройства.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	devUUID := mux.Vars(r)["uuid"]
	p := auth.PrincipalFromContext(r.Context())
	if _, err := h.devices.GetForSubject(r.Context(), devUUID, p.Subject, p.IsAdmin()); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.svc.Latest(r.Context(), devUUID)
	if err != nil {
		writeError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, out)
}

func RegisterRoutes(r *mux.Router, h *Handler) {
	anyUser := auth.RequireAuthority(auth.AuthorityAdmin, auth.AuthorityUser)
	r.Handle("/api/telemetry/devices/{uuid}/latest",
		anyUser(http.HandlerFunc(h.Latest))).Methods(http.MethodGet)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "device not found", nil)
	case errors.Is(err, repo.ErrForbidden):
		models.WriteProblem(w, http.StatusForbidden, "Forbidden", "device not accessible", nil)
	default:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
	}
}

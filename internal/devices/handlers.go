package devices

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/deolexx/smart-home-secure/internal/auth"
	"github.com/deolexx/smart-home-secure/internal/commands"
	"github.com/deolexx/smart-home-secure/internal/models"
	"github.com/deolexx/smart-home-secure/internal/repo"
)

type Handler struct {
	store      *repo.DeviceStore
	dispatcher *commands.Dispatcher
}

func NewHandler(store *repo.DeviceStore, dispatcher *commands.Dispatcher) *Handler {
	return &Handler{store: store, dispatcher: dispatcher}
}

type createDeviceRequest struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	MQTTClientID string `json:"mqtt_client_id"`
}

type updateDeviceRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type unitCommandRequest struct {
	Unit string `json:"unit"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	out, err := h.store.ListForSubject(r.Context(), p.Subject, p.IsAdmin())
	if err != nil {
		writeError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "name is required", nil)
		return
	}
	d, err := h.store.Create(r.Context(), repo.CreateDeviceInput{
		Name:         req.Name,
		Type:         req.Type,
		MQTTClientID: req.MQTTClientID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/devices/"+d.UUID)
	models.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	d, err := h.store.GetForSubject(r.Context(), mux.Vars(r)["uuid"], p.Subject, p.IsAdmin())
	if err != nil {
		writeError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
		return
	}
	d, err := h.store.Update(r.Context(), mux.Vars(r)["uuid"], repo.UpdateDeviceInput{
		Name: req.Name,
		Type: req.Type,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), mux.Vars(r)["uuid"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Claim — одноразовая привязка свободного устройства к вызывающему.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	d, err := h.store.Claim(r.Context(), mux.Vars(r)["uuid"], p.Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, d)
}

// SendCommand — произвольная команда устройству. Публикация асинхронная,
// поэтому всегда 202 без подтверждения доставки.
func (h *Handler) SendCommand(w http.ResponseWriter, r *http.Request) {
	payload, err := readBody(r)
	if err != nil || len(payload) == 0 {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "command payload is required", nil)
		return
	}
	if err := h.dispatcher.SendRaw(r.Context(), mux.Vars(r)["uuid"], payload); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) SetTemperatureUnit(w http.ResponseWriter, r *http.Request) {
	unit, ok := extractUnit(w, r)
	if !ok {
		return
	}
	if err := h.dispatcher.SendTemperatureUnit(r.Context(), mux.Vars(r)["uuid"], unit); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) SetTemperatureUnitByClientID(w http.ResponseWriter, r *http.Request) {
	unit, ok := extractUnit(w, r)
	if !ok {
		return
	}
	if err := h.dispatcher.SendTemperatureUnitByClientID(r.Context(), mux.Vars(r)["clientId"], unit); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// extractUnit берёт единицу из тела ({"unit":"C"}) либо из query-параметра
// unit; тело приоритетнее. false — ответ уже записан.
func extractUnit(w http.ResponseWriter, r *http.Request) (string, bool) {
	unit := ""
	var req unitCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Unit != "" {
		unit = req.Unit
	}
	if unit == "" {
		unit = r.URL.Query().Get("unit")
	}
	if strings.TrimSpace(unit) == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "unit is required", nil)
		return "", false
	}
	return unit, true
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	// 64KiB за глаза для команды устройству
	return io.ReadAll(io.LimitReader(r.Body, 64<<10))
}

// writeError транслирует ошибки стора/диспетчера в problem-ответы.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "device not found", nil)
	case errors.Is(err, repo.ErrForbidden):
		models.WriteProblem(w, http.StatusForbidden, "Forbidden", "device not accessible", nil)
	case errors.Is(err, repo.ErrConflict):
		models.WriteProblem(w, http.StatusConflict, "Conflict", "device already claimed", nil)
	case errors.Is(err, repo.ErrNoClientID):
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "device has no mqtt client id", nil)
	case errors.Is(err, commands.ErrBadUnit):
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
	default:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
	}
}

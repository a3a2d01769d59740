package authapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/deolexx/smart-home-secure/internal/auth"
	"github.com/deolexx/smart-home-secure/internal/keycloak"
	"github.com/deolexx/smart-home-secure/internal/models"
)

// TestCredentials — статическая тестовая учётка для /api/test/**.
type TestCredentials struct {
	Token    string
	Username string
	Password string
}

type Handler struct {
	kc   *keycloak.Client
	test TestCredentials
}

func NewHandler(kc *keycloak.Client, test TestCredentials) *Handler {
	return &Handler{kc: kc, test: test}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register создаёт пользователя в Keycloak с ролью USER.
// Сбой провайдера — 502, это не «плохие креды».
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "username and password are required", nil)
		return
	}
	if err := h.kc.RegisterUser(r.Context(), req.Username, req.Email, req.Password, false); err != nil {
		writeKeycloakError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Login — парольный grant, токен отдаём клиенту как есть.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
		return
	}
	tok, err := h.kc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeKeycloakError(w, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, tok)
}

// TestLogin — тестовая авторизация: статический логин/пароль в обмен на
// статический bearer. Живёт только на тестовой поверхности.
func (h *Handler) TestLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid request body", nil)
		return
	}
	if h.test.Token == "" || req.Username != h.test.Username || req.Password != h.test.Password {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{
		"token":     h.test.Token,
		"tokenType": "Bearer",
	})
}

// TestDevice — замоканное устройство для проверки тестового токена.
func (h *Handler) TestDevice(w http.ResponseWriter, r *http.Request) {
	models.WriteJSON(w, http.StatusOK, models.Device{
		UUID:         "00000000-0000-0000-0000-000000000001",
		Name:         "Test device",
		Type:         models.DeviceTypeSensor,
		Status:       models.DeviceStatusOnline,
		MQTTClientID: "test-device-001",
		UpdatedAt:    time.Now().UTC(),
	})
}

func RegisterRoutes(r *mux.Router, h *Handler) {
	// /api/auth/** — публичные: аутентификацию делает Keycloak
	r.HandleFunc("/api/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)

	// тестовая поверхность
	r.HandleFunc("/api/test/auth/login", h.TestLogin).Methods(http.MethodPost)
	anyUser := auth.RequireAuthority(auth.AuthorityAdmin, auth.AuthorityUser)
	r.Handle("/api/test/device", anyUser(http.HandlerFunc(h.TestDevice))).Methods(http.MethodGet)
}

func writeKeycloakError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, keycloak.ErrInvalidCredentials):
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials", nil)
	case errors.Is(err, keycloak.ErrUserExists):
		models.WriteProblem(w, http.StatusConflict, "Conflict", err.Error(), nil)
	case errors.Is(err, keycloak.ErrUpstream):
		models.WriteProblem(w, http.StatusBadGateway, "Bad Gateway", "identity provider unavailable", nil)
	default:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
	}
}

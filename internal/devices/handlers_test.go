package devices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/deolexx/smart-home-secure/internal/auth"
	"github.com/deolexx/smart-home-secure/internal/commands"
	"github.com/deolexx/smart-home-secure/internal/models"
	"github.com/deolexx/smart-home-secure/internal/repo"
)

// headerResolver строит principal из тестовых заголовков запроса.
type headerResolver struct{}

func (headerResolver) Name() string { return "test-header" }

func (headerResolver) Resolve(r *http.Request) *auth.Principal {
	sub := r.Header.Get("X-Test-Subject")
	if sub == "" {
		return nil
	}
	return &auth.Principal{
		Subject:     sub,
		Username:    sub,
		Authorities: strings.Split(r.Header.Get("X-Test-Authorities"), ","),
	}
}

type capturePublisher struct {
	clientID string
	payload  []byte
	calls    int
}

func (c *capturePublisher) Publish(clientID string, payload []byte) {
	c.clientID = clientID
	c.payload = payload
	c.calls++
}

type apiEnv struct {
	router *mux.Router
	store  *repo.DeviceStore
	pub    *capturePublisher
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Device{}))

	store := repo.NewDeviceStore(db)
	pub := &capturePublisher{}
	r := mux.NewRouter()
	r.Use(auth.Middleware(auth.NewChain(headerResolver{})))
	RegisterRoutes(r, NewHandler(store, commands.NewDispatcher(store, pub)))
	return &apiEnv{router: r, store: store, pub: pub}
}

func (e *apiEnv) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func asAdmin() map[string]string {
	return map[string]string{"X-Test-Subject": "admin-sub", "X-Test-Authorities": "ROLE_ADMIN"}
}

func asUser(sub string) map[string]string {
	return map[string]string{"X-Test-Subject": sub, "X-Test-Authorities": "ROLE_USER"}
}

func TestCreateDevice(t *testing.T) {
	e := newAPIEnv(t)

	w := e.do(http.MethodPost, "/api/devices",
		`{"name":"Hall sensor","type":"sensor","mqtt_client_id":"sens-1"}`, asAdmin())
	require.Equal(t, http.StatusCreated, w.Code)

	var d models.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.NotEmpty(t, d.UUID)
	assert.Equal(t, "/api/devices/"+d.UUID, w.Header().Get("Location"))
	assert.Equal(t, models.DeviceStatusOffline, d.Status)
}

func TestCreateDeviceValidation(t *testing.T) {
	e := newAPIEnv(t)

	w := e.do(http.MethodPost, "/api/devices", `{"type":"sensor"}`, asAdmin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	w = e.do(http.MethodPost, "/api/devices", `{broken`, asAdmin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthGuards(t *testing.T) {
	e := newAPIEnv(t)

	// без учётных данных — 401
	w := e.do(http.MethodGet, "/api/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// USER не может создавать
	w = e.do(http.MethodPost, "/api/devices", `{"name":"x"}`, asUser("alice"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// USER может читать список
	w = e.do(http.MethodGet, "/api/devices", "", asUser("alice"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListScopedByOwner(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()

	free, err := e.store.Create(ctx, repo.CreateDeviceInput{Name: "Free"})
	require.NoError(t, err)
	theirs, err := e.store.Create(ctx, repo.CreateDeviceInput{Name: "Theirs"})
	require.NoError(t, err)
	_, err = e.store.Claim(ctx, theirs.UUID, "bob")
	require.NoError(t, err)

	w := e.do(http.MethodGet, "/api/devices", "", asUser("alice"))
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, free.UUID, list[0].UUID)

	// админ видит всё
	w = e.do(http.MethodGet, "/api/devices", "", asAdmin())
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	// чужое устройство точечно — 403
	w = e.do(http.MethodGet, "/api/devices/"+theirs.UUID, "", asUser("alice"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClaimFlow(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()

	d, err := e.store.Create(ctx, repo.CreateDeviceInput{Name: "Lamp"})
	require.NoError(t, err)

	w := e.do(http.MethodPost, "/api/devices/"+d.UUID+"/claim", "", asUser("alice"))
	require.Equal(t, http.StatusOK, w.Code)
	var claimed models.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &claimed))
	require.NotNil(t, claimed.OwnerSubject)
	assert.Equal(t, "alice", *claimed.OwnerSubject)

	// повторный claim другим пользователем — конфликт
	w = e.do(http.MethodPost, "/api/devices/"+d.UUID+"/claim", "", asUser("bob"))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodPost, "/api/devices/missing/claim", "", asUser("bob"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateAndDelete(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()

	d, err := e.store.Create(ctx, repo.CreateDeviceInput{Name: "Old"})
	require.NoError(t, err)

	w := e.do(http.MethodPut, "/api/devices/"+d.UUID, `{"name":"New","type":"switch"}`, asAdmin())
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, models.DeviceTypeSwitch, got.Type)

	w = e.do(http.MethodDelete, "/api/devices/"+d.UUID, "", asAdmin())
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(http.MethodDelete, "/api/devices/"+d.UUID, "", asAdmin())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendCommand(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()

	d, err := e.store.Create(ctx, repo.CreateDeviceInput{Name: "Switch", MQTTClientID: "sw-1"})
	require.NoError(t, err)

	w := e.do(http.MethodPost, "/api/devices/"+d.UUID+"/commands", `{"power":"on"}`, asAdmin())
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "sw-1", e.pub.clientID)
	assert.Equal(t, `{"power":"on"}`, string(e.pub.payload))

	// пустое тело — 400, публикации нет
	calls := e.pub.calls
	w = e.do(http.MethodPost, "/api/devices/"+d.UUID+"/commands", "", asAdmin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, calls, e.pub.calls)
}

func TestSendCommandNoClientID(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()

	d, err := e.store.Create(ctx, repo.CreateDeviceInput{Name: "Orphan"})
	require.NoError(t, err)

	w := e.do(http.MethodPost, "/api/devices/"+d.UUID+"/commands", `{"x":1}`, asAdmin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, e.pub.calls)
}

func TestSetTemperatureUnit(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()

	d, err := e.store.Create(ctx, repo.CreateDeviceInput{Name: "Thermo", MQTTClientID: "th-1"})
	require.NoError(t, err)

	w := e.do(http.MethodPost, "/api/devices/"+d.UUID+"/temperature-unit", `{"unit":"c"}`, asAdmin())
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, `{"unit":"C"}`, string(e.pub.payload))

	// единица из query, когда тела нет
	w = e.do(http.MethodPost, "/api/devices/"+d.UUID+"/temperature-unit?unit=f", "", asAdmin())
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, `{"unit":"F"}`, string(e.pub.payload))

	w = e.do(http.MethodPost, "/api/devices/"+d.UUID+"/temperature-unit", `{"unit":"x"}`, asAdmin())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/devices/"+d.UUID+"/temperature-unit", "", asAdmin())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetTemperatureUnitByClientID(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()

	_, err := e.store.Create(ctx, repo.CreateDeviceInput{Name: "Thermo", MQTTClientID: "th-2"})
	require.NoError(t, err)

	w := e.do(http.MethodPost, "/api/devices/by-client/th-2/temperature-unit?unit=C", "", asAdmin())
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "th-2", e.pub.clientID)

	w = e.do(http.MethodPost, "/api/devices/by-client/unknown/temperature-unit?unit=C", "", asAdmin())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func get(r *mux.Router, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveness(t *testing.T) {
	r := mux.NewRouter()
	RegisterRoutes(r, nil, nil)
	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
}

func TestReadiness(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)

	brokerUp := false
	r := mux.NewRouter()
	RegisterRoutes(r, db, func() bool { return brokerUp })

	w := get(r, "/readyz")
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "ok", status["db"])
	assert.Equal(t, "down", status["broker"])

	// лежащий брокер не роняет readiness, подключенный — отражается
	brokerUp = true
	w = get(r, "/readyz")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "connected", status["broker"])
}

func TestReadinessWithoutDB(t *testing.T) {
	r := mux.NewRouter()
	RegisterRoutes(r, nil, nil)
	w := get(r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

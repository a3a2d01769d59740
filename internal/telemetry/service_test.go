package telemetry

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/deolexx/smart-home-secure/internal/models"
	"github.com/deolexx/smart-home-secure/internal/repo"
)

func newTestService(t *testing.T) (*Service, *repo.DeviceStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Device{}, &models.DeviceTelemetry{}))
	ds := repo.NewDeviceStore(db)
	return NewService(ds, repo.NewTelemetryStore(db)), ds
}

func TestIngest(t *testing.T) {
	svc, ds := newTestService(t)
	ctx := context.Background()

	dev, err := ds.Create(ctx, repo.CreateDeviceInput{Name: "Sensor", MQTTClientID: "sens-1"})
	require.NoError(t, err)

	raw := `{"temperature":21.5,"humidity":40.0,"status":"OK"}`
	require.NoError(t, svc.Ingest(ctx, "sens-1", []byte(raw)))

	recs, err := svc.Latest(ctx, dev.UUID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Temperature)
	assert.Equal(t, 21.5, *recs[0].Temperature)
	require.NotNil(t, recs[0].Humidity)
	assert.Equal(t, 40.0, *recs[0].Humidity)
	require.NotNil(t, recs[0].Status)
	assert.Equal(t, "OK", *recs[0].Status)
	assert.Equal(t, raw, recs[0].RawJSON)
	assert.False(t, recs[0].Timestamp.IsZero())
}

// Нечитаемый payload сохраняется как есть, типизированные поля пустые.
func TestIngestMalformedPayload(t *testing.T) {
	svc, ds := newTestService(t)
	ctx := context.Background()

	dev, err := ds.Create(ctx, repo.CreateDeviceInput{Name: "Sensor", MQTTClientID: "sens-1"})
	require.NoError(t, err)

	require.NoError(t, svc.Ingest(ctx, "sens-1", []byte(`{not-json`)))

	recs, err := svc.Latest(ctx, dev.UUID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].Temperature)
	assert.Nil(t, recs[0].Humidity)
	assert.Nil(t, recs[0].Status)
	assert.Equal(t, `{not-json`, recs[0].RawJSON)
}

// Телеметрия от незнакомого клиента молча отбрасывается.
func TestIngestUnknownClient(t *testing.T) {
	svc, ds := newTestService(t)
	ctx := context.Background()

	dev, err := ds.Create(ctx, repo.CreateDeviceInput{Name: "Sensor", MQTTClientID: "sens-1"})
	require.NoError(t, err)

	require.NoError(t, svc.Ingest(ctx, "stranger", []byte(`{"temperature":1}`)))

	recs, err := svc.Latest(ctx, dev.UUID)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLatestOrderAndLimit(t *testing.T) {
	svc, ds := newTestService(t)
	ctx := context.Background()

	dev, err := ds.Create(ctx, repo.CreateDeviceInput{Name: "Sensor", MQTTClientID: "sens-1"})
	require.NoError(t, err)

	for i := 0; i < 105; i++ {
		payload := fmt.Sprintf(`{"temperature":%d}`, i)
		require.NoError(t, svc.Ingest(ctx, "sens-1", []byte(payload)))
	}

	recs, err := svc.Latest(ctx, dev.UUID)
	require.NoError(t, err)
	require.Len(t, recs, 100)
	// новые первыми
	require.NotNil(t, recs[0].Temperature)
	assert.Equal(t, float64(104), *recs[0].Temperature)
	require.NotNil(t, recs[99].Temperature)
	assert.Equal(t, float64(5), *recs[99].Temperature)
}

func TestLatestUnknownDevice(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Latest(context.Background(), "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p := Parse([]byte(`{"temperature":21.5,"humidity":40.0,"status":"OK"}`))
	require.True(t, p.Parsed)
	require.NotNil(t, p.Temperature)
	assert.Equal(t, 21.5, *p.Temperature)
	require.NotNil(t, p.Humidity)
	assert.Equal(t, 40.0, *p.Humidity)
	require.NotNil(t, p.Status)
	assert.Equal(t, "OK", *p.Status)
}

func TestParsePartialAndExtraFields(t *testing.T) {
	p := Parse([]byte(`{"temperature":-3.2,"unit":"C","ts":123}`))
	require.True(t, p.Parsed)
	require.NotNil(t, p.Temperature)
	assert.Equal(t, -3.2, *p.Temperature)
	assert.Nil(t, p.Humidity)
	assert.Nil(t, p.Status)
}

func TestParseInvalidJSON(t *testing.T) {
	for _, raw := range []string{`{not-json`, ``, `[1,2]`, `"str"`} {
		p := Parse([]byte(raw))
		assert.False(t, p.Parsed, "payload %q", raw)
		assert.Nil(t, p.Temperature)
		assert.Nil(t, p.Humidity)
		assert.Nil(t, p.Status)
	}
}

func TestSignalsOffline(t *testing.T) {
	assert.True(t, SignalsOffline([]byte(`{"status":"offline"}`)))
	assert.True(t, SignalsOffline([]byte(`{"status":"OFFLINE"}`)))
	assert.False(t, SignalsOffline([]byte(`{"status":"OK"}`)))
	assert.False(t, SignalsOffline([]byte(`{"temperature":1}`)))
	assert.False(t, SignalsOffline([]byte(`{not-json`)))
}

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-messaging/internal/config"
)

func defaultConfig() *config.Config {
	cfg := config.Load()
	return cfg
}

func TestNewWithDefaults(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	app, err := New(cfg)
	require.NoError(t, err)
	defer app.Cleanup()

	assert.NotNil(t, app.Store)
	assert.NotNil(t, app.Queue)
	assert.NotNil(t, app.Deliverer)
	assert.NotNil(t, app.Engine)
	assert.NotNil(t, app.Handlers)
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := defaultConfig()
	cfg.StoreType = "cassandra"
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = defaultConfig()
	cfg.QueueType = "sqs"
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = defaultConfig()
	cfg.DeliveryChannel = "carrier-pigeon"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestStartAndShutdown(t *testing.T) {
	app, err := New(defaultConfig())
	require.NoError(t, err)
	defer app.Cleanup()

	require.NoError(t, app.Start())
	require.NoError(t, app.Shutdown(context.Background()))
}

func TestStartRejectsBadSweepSchedule(t *testing.T) {
	cfg := defaultConfig()
	cfg.SweepSchedule = "not a cron line"

	app, err := New(cfg)
	require.NoError(t, err)
	defer app.Cleanup()

	assert.Error(t, app.Start())
}

func TestRoutesServeHealth(t *testing.T) {
	app, err := New(defaultConfig())
	require.NoError(t, err)
	defer app.Cleanup()

	router := mux.NewRouter()
	SetupRoutes(router, app.Handlers)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-messaging/internal/config"
	"guest-messaging/internal/engine"
	"guest-messaging/internal/handlers"
	"guest-messaging/internal/queue"
	"guest-messaging/internal/storage"
	"guest-messaging/internal/testutil"
)

type testEnv struct {
	router    *mux.Router
	store     *testutil.MockStore
	deliverer *testutil.MockDeliverer
	engine    *engine.Engine
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	store := testutil.NewMockStore()
	deliverer := testutil.NewMockDeliverer()
	q := queue.NewLocalQueue(nil)
	t.Cleanup(func() { q.Close() })
	eng := engine.NewEngine(store, q, deliverer, nil)
	h := handlers.New(store, eng, &config.Config{})

	router := mux.NewRouter()
	router.HandleFunc("/health", h.Health).Methods("GET")
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/triggers", h.CreateTrigger).Methods("POST")
	api.HandleFunc("/triggers", h.ListTriggers).Methods("GET")
	api.HandleFunc("/triggers/{id}", h.GetTrigger).Methods("GET")
	api.HandleFunc("/triggers/{id}", h.UpdateTrigger).Methods("PUT")
	api.HandleFunc("/triggers/{id}", h.DeleteTrigger).Methods("DELETE")
	api.HandleFunc("/triggers/{id}/execute", h.ExecuteTrigger).Methods("POST")
	api.HandleFunc("/triggers/{id}/schedule", h.ScheduleTrigger).Methods("POST")
	api.HandleFunc("/triggers/{id}/schedule/{guestId}", h.CancelScheduled).Methods("DELETE")
	api.HandleFunc("/triggers/{id}/preview", h.PreviewTrigger).Methods("POST")
	api.HandleFunc("/hotels", h.CreateHotel).Methods("POST")
	api.HandleFunc("/hotels/{id}", h.GetHotel).Methods("GET")
	api.HandleFunc("/hotels/{id}/evaluate", h.EvaluateTriggers).Methods("POST")
	api.HandleFunc("/hotels/{id}/guests", h.CreateGuest).Methods("POST")
	api.HandleFunc("/hotels/{id}/guests/{guestId}/schedule", h.ScheduleGuest).Methods("POST")
	api.HandleFunc("/events", h.FireEvent).Methods("POST")
	api.HandleFunc("/templates/validate", h.ValidateTemplate).Methods("POST")
	api.HandleFunc("/templates/preview", h.RenderTemplatePreview).Methods("POST")

	return &testEnv{router: router, store: store, deliverer: deliverer, engine: eng}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedHotelAndGuest(t *testing.T) {
	t.Helper()
	require.NoError(t, e.store.CreateHotel(testutil.TestHotel()))
	checkin := time.Now().Add(-4 * time.Hour)
	require.NoError(t, e.store.CreateGuest(testutil.NewGuestBuilder().WithCheckin(checkin).Build()))
}

func TestCreateTrigger(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, "POST", "/api/triggers", testutil.NewTriggerBuilder().WithID("").Build())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created storage.Trigger
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "test-hotel-id", created.HotelID)
}

func TestCreateTriggerValidationFailure(t *testing.T) {
	env := setupEnv(t)

	trigger := testutil.NewTriggerBuilder().WithPriority(99).Build()
	rec := env.request(t, "POST", "/api/triggers", trigger)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "priority")
}

func TestCreateTriggerMalformedBody(t *testing.T) {
	env := setupEnv(t)

	req := httptest.NewRequest("POST", "/api/triggers", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTriggerNotFound(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, "GET", "/api/triggers/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTriggersRequiresHotelID(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, "GET", "/api/triggers", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTriggersFiltersByType(t *testing.T) {
	env := setupEnv(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().WithID("t1").Build()))
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().
		WithID("t2").
		WithEvent(&storage.EventSpec{EventType: "checkout"}).
		Build()))

	rec := env.request(t, "GET", "/api/triggers?hotel_id=test-hotel-id&type=EVENT_BASED", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Count    int                `json:"count"`
		Triggers []*storage.Trigger `json:"triggers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Equal(t, 1, listed.Count)
	assert.Equal(t, "t2", listed.Triggers[0].ID)
}

func TestUpdateTriggerUsesPathID(t *testing.T) {
	env := setupEnv(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().WithID("t1").Build()))

	updated := testutil.NewTriggerBuilder().WithID("ignored").WithName("renamed").Build()
	rec := env.request(t, "PUT", "/api/triggers/t1", updated)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.GetTrigger("t1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Name)
}

func TestDeleteTrigger(t *testing.T) {
	env := setupEnv(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().WithID("t1").Build()))

	rec := env.request(t, "DELETE", "/api/triggers/t1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, "DELETE", "/api/triggers/t1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateGuestBindsHotelFromPath(t *testing.T) {
	env := setupEnv(t)
	require.NoError(t, env.store.CreateHotel(testutil.TestHotel()))

	guest := testutil.NewGuestBuilder().WithHotelID("something-else").Build()
	rec := env.request(t, "POST", "/api/hotels/test-hotel-id/guests", guest)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created storage.Guest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "test-hotel-id", created.HotelID)
}

func TestExecuteTriggerSendsMessage(t *testing.T) {
	env := setupEnv(t)
	env.seedHotelAndGuest(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().
		WithTemplate("Welcome {{guest_name}}!").
		Build()))

	rec := env.request(t, "POST", "/api/triggers/test-trigger-id/execute",
		map[string]string{"guest_id": "test-guest-id"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result engine.ExecutionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.True(t, result.MessageSent)
	require.Equal(t, 1, env.deliverer.SentCount())
	assert.Equal(t, "Welcome Test Guest!", env.deliverer.LastSent().Text)
}

func TestExecuteTriggerDeliveryFailureIsBadGateway(t *testing.T) {
	env := setupEnv(t)
	env.seedHotelAndGuest(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().Build()))
	env.deliverer.SendErr = testutil.ErrTestFailure

	rec := env.request(t, "POST", "/api/triggers/test-trigger-id/execute",
		map[string]string{"guest_id": "test-guest-id"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExecuteTriggerRequiresGuestID(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, "POST", "/api/triggers/test-trigger-id/execute", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteTriggerUnknownTrigger(t *testing.T) {
	env := setupEnv(t)
	env.seedHotelAndGuest(t)

	rec := env.request(t, "POST", "/api/triggers/missing/execute",
		map[string]string{"guest_id": "test-guest-id"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewTriggerDoesNotSend(t *testing.T) {
	env := setupEnv(t)
	env.seedHotelAndGuest(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().
		WithTemplate("Hi {{guest_name}}").
		Build()))

	rec := env.request(t, "POST", "/api/triggers/test-trigger-id/preview",
		map[string]string{"guest_id": "test-guest-id"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hi Test Guest")
	assert.Equal(t, 0, env.deliverer.SentCount())
}

func TestScheduleGuest(t *testing.T) {
	env := setupEnv(t)
	env.seedHotelAndGuest(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().Build()))

	rec := env.request(t, "POST", "/api/hotels/test-hotel-id/guests/test-guest-id/schedule", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Scheduled int `json:"scheduled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Scheduled)
}

func TestScheduleAndCancelTrigger(t *testing.T) {
	env := setupEnv(t)
	env.seedHotelAndGuest(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().Build()))

	rec := env.request(t, "POST", "/api/triggers/test-trigger-id/schedule",
		map[string]interface{}{"guest_id": "test-guest-id", "delay_minutes": 60})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "task_id")

	rec = env.request(t, "DELETE", "/api/triggers/test-trigger-id/schedule/test-guest-id", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cancelled":true`)

	// Nothing pending anymore.
	rec = env.request(t, "DELETE", "/api/triggers/test-trigger-id/schedule/test-guest-id", nil)
	assert.Contains(t, rec.Body.String(), `"cancelled":false`)
}

func TestEvaluateTriggers(t *testing.T) {
	env := setupEnv(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().
		WithID("suite-only").
		WithConditions(storage.LogicAnd, storage.FieldCondition{
			Field:    "guest.preferences.room_type",
			Operator: storage.OpEquals,
			Value:    "suite",
		}).
		Build()))

	rec := env.request(t, "POST", "/api/hotels/test-hotel-id/evaluate",
		map[string]interface{}{
			"guest": map[string]interface{}{
				"preferences": map[string]interface{}{"room_type": "suite"},
			},
		})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "suite-only")
}

func TestEvaluateTriggersTypeFilter(t *testing.T) {
	env := setupEnv(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().
		WithID("on-checkout").
		WithEvent(&storage.EventSpec{EventType: "checkout"}).
		Build()))

	rec := env.request(t, "POST", "/api/hotels/test-hotel-id/evaluate?type=EVENT_BASED",
		map[string]interface{}{"event_type": "checkout"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "on-checkout")

	rec = env.request(t, "POST", "/api/hotels/test-hotel-id/evaluate?type=TIME_BASED",
		map[string]interface{}{"event_type": "checkout"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestFireEvent(t *testing.T) {
	env := setupEnv(t)
	env.seedHotelAndGuest(t)
	require.NoError(t, env.store.CreateTrigger(testutil.NewTriggerBuilder().
		WithEvent(&storage.EventSpec{EventType: "checkout"}).
		WithTemplate("Bye {{guest_name}}").
		Build()))

	rec := env.request(t, "POST", "/api/events", map[string]interface{}{
		"hotel_id":   "test-hotel-id",
		"guest_id":   "test-guest-id",
		"event_type": "checkout",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "task_id")

	// The event fans out asynchronously; the listening trigger delivers.
	require.Eventually(t, func() bool {
		return env.deliverer.SentCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Bye Test Guest", env.deliverer.LastSent().Text)
}

func TestFireEventRequiresFields(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, "POST", "/api/events", map[string]string{"hotel_id": "h1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateTemplate(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, "POST", "/api/templates/validate",
		map[string]string{"template": "Hello {{guest_name}}"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_valid":true`)

	rec = env.request(t, "POST", "/api/templates/validate",
		map[string]string{"template": "Hello {{guest_name"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_valid":false`)
}

func TestRenderTemplatePreview(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, "POST", "/api/templates/preview", map[string]interface{}{
		"template": "Hi {{guest_name}}, your room is {{room}}",
		"context":  map[string]interface{}{"guest_name": "Ann", "room": "204"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hi Ann, your room is 204")
	assert.Zero(t, env.deliverer.SentCount())

	rec = env.request(t, "POST", "/api/templates/preview",
		map[string]string{"template": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, "POST", "/api/templates/preview", map[string]interface{}{
		"template": "Hi {{undefined_var}}",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealth(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHealthDegraded(t *testing.T) {
	env := setupEnv(t)
	env.store.ErrorOnMethod["Health"] = testutil.ErrTestFailure

	rec := env.request(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

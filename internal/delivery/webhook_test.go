package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-messaging/internal/common/errors"
)

func TestWebhookDelivererSend(t *testing.T) {
	var received *Message
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var msg Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		received = &msg
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d, err := NewWebhookDeliverer(&WebhookConfig{
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	}, nil)
	require.NoError(t, err)
	defer d.Close()

	msg := &Message{
		HotelID:   "h1",
		GuestID:   "g1",
		TriggerID: "t1",
		Address:   "+15551234567",
		Text:      "Welcome Ann!",
	}
	require.NoError(t, d.Send(context.Background(), msg))

	require.NotNil(t, received)
	assert.Equal(t, "Welcome Ann!", received.Text)
	assert.Equal(t, "+15551234567", received.Address)
	assert.Equal(t, "Bearer token", gotAuth)
}

func TestWebhookDelivererGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d, err := NewWebhookDeliverer(&WebhookConfig{URL: server.URL}, nil)
	require.NoError(t, err)
	defer d.Close()

	err = d.Send(context.Background(), &Message{Text: "hi"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeDelivery))
}

func TestWebhookDelivererUnreachableGateway(t *testing.T) {
	d, err := NewWebhookDeliverer(&WebhookConfig{URL: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)
	defer d.Close()

	err = d.Send(context.Background(), &Message{Text: "hi"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeDelivery))
}

func TestWebhookDelivererRequiresURL(t *testing.T) {
	_, err := NewWebhookDeliverer(&WebhookConfig{}, nil)
	assert.Error(t, err)
}

func TestLogDelivererAlwaysSucceeds(t *testing.T) {
	d := NewLogDeliverer(nil)
	assert.Equal(t, "log", d.Name())
	assert.NoError(t, d.Send(context.Background(), &Message{Text: "hi"}))
	assert.NoError(t, d.Close())
}

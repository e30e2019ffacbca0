package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresmejia3/facegate/internal/config"
	"github.com/andresmejia3/facegate/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWebhookActuator(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, time.Second)
	ev := types.SignalEvent{Session: "s1", Command: "OPEN", Box: types.BoundingBox{X: 1, Y: 2, W: 3, H: 4}}
	require.NoError(t, w.Send(context.Background(), ev))
	require.NoError(t, w.Close())

	assert.Equal(t, "OPEN", got.Command)
	assert.Equal(t, [4]int{1, 2, 3, 4}, got.Box)
	assert.Equal(t, "s1", got.Session)
}

func TestWebhookActuatorHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "relay jammed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, time.Second)
	err := w.Send(context.Background(), types.SignalEvent{Command: "OPEN"})
	assert.ErrorContains(t, err, "503")
}

func TestOpenActuatorFallsBackToSimulated(t *testing.T) {
	log := zaptest.NewLogger(t)

	tests := []struct {
		name string
		cfg  config.ActuatorConfig
	}{
		{"missing serial port", config.ActuatorConfig{Kind: config.ActuatorSerial, Port: "/dev/facegate-does-not-exist", Baud: 9600}},
		{"disabled", config.ActuatorConfig{Kind: config.ActuatorNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := OpenActuator(tt.cfg, log)
			_, ok := act.(*Simulated)
			assert.True(t, ok, "got %T", act)
			assert.NoError(t, act.Send(context.Background(), types.SignalEvent{Command: "OPEN"}))
			assert.NoError(t, act.Close())
		})
	}
}

func TestOpenActuatorWebhook(t *testing.T) {
	act := OpenActuator(config.ActuatorConfig{Kind: config.ActuatorWebhook, URL: "http://127.0.0.1:1"}, zaptest.NewLogger(t))
	_, ok := act.(*WebhookActuator)
	assert.True(t, ok)
}

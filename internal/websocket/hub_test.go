package websocket

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/logger"
	"github.com/raaihank/codesense/internal/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, cfg config.WebSocketConfig) (*Hub, string) {
	t.Helper()
	hub := NewHub(cfg, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func defaultConfig() config.WebSocketConfig {
	return config.GetDefaults().WebSocket
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHub(t, defaultConfig())

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ActiveConnections() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastEvent(Event{
		Type: EventTypeExplanation,
		Data: ExplanationEvent{Mode: "Success", Model: "llama-3.1-8b-instant", InputLength: 42},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type EventType        `json:"type"`
		Data ExplanationEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventTypeExplanation, got.Type)
	assert.Equal(t, "Success", got.Data.Mode)
	assert.Equal(t, 42, got.Data.InputLength)

	stats := hub.GetStats()
	assert.EqualValues(t, 1, stats.ActiveConnections)
	assert.EqualValues(t, 1, stats.TotalConnections)
}

func TestHubPing(t *testing.T) {
	hub, url := startHub(t, defaultConfig())

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ActiveConnections() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, EventTypePong, got.Type)
}

func TestHubDisabledEventsAreDropped(t *testing.T) {
	cfg := defaultConfig()
	cfg.Events.BroadcastExplanations = false
	hub := NewHub(cfg, logger.NewNop())

	hub.BroadcastEvent(Event{Type: EventTypeExplanation})
	hub.BroadcastEvent(Event{Type: "unknown"})
	assert.Len(t, hub.broadcast, 0)

	hub.BroadcastEvent(Event{Type: EventTypePIIDetection})
	assert.Len(t, hub.broadcast, 1)
}

func TestHubBasicAuth(t *testing.T) {
	cfg := defaultConfig()
	cfg.Username = "admin"
	cfg.Password = "s3cret"
	hub, url := startHub(t, cfg)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:s3cret")))
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ActiveConnections() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestSubscriptionFilter(t *testing.T) {
	detection := Event{
		Type: EventTypePIIDetection,
		Data: PIIDetectionEvent{Findings: []privacy.Finding{{EntityType: privacy.RuleEmail, Count: 1}}},
	}
	explanation := Event{Type: EventTypeExplanation, Data: ExplanationEvent{Mode: "Error"}}

	all := &Client{}
	assert.True(t, shouldSendToClient(all, detection))

	onlyPhones := &Client{Subscription: &SubscriptionRequest{
		Events: []EventType{EventTypePIIDetection},
		Filter: &EventFilter{RuleTypes: []string{privacy.RulePhone}},
	}}
	assert.False(t, shouldSendToClient(onlyPhones, detection))
	assert.False(t, shouldSendToClient(onlyPhones, explanation))

	errorsOnly := &Client{Subscription: &SubscriptionRequest{
		Filter: &EventFilter{Modes: []string{"error"}},
	}}
	assert.True(t, shouldSendToClient(errorsOnly, explanation))
	assert.True(t, shouldSendToClient(errorsOnly, detection))
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "10.0.0.5:5555"
	assert.Equal(t, "10.0.0.5", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(r))
}

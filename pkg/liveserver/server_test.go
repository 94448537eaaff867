package liveserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewServer verifies server creation
func TestNewServer(t *testing.T) {
	hub := NewHub(nil, 0)
	allowedOrigins := []string{"http://localhost:8081"}
	server := NewServer(hub, nil, allowedOrigins)

	assert.NotNil(t, server)
	assert.Equal(t, hub, server.hub)
	assert.Equal(t, allowedOrigins, server.allowedOrigins)
}

// TestServerWebSocketUpgrade verifies WebSocket upgrade
func TestServerWebSocketUpgrade(t *testing.T) {
	hub := NewHub(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := NewServer(hub, nil, []string{"*"})

	testServer := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://test.local")

	ws, _, err := dialer.Dial(wsURL, headers)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())

	ws.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

// TestServerReceiveMessage verifies client receives broadcast messages
func TestServerReceiveMessage(t *testing.T) {
	hub := NewHub(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := NewServer(hub, nil, []string{"*"})

	testServer := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://test.local")

	ws, _, err := dialer.Dial(wsURL, headers)
	require.NoError(t, err)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	msg := Message{
		Type: TypeBidExecuted,
		Data: map[string]interface{}{
			"portfolio": "index-1",
			"price":     "0.0005",
		},
	}
	hub.Broadcast(msg)

	var received Message
	err = ws.ReadJSON(&received)
	require.NoError(t, err)

	assert.Equal(t, msg.Type, received.Type)

	data, ok := received.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "0.0005", data["price"])
}

// TestServerMultipleClients verifies multiple WebSocket clients
func TestServerMultipleClients(t *testing.T) {
	hub := NewHub(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := NewServer(hub, nil, []string{"*"})

	testServer := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://test.local")

	clients := make([]*websocket.Conn, 3)
	for i := 0; i < 3; i++ {
		ws, _, err := dialer.Dial(wsURL, headers)
		require.NoError(t, err)
		defer ws.Close()
		clients[i] = ws
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, hub.ClientCount())

	msg := Message{
		Type: TypeAssetTargetsRaised,
		Data: map[string]interface{}{
			"portfolio":               "index-1",
			"new_position_multiplier": "0.9803921568627451",
		},
	}
	hub.Broadcast(msg)

	for i, ws := range clients {
		var received Message
		err := ws.ReadJSON(&received)
		require.NoError(t, err, "Client %d should receive message", i)
		assert.Equal(t, msg.Type, received.Type)
	}
}

// TestServerHealthEndpoint verifies health check endpoint
func TestServerHealthEndpoint(t *testing.T) {
	hub := NewHub(nil, 0)
	server := NewServer(hub, nil, []string{"*"})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	server.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, "ok", response["status"])
	assert.NotNil(t, response["clients"])
}

// TestServerAPIHandler verifies registered API handlers are served
func TestServerAPIHandler(t *testing.T) {
	hub := NewHub(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := NewServer(hub, nil, []string{"*"})
	server.HandleFunc("/api/rebalance", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"quote_asset": "WETH"})
	})

	go func() {
		_ = server.Start(ctx, "127.0.0.1:0")
	}()
	time.Sleep(100 * time.Millisecond)

	handler, ok := server.apiHandlers["/api/rebalance"]
	require.True(t, ok)

	req := httptest.NewRequest("GET", "/api/rebalance", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "WETH", response["quote_asset"])
}

// TestServerStart verifies server start and stop
func TestServerStart(t *testing.T) {
	hub := NewHub(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := NewServer(hub, nil, []string{"*"})

	go func() {
		err := server.Start(ctx, ":0")
		assert.NoError(t, err)
	}()

	time.Sleep(100 * time.Millisecond)

	err := server.Stop(context.Background())
	assert.NoError(t, err)
}

// TestOriginValidation_AllowedOrigin verifies that connections from allowed origins are accepted
func TestOriginValidation_AllowedOrigin(t *testing.T) {
	hub := NewHub(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	allowedOrigins := []string{"http://localhost:3000", "http://localhost:8081"}
	server := NewServer(hub, nil, allowedOrigins)

	testServer := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://localhost:3000")

	ws, resp, err := dialer.Dial(wsURL, headers)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())
}

// TestOriginValidation_UnauthorizedOrigin verifies that connections from unauthorized origins are rejected
func TestOriginValidation_UnauthorizedOrigin(t *testing.T) {
	hub := NewHub(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	allowedOrigins := []string{"http://localhost:3000", "http://localhost:8081"}
	server := NewServer(hub, nil, allowedOrigins)

	testServer := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://evil.com")

	ws, resp, err := dialer.Dial(wsURL, headers)

	assert.Error(t, err)
	if resp != nil {
		assert.NotEqual(t, http.StatusSwitchingProtocols, resp.StatusCode)
	}
	if ws != nil {
		ws.Close()
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

// TestOriginValidation_MissingOrigin verifies that connections without Origin header are rejected
func TestOriginValidation_MissingOrigin(t *testing.T) {
	hub := NewHub(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	allowedOrigins := []string{"http://localhost:3000"}
	server := NewServer(hub, nil, allowedOrigins)

	testServer := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	dialer := websocket.Dialer{}
	headers := http.Header{}
	// Explicitly do not set Origin header

	ws, resp, err := dialer.Dial(wsURL, headers)

	assert.Error(t, err)
	if resp != nil {
		assert.NotEqual(t, http.StatusSwitchingProtocols, resp.StatusCode)
	}
	if ws != nil {
		ws.Close()
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

// TestOriginValidation_WildcardOrigin verifies that wildcard allows all origins (with warning)
func TestOriginValidation_WildcardOrigin(t *testing.T) {
	hub := NewHub(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	server := NewServer(hub, nil, []string{"*"})

	testServer := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	dialer := websocket.Dialer{}
	headers := http.Header{}
	headers.Set("Origin", "http://any-random-domain.com")

	ws, resp, err := dialer.Dial(wsURL, headers)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())
}

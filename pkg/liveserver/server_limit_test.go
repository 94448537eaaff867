package liveserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockLogger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Info(msg string, args ...interface{}) { m.Called(msg, args) }
func (m *MockLogger) Warn(msg string, args ...interface{}) { m.Called(msg, args) }

func TestServer_GlobalConnectionLimit(t *testing.T) {
	logger := new(MockLogger)
	logger.On("Warn", mock.Anything, mock.Anything).Return()
	logger.On("Info", mock.Anything, mock.Anything).Return()

	hub := NewHub(logger, 0)
	go hub.Run(context.Background())

	// Initialize server with limit = 2
	server := NewServer(hub, logger, []string{"*"})
	server.maxConnections = 2
	server.connSemaphore = make(chan struct{}, 2)

	s := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer s.Close()

	url := "ws" + strings.TrimPrefix(s.URL, "http")

	dial := func() (*websocket.Conn, *http.Response, error) {
		header := http.Header{}
		header.Set("Origin", "http://localhost")
		return websocket.DefaultDialer.Dial(url, header)
	}

	// 1. First connection (OK)
	conn1, _, err := dial()
	assert.NoError(t, err)
	if conn1 != nil {
		defer conn1.Close()
	}

	// 2. Second connection (OK)
	conn2, _, err := dial()
	assert.NoError(t, err)
	if conn2 != nil {
		defer conn2.Close()
	}

	// 3. Third connection (Should Fail with 503)
	conn3, resp, err := dial()
	assert.Error(t, err)
	if conn3 != nil {
		conn3.Close()
	}

	if resp != nil {
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	} else {
		t.Error("Expected response with status code, got nil")
	}
}

func TestServer_IPRateLimit(t *testing.T) {
	logger := new(MockLogger)
	logger.On("Warn", mock.Anything, mock.Anything).Return()
	logger.On("Info", mock.Anything, mock.Anything).Return()

	hub := NewHub(logger, 0)
	go hub.Run(context.Background())

	server := NewServer(hub, logger, []string{"*"})

	s := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer s.Close()
	url := "ws" + strings.TrimPrefix(s.URL, "http")

	dial := func() (*websocket.Conn, *http.Response, error) {
		header := http.Header{}
		header.Set("Origin", "http://localhost")
		return websocket.DefaultDialer.Dial(url, header)
	}

	// Low limit to trigger easily. getIPLimiter creates limiters lazily, so
	// changing these now affects all future IPs.
	server.rateLimit = 1.0
	server.rateBurst = 1

	// Ensure high global limit so we hit the rate limit first
	server.maxConnections = 100
	server.connSemaphore = make(chan struct{}, 100)

	// 1. First connection (OK)
	conn1, _, err := dial()
	assert.NoError(t, err)
	if conn1 != nil {
		defer conn1.Close()
	}

	// 2. Second connection (Should Fail immediately due to burst=1)
	conn2, resp, err := dial()
	assert.Error(t, err)
	if conn2 != nil {
		conn2.Close()
	}

	if resp != nil {
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	}
}

func TestServer_ProductionWildcardOrigin(t *testing.T) {
	logger := new(MockLogger)
	logger.On("Warn", mock.Anything, mock.Anything).Return()
	logger.On("Info", mock.Anything, mock.Anything).Return()

	hub := NewHub(logger, 0)
	go hub.Run(context.Background())

	// Server with wildcard and production = true
	server := NewServer(hub, logger, []string{"*"})
	server.SetProduction(true)

	s := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	defer s.Close()
	url := "ws" + strings.TrimPrefix(s.URL, "http")

	dial := func() (*websocket.Conn, *http.Response, error) {
		header := http.Header{}
		header.Set("Origin", "http://evil.com")
		return websocket.DefaultDialer.Dial(url, header)
	}

	// Should fail because wildcard is rejected in production
	_, resp, err := dial()
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

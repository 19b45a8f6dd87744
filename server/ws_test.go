package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// MockHandler answers every method with a success naming it
type MockHandler struct {
	mu      sync.Mutex
	methods []string
	args    []map[string]any
	block   chan struct{}
}

func (m *MockHandler) Handle(ctx context.Context, method string, args map[string]any) epos.PrinterResult {
	m.mu.Lock()
	m.methods = append(m.methods, method)
	m.args = append(m.args, args)
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return epos.Failed(method, epos.ErrTimeout)
		}
	}
	return epos.Succeeded(method, "Success", nil)
}

func (m *MockHandler) Methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.methods...)
}

func startMethodServer(t *testing.T, h Handler) *MethodServer {
	t.Helper()
	s := NewMethodServerWithLogger(h, "127.0.0.1:0", log.New(io.Discard, "", 0))
	require.NoError(t, s.StartAsync())
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func dialWS(t *testing.T, s *MethodServer) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) Response {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestWebSocketRequestResponse(t *testing.T) {
	h := &MockHandler{}
	s := startMethodServer(t, h)
	conn := dialWS(t, s)

	require.NoError(t, conn.WriteJSON(Request{ID: "42", Method: "onDiscovery", Args: map[string]any{"type": "TCP"}}))
	resp := readResponse(t, conn)

	assert.Equal(t, "42", resp.ID)
	assert.Equal(t, "onDiscovery", resp.Method)
	assert.True(t, resp.Result.Success)
	assert.Equal(t, "onDiscovery", resp.Result.Type)
	assert.Equal(t, []string{"onDiscovery"}, h.Methods())
}

func TestWebSocketAssignsID(t *testing.T) {
	s := startMethodServer(t, &MockHandler{})
	conn := dialWS(t, s)

	require.NoError(t, conn.WriteJSON(Request{Method: "isPrinterConnected"}))
	resp := readResponse(t, conn)

	assert.NotEmpty(t, resp.ID)
	assert.True(t, resp.Result.Success)
}

func TestWebSocketMalformedRequest(t *testing.T) {
	h := &MockHandler{}
	s := startMethodServer(t, h)
	conn := dialWS(t, s)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	resp := readResponse(t, conn)

	assert.False(t, resp.Result.Success)
	assert.Equal(t, string(epos.ErrParam), resp.Result.Content)
	assert.Empty(t, h.Methods())
}

func TestWebSocketRequestsAreIndependent(t *testing.T) {
	h := &MockHandler{block: make(chan struct{})}
	s := startMethodServer(t, h)
	conn := dialWS(t, s)

	require.NoError(t, conn.WriteJSON(Request{ID: "slow", Method: "onPrint"}))
	require.Eventually(t, func() bool { return len(h.Methods()) == 1 }, time.Second, 10*time.Millisecond)

	h.mu.Lock()
	h.block = nil
	h.mu.Unlock()
	require.NoError(t, conn.WriteJSON(Request{ID: "fast", Method: "isPrinterConnected"}))

	assert.Equal(t, "fast", readResponse(t, conn).ID)
}

func TestHTTPCall(t *testing.T) {
	h := &MockHandler{}
	s := startMethodServer(t, h)

	body, err := json.Marshal(map[string]any{"type": "USB"})
	require.NoError(t, err)
	resp, err := http.Post("http://"+s.Addr().String()+"/api/onDiscovery", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var result epos.PrinterResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, "onDiscovery", result.Type)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, "USB", h.args[0]["type"])
}

func TestHTTPCallBadBody(t *testing.T) {
	s := startMethodServer(t, &MockHandler{})

	resp, err := http.Post("http://"+s.Addr().String()+"/api/onPrint", "application/json", bytes.NewReader([]byte("[1,2")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	s := startMethodServer(t, &MockHandler{})

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMethodServerStopCancelsPendingCalls(t *testing.T) {
	h := &MockHandler{block: make(chan struct{})}
	s := NewMethodServerWithLogger(h, "127.0.0.1:0", log.New(io.Discard, "", 0))
	require.NoError(t, s.StartAsync())
	assert.Error(t, s.StartAsync())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(Request{ID: "1", Method: "onPrint"}))
	require.Eventually(t, func() bool { return len(h.Methods()) == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(ctx))
}

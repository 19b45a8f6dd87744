package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// maxRequestSize bounds a single method call, images included
const maxRequestSize = 32 << 20

// Handler answers one method call with one result
type Handler interface {
	Handle(ctx context.Context, method string, args map[string]any) epos.PrinterResult
}

// Request is a method call on the WebSocket channel
type Request struct {
	ID     string         `json:"id,omitempty"`
	Method string         `json:"method"`
	Args   map[string]any `json:"args,omitempty"`
}

// Response carries the result of the request with the same id
type Response struct {
	ID     string             `json:"id"`
	Method string             `json:"method"`
	Result epos.PrinterResult `json:"result"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient serializes writes to one connection
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// MethodServer exposes the bridge over WebSocket at /ws and plain HTTP at
// POST /api/{method}. Each WebSocket request is answered independently, so
// responses may arrive out of order and are matched by id.
type MethodServer struct {
	handler    Handler
	address    string
	httpServer *http.Server
	listener   net.Listener
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
	clients    map[*wsClient]struct{}
	wg         sync.WaitGroup
	logger     *log.Logger
}

// NewMethodServer creates a method server with the default logger
func NewMethodServer(handler Handler, address string) *MethodServer {
	logger := log.New(os.Stdout, "[WS] ", log.LstdFlags|log.Lmsgprefix)
	return NewMethodServerWithLogger(handler, address, logger)
}

// NewMethodServerWithLogger creates a method server with a custom logger
func NewMethodServerWithLogger(handler Handler, address string, logger *log.Logger) *MethodServer {
	s := &MethodServer{
		handler: handler,
		address: address,
		clients: make(map[*wsClient]struct{}),
		logger:  logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/{method}", s.handleCall)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// StartAsync binds the listener and serves in the background
func (s *MethodServer) StartAsync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Printf("Error: Failed to start server: %v", err)
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	s.logger.Printf("Method server listening on %s", listener.Addr())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Error serving: %v", err)
		}
	}()
	return nil
}

// Stop closes the listener, cancels pending calls and waits for them
func (s *MethodServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	s.logger.Println("Stopping method server...")
	cancel()
	err := s.httpServer.Shutdown(ctx)
	for _, c := range clients {
		c.conn.Close()
	}
	s.wg.Wait()
	s.logger.Println("Method server stopped")
	return err
}

// IsRunning returns whether the server is running
func (s *MethodServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the configured server address
func (s *MethodServer) Address() string {
	return s.address
}

// Addr returns the bound listener address, or nil when stopped
func (s *MethodServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || !s.running {
		return nil
	}
	return s.listener.Addr()
}

// register tracks a WebSocket client until unregister. It refuses new
// clients once Stop has begun.
func (s *MethodServer) register(c *wsClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *MethodServer) unregister(c *wsClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *MethodServer) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *MethodServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("WebSocket upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(maxRequestSize)

	client := &wsClient{conn: conn}
	if !s.register(client) {
		conn.Close()
		return
	}
	ctx, cancel := context.WithCancel(s.baseContext())
	var pending sync.WaitGroup
	defer func() {
		cancel()
		pending.Wait()
		conn.Close()
		s.unregister(client)
	}()

	s.logger.Printf("WebSocket client connected from %s", r.RemoteAddr)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("WebSocket read error: %v", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil || req.Method == "" {
			s.logger.Printf("Malformed request from %s", r.RemoteAddr)
			if err := client.send(Response{Result: epos.Failed("", epos.ErrParam)}); err != nil {
				s.logger.Printf("WebSocket send error: %v", err)
			}
			continue
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		pending.Add(1)
		go func() {
			defer pending.Done()
			result := s.handler.Handle(ctx, req.Method, req.Args)
			if err := client.send(Response{ID: req.ID, Method: req.Method, Result: result}); err != nil {
				s.logger.Printf("WebSocket send error: %v", err)
			}
		}()
	}
}

func (s *MethodServer) handleCall(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")
	args := make(map[string]any)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		s.logger.Printf("Error reading request body: %v", err)
		writeJSON(w, http.StatusBadRequest, epos.Failed(method, epos.ErrParam))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeJSON(w, http.StatusBadRequest, epos.Failed(method, epos.ErrParam))
			return
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.baseContext(), cancel)
	defer stop()

	writeJSON(w, http.StatusOK, s.handler.Handle(ctx, method, args))
}

func (s *MethodServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.IsRunning()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/nixxel-company-limited/epos-bridge/command"
	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// DefaultIdleTimeout ends a raw job when the client stops sending without closing
const DefaultIdleTimeout = 2 * time.Second

// maxJobSize bounds the bytes buffered for one raw job
const maxJobSize = 16 << 20

// Printer runs print jobs against the shared session
type Printer interface {
	Print(ctx context.Context, portType string, target epos.PrinterTarget, cmds []command.PrintCommand) epos.PrinterResult
}

// Server is a raw TCP passthrough: every client connection is buffered and
// forwarded to the configured printer as one print job
type Server struct {
	printer     Printer
	target      epos.PrinterTarget
	address     string
	idleTimeout time.Duration
	listener    net.Listener
	cancel      context.CancelFunc
	ctx         context.Context
	mu          sync.Mutex
	running     bool
	wg          sync.WaitGroup
	logger      *log.Logger
}

// New creates a new server instance
func New(printer Printer, target epos.PrinterTarget, address string) *Server {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags|log.Lmsgprefix)
	return NewWithLogger(printer, target, address, logger)
}

// NewWithLogger creates a new server instance with a custom logger
func NewWithLogger(printer Printer, target epos.PrinterTarget, address string, logger *log.Logger) *Server {
	return &Server{
		printer:     printer,
		target:      target,
		address:     address,
		idleTimeout: DefaultIdleTimeout,
		logger:      logger,
	}
}

// SetIdleTimeout changes how long a silent connection is waited on
func (s *Server) SetIdleTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.idleTimeout = d
	}
}

// Start starts the TCP server and blocks until Stop is called
func (s *Server) Start() error {
	s.logger.Printf("Starting server on %s (blocking mode)", s.address)
	if err := s.listen(); err != nil {
		return err
	}

	s.logger.Println("Ready to accept connections")
	s.acceptConnections()
	return nil
}

// StartAsync starts the TCP server in a goroutine (non-blocking)
func (s *Server) StartAsync() error {
	s.logger.Printf("Starting server on %s (async mode)", s.address)
	if err := s.listen(); err != nil {
		return err
	}

	go s.acceptConnections()
	s.logger.Println("Server started in background, ready to accept connections")
	return nil
}

// listen binds the listener and registers the accept loop with wg
func (s *Server) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Println("Error: Server already running")
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
	s.wg.Add(1)
	s.logger.Printf("Server listening on %s, forwarding to %s", listener.Addr(), s.target.Address)
	return nil
}

// acceptConnections handles incoming client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.IsRunning() {
				s.logger.Println("Server shutting down, stopping accept loop")
				return
			}
			s.logger.Printf("Error accepting connection: %v", err)
			continue
		}

		s.logger.Printf("Client connected from %s", conn.RemoteAddr())
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection buffers one client's bytes and prints them as a single job
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.logger.Printf("Client disconnected: %s", conn.RemoteAddr())
		conn.Close()
	}()

	clientAddr := conn.RemoteAddr().String()
	data, err := s.readJob(conn)
	if err != nil {
		s.logger.Printf("Error reading from client %s: %v", clientAddr, err)
		return
	}
	if len(data) == 0 {
		s.logger.Printf("Client %s sent no data", clientAddr)
		return
	}

	s.logger.Printf("Received %d bytes from %s", len(data), clientAddr)
	result := s.printer.Print(s.ctx, s.target.PortType.String(), s.target, []command.PrintCommand{
		command.AppendRawBytes{Data: data},
	})
	if !result.Success {
		s.logger.Printf("Raw job from %s failed: %s", clientAddr, result.Content)
		return
	}
	s.logger.Printf("Raw job from %s printed", clientAddr)
}

// readJob reads until the client closes, goes idle or the server stops
func (s *Server) readJob(conn net.Conn) ([]byte, error) {
	s.mu.Lock()
	idle := s.idleTimeout
	s.mu.Unlock()

	var job bytes.Buffer
	buf := make([]byte, 4096)
	for {
		conn.SetReadDeadline(time.Now().Add(idle))
		n, err := conn.Read(buf)
		if n > 0 {
			if job.Len()+n > maxJobSize {
				return nil, fmt.Errorf("job exceeds %d bytes", maxJobSize)
			}
			job.Write(buf[:n])
		}
		if err == nil {
			continue
		}

		var netErr net.Error
		switch {
		case errors.Is(err, io.EOF):
			return job.Bytes(), nil
		case errors.As(err, &netErr) && netErr.Timeout():
			return job.Bytes(), nil
		case !s.IsRunning():
			return job.Bytes(), nil
		}
		return nil, err
	}
}

// Stop stops the TCP server and waits for in-flight jobs
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Println("Stop called but server is not running")
		return nil
	}

	s.logger.Println("Stopping server...")
	s.running = false
	listener := s.listener
	cancel := s.cancel
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	cancel()

	s.logger.Println("Waiting for active connections to close...")
	s.wg.Wait()
	s.logger.Println("Server stopped successfully")
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the configured server address
func (s *Server) Address() string {
	return s.address
}

// Addr returns the bound listener address, or nil when stopped
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || !s.running {
		return nil
	}
	return s.listener.Addr()
}

// Target returns the printer raw jobs are sent to
func (s *Server) Target() epos.PrinterTarget {
	return s.target
}

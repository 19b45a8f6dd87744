package adapter

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultTCPPort is the raw printing port of networked receipt printers
const DefaultTCPPort = "9100"

// TCPAdapter manages communication with a networked printer
type TCPAdapter struct {
	address     string
	dialTimeout time.Duration
	readTimeout time.Duration
	conn        net.Conn
	mu          sync.Mutex
}

// NewTCPAdapter creates an adapter for host or host:port
func NewTCPAdapter(address string, dialTimeout, readTimeout time.Duration) *TCPAdapter {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultTCPPort)
	}
	return &TCPAdapter{
		address:     address,
		dialTimeout: dialTimeout,
		readTimeout: readTimeout,
	}
}

// Address returns the dialed host:port
func (a *TCPAdapter) Address() string {
	return a.address
}

// Open dials the printer
func (a *TCPAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		return errors.New("connection already open")
	}

	conn, err := net.DialTimeout("tcp", a.address, a.dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", a.address, err)
	}

	a.conn = conn
	return nil
}

func (a *TCPAdapter) current() (net.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil, errors.New("connection not open")
	}
	return a.conn, nil
}

// SetDeadline bounds subsequent writes and reads
func (a *TCPAdapter) SetDeadline(t time.Time) error {
	conn, err := a.current()
	if err != nil {
		return err
	}
	return conn.SetDeadline(t)
}

// Write sends data to the printer
func (a *TCPAdapter) Write(data []byte) (int, error) {
	conn, err := a.current()
	if err != nil {
		return 0, err
	}
	n, err := conn.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

// Read reads a status response from the printer
func (a *TCPAdapter) Read(buf []byte) (int, error) {
	conn, err := a.current()
	if err != nil {
		return 0, err
	}
	if a.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(a.readTimeout))
	}
	n, err := conn.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}
	return n, nil
}

// Close closes the connection
func (a *TCPAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

// IsOpen returns whether the connection is open
func (a *TCPAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

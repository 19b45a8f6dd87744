package adapter

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// SerialAdapter talks to a Bluetooth SPP printer bound to a serial device
// such as /dev/rfcomm0
type SerialAdapter struct {
	config *serial.Config
	port   *serial.Port
	mu     sync.Mutex
}

// NewSerialAdapter creates an adapter for the given device path
func NewSerialAdapter(path string, baud int, readTimeout time.Duration) *SerialAdapter {
	if baud <= 0 {
		baud = 115200
	}
	return &SerialAdapter{
		config: &serial.Config{
			Name:        path,
			Baud:        baud,
			ReadTimeout: readTimeout,
		},
	}
}

// Path returns the serial device path
func (a *SerialAdapter) Path() string {
	return a.config.Name
}

// Open opens the serial device
func (a *SerialAdapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port != nil {
		return errors.New("port already open")
	}

	port, err := serial.OpenPort(a.config)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", a.config.Name, err)
	}
	a.port = port
	return nil
}

// Write sends data to the printer
func (a *SerialAdapter) Write(data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port == nil {
		return 0, errors.New("port not open")
	}
	n, err := a.port.Write(data)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

// Read reads data from the printer, bounded by the configured read timeout
func (a *SerialAdapter) Read(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port == nil {
		return 0, errors.New("port not open")
	}
	n, err := a.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read failed: %w", err)
	}
	return n, nil
}

// Close closes the serial device
func (a *SerialAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.port == nil {
		return nil
	}
	err := a.port.Close()
	a.port = nil
	return err
}

// IsOpen returns whether the port is open
func (a *SerialAdapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port != nil
}

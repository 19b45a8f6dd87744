package printer

import (
	"fmt"
	"log"
	"os"

	"github.com/nixxel-company-limited/epos-bridge/adapter"
	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// Dialer builds unopened adapters for a target
type Dialer interface {
	Dial(target epos.PrinterTarget) (adapter.Adapter, error)
}

// AdapterDriver opens printers over adapters built by a Dialer
type AdapterDriver struct {
	dialer Dialer
	logger *log.Logger
}

// NewDriver creates a driver using the given dialer
func NewDriver(dialer Dialer) *AdapterDriver {
	logger := log.New(os.Stdout, "[PRINTER] ", log.LstdFlags|log.Lmsgprefix)
	return NewDriverWithLogger(dialer, logger)
}

// NewDriverWithLogger creates a driver with a custom logger
func NewDriverWithLogger(dialer Dialer, logger *log.Logger) *AdapterDriver {
	return &AdapterDriver{dialer: dialer, logger: logger}
}

// Open dials and opens the target
func (d *AdapterDriver) Open(target epos.PrinterTarget) (Device, error) {
	a, err := d.dialer.Dial(target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", adapter.FormatTarget(target.PortType, target.Address), err)
	}
	if err := a.Open(); err != nil {
		return nil, fmt.Errorf("open %s: %w", adapter.FormatTarget(target.PortType, target.Address), err)
	}
	d.logger.Printf("Connected to %s printer at %s", target.Series, adapter.FormatTarget(target.PortType, target.Address))
	return NewWithLogger(a, target.Series, d.logger), nil
}

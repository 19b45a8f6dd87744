package discovery

import (
	"context"
	"log"
	"os"
	"sort"
	"time"

	"github.com/nixxel-company-limited/epos-bridge/adapter"
	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// BluetoothOptions lists the paired printers and how to reach them
type BluetoothOptions struct {
	// Devices maps a BD address to its bound serial device, e.g. /dev/rfcomm0
	Devices map[string]string

	Baud       int
	QueryModel bool
	Timeout    time.Duration
}

// BluetoothScanner reports the configured printers whose serial device
// is present. Pairing and binding happen outside the bridge.
type BluetoothScanner struct {
	opts   BluetoothOptions
	logger *log.Logger
}

// NewBluetoothScanner creates a Bluetooth scanner with the default logger
func NewBluetoothScanner(opts BluetoothOptions) *BluetoothScanner {
	logger := log.New(os.Stdout, "[DISCOVERY] ", log.LstdFlags|log.Lmsgprefix)
	return NewBluetoothScannerWithLogger(opts, logger)
}

// NewBluetoothScannerWithLogger creates a Bluetooth scanner with a custom logger
func NewBluetoothScannerWithLogger(opts BluetoothOptions, logger *log.Logger) *BluetoothScanner {
	if opts.Timeout <= 0 {
		opts.Timeout = 500 * time.Millisecond
	}
	return &BluetoothScanner{opts: opts, logger: logger}
}

// Start checks every bound device in address order
func (s *BluetoothScanner) Start(ctx context.Context, filter epos.PortType, found FoundFunc) error {
	if !filter.Includes(epos.PortBluetooth) {
		return nil
	}

	addresses := make([]string, 0, len(s.opts.Devices))
	for bd := range s.opts.Devices {
		addresses = append(addresses, bd)
	}
	sort.Strings(addresses)

	go func() {
		for _, bd := range addresses {
			if ctx.Err() != nil {
				return
			}
			path := s.opts.Devices[bd]
			if _, err := os.Stat(path); err != nil {
				continue
			}

			name := "Bluetooth Printer"
			if s.opts.QueryModel {
				a := adapter.NewSerialAdapter(path, s.opts.Baud, s.opts.Timeout)
				if model, err := queryModel(a, s.logger); err == nil && model != "" {
					name = model
				} else if err != nil {
					s.logger.Printf("Model query on %s failed: %v", path, err)
				}
			}

			found(epos.DiscoveredDevice{
				BDAddress:   bd,
				DisplayName: name,
				DeviceType:  DeviceTypePrinter,
				PrintType:   epos.PortBluetooth.String(),
				Target:      adapter.FormatTarget(epos.PortBluetooth, bd),
			})
		}
	}()
	return nil
}

// Stop is a no-op; the check loop ends with the scan context
func (s *BluetoothScanner) Stop() error { return nil }

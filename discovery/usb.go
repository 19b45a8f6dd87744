package discovery

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/gousb"

	"github.com/nixxel-company-limited/epos-bridge/adapter"
	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// USBScanner enumerates the printer-class devices on the USB bus
type USBScanner struct {
	logger *log.Logger
}

// NewUSBScanner creates a USB scanner with the default logger
func NewUSBScanner() *USBScanner {
	logger := log.New(os.Stdout, "[DISCOVERY] ", log.LstdFlags|log.Lmsgprefix)
	return NewUSBScannerWithLogger(logger)
}

// NewUSBScannerWithLogger creates a USB scanner with a custom logger
func NewUSBScannerWithLogger(logger *log.Logger) *USBScanner {
	return &USBScanner{logger: logger}
}

// Start enumerates the bus once. Enumeration is fast enough that every
// device is reported before Start returns.
func (s *USBScanner) Start(ctx context.Context, filter epos.PortType, found FoundFunc) (err error) {
	if !filter.Includes(epos.PortUSB) {
		return nil
	}

	// gousb panics when libusb cannot be initialised
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("usb unavailable: %v", r)
		}
	}()

	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	devices := adapter.FindPrinters(usbCtx)
	for _, dev := range devices {
		if ctx.Err() == nil {
			found(usbDevice(dev))
		}
		dev.Close()
	}
	s.logger.Printf("Found %d USB printer(s)", len(devices))
	return nil
}

// Stop is a no-op; enumeration finishes inside Start
func (s *USBScanner) Stop() error { return nil }

func usbDevice(dev *gousb.Device) epos.DiscoveredDevice {
	vidpid := fmt.Sprintf("%s:%s", dev.Desc.Vendor, dev.Desc.Product)

	name, err := dev.Product()
	if err != nil || name == "" {
		name = "USB Printer " + vidpid
	}
	if manufacturer, err := dev.Manufacturer(); err == nil && manufacturer != "" {
		name = manufacturer + " " + name
	}

	address := vidpid
	if serial, err := dev.SerialNumber(); err == nil && serial != "" {
		address = serial
	}

	return epos.DiscoveredDevice{
		DisplayName: name,
		DeviceType:  DeviceTypePrinter,
		PrintType:   epos.PortUSB.String(),
		Target:      adapter.FormatTarget(epos.PortUSB, address),
	}
}

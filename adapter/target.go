package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// ParseTarget splits a connect string such as "TCP:192.168.1.50",
// "USB:04b8:0202" or "BT:00:01:90:AA:BB:CC" into its port type and address.
// A string without a recognised prefix is a TCP host.
func ParseTarget(target string) (epos.PortType, string) {
	target = strings.TrimSpace(target)
	prefix, rest, ok := strings.Cut(target, ":")
	if ok {
		switch strings.ToUpper(prefix) {
		case "TCP", "TCPS":
			return epos.PortTCP, rest
		case "USB":
			return epos.PortUSB, rest
		case "BT", "BLE":
			return epos.PortBluetooth, rest
		}
	}
	if strings.HasPrefix(target, "/dev/") {
		return epos.PortBluetooth, target
	}
	return epos.PortTCP, target
}

// FormatTarget builds the connect string reported by discovery
func FormatTarget(port epos.PortType, address string) string {
	return port.String() + ":" + address
}

// Dialer builds unopened adapters for printer targets
type Dialer struct {
	DialTimeout time.Duration
	ReadTimeout time.Duration
	SerialBaud  int

	// Bluetooth maps a printer's BD address to the serial device it is bound to
	Bluetooth map[string]string
}

// Dial returns the adapter for target. The adapter is not opened.
func (d *Dialer) Dial(target epos.PrinterTarget) (Adapter, error) {
	switch target.PortType {
	case epos.PortTCP:
		if target.Address == "" {
			return nil, fmt.Errorf("empty TCP address")
		}
		return NewTCPAdapter(target.Address, d.DialTimeout, d.ReadTimeout), nil
	case epos.PortUSB:
		a, err := NewUSBAdapter(target.Address, d.ReadTimeout)
		if err != nil {
			return nil, err
		}
		return a, nil
	case epos.PortBluetooth:
		path, err := d.bluetoothPath(target.Address)
		if err != nil {
			return nil, err
		}
		return NewSerialAdapter(path, d.SerialBaud, d.ReadTimeout), nil
	}
	return nil, fmt.Errorf("unsupported port type %s", target.PortType)
}

func (d *Dialer) bluetoothPath(address string) (string, error) {
	if strings.HasPrefix(address, "/") {
		return address, nil
	}
	for bd, path := range d.Bluetooth {
		if strings.EqualFold(bd, address) {
			return path, nil
		}
	}
	return "", fmt.Errorf("no serial device bound to bluetooth address %q", address)
}

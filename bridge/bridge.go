// Package bridge turns a method name and its argument map into exactly one
// PrinterResult. Nothing crosses this boundary as an error.
package bridge

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/spf13/cast"

	"github.com/nixxel-company-limited/epos-bridge/adapter"
	"github.com/nixxel-company-limited/epos-bridge/command"
	"github.com/nixxel-company-limited/epos-bridge/epos"
	"github.com/nixxel-company-limited/epos-bridge/session"
)

// Printers is the session surface the dispatcher drives
type Printers interface {
	Print(ctx context.Context, portType string, target epos.PrinterTarget, cmds []command.PrintCommand) epos.PrinterResult
	SetSetting(ctx context.Context, portType string, target epos.PrinterTarget, req session.SettingRequest) epos.PrinterResult
	GetSetting(ctx context.Context, portType string, target epos.PrinterTarget) epos.PrinterResult
	Info(ctx context.Context, portType string, target epos.PrinterTarget) epos.PrinterResult
	State() session.State
	Target() (epos.PrinterTarget, bool)
}

// Discoverer runs one discovery window
type Discoverer interface {
	Discover(ctx context.Context, filter epos.PortType) epos.PrinterResult
}

// Connection is the content of an isPrinterConnected result
type Connection struct {
	Connected bool   `json:"connected"`
	State     string `json:"state"`
	Target    string `json:"target,omitempty"`
}

// Dispatcher routes method calls to the session and discovery coordinator
type Dispatcher struct {
	printers  Printers
	discovery Discoverer
	logger    *log.Logger
}

// New creates a dispatcher with the default logger
func New(printers Printers, discovery Discoverer) *Dispatcher {
	logger := log.New(os.Stdout, "[BRIDGE] ", log.LstdFlags|log.Lmsgprefix)
	return NewWithLogger(printers, discovery, logger)
}

// NewWithLogger creates a dispatcher with a custom logger
func NewWithLogger(printers Printers, discovery Discoverer, logger *log.Logger) *Dispatcher {
	return &Dispatcher{printers: printers, discovery: discovery, logger: logger}
}

// Handle runs method to completion and returns its single result
func (d *Dispatcher) Handle(ctx context.Context, method string, args map[string]any) epos.PrinterResult {
	d.logger.Printf("Method called: %s", method)
	switch method {
	case epos.MethodDiscovery:
		return d.discover(ctx, args)
	case epos.MethodPrint:
		return d.print(ctx, args)
	case epos.MethodGetPrinterSetting:
		return d.getSetting(ctx, args)
	case epos.MethodSetPrinterSetting:
		return d.setSetting(ctx, args)
	case epos.MethodGetPrinterInfo:
		return d.info(ctx, args)
	case epos.MethodIsPrinterConnected:
		return d.connected()
	}
	d.logger.Printf("Method %s is not supported yet", method)
	return epos.Failed(method, epos.ErrUnsupported)
}

func (d *Dispatcher) discover(ctx context.Context, args map[string]any) epos.PrinterResult {
	raw := stringArg(args, "type")
	if raw == "" {
		return epos.Failed(epos.MethodDiscovery, epos.ErrParam)
	}
	filter, ok := epos.ParsePortType(raw)
	if !ok {
		d.logger.Printf("Discovery type %q is not supported", raw)
		return epos.Failed(epos.MethodDiscovery, epos.ErrUnsupported)
	}
	return d.discovery.Discover(ctx, filter)
}

func (d *Dispatcher) print(ctx context.Context, args map[string]any) epos.PrinterResult {
	portType, target, ok := d.target(args)
	if !ok {
		return epos.Failed(epos.PrintType(portType), epos.ErrParam)
	}
	raw, err := cast.ToSliceE(args["commands"])
	if err != nil || len(raw) == 0 {
		d.logger.Printf("Missing print commands")
		return epos.Failed(epos.PrintType(portType), epos.ErrParam)
	}
	return d.printers.Print(ctx, portType, target, command.Decode(raw))
}

func (d *Dispatcher) getSetting(ctx context.Context, args map[string]any) epos.PrinterResult {
	portType, target, ok := d.target(args)
	if !ok {
		return epos.Failed(epos.PrintType(portType), epos.ErrParam)
	}
	return d.printers.GetSetting(ctx, portType, target)
}

func (d *Dispatcher) setSetting(ctx context.Context, args map[string]any) epos.PrinterResult {
	portType, target, ok := d.target(args)
	if !ok {
		return epos.Failed(epos.PrintType(portType), epos.ErrParam)
	}
	req := session.SettingRequest{
		PaperWidth:   intArg(args, "paper_width"),
		PrintDensity: intArg(args, "print_density"),
		PrintSpeed:   intArg(args, "print_speed"),
	}
	return d.printers.SetSetting(ctx, portType, target, req)
}

func (d *Dispatcher) info(ctx context.Context, args map[string]any) epos.PrinterResult {
	portType, target, ok := d.target(args)
	if !ok {
		return epos.Failed(epos.MethodGetPrinterInfo, epos.ErrParam)
	}
	return d.printers.Info(ctx, portType, target)
}

func (d *Dispatcher) connected() epos.PrinterResult {
	state := d.printers.State()
	c := Connection{Connected: state != session.Idle, State: state.String()}
	if target, ok := d.printers.Target(); ok {
		c.Target = adapter.FormatTarget(target.PortType, target.Address)
	}
	return epos.Succeeded(epos.MethodIsPrinterConnected, epos.CodeSuccess.Message(), c)
}

// target reads the type, series and target arguments every device
// operation requires. A target without a port prefix takes its port from type.
func (d *Dispatcher) target(args map[string]any) (string, epos.PrinterTarget, bool) {
	portType := stringArg(args, "type")
	seriesName := stringArg(args, "series")
	raw := stringArg(args, "target")
	if portType == "" || seriesName == "" || raw == "" {
		d.logger.Printf("Missing print data: type=%q series=%q target=%q", portType, seriesName, raw)
		return portType, epos.PrinterTarget{}, false
	}

	series, known := epos.ParseSeries(seriesName)
	if !known {
		d.logger.Printf("Unknown series %q, using %s", seriesName, series)
	}

	port, address := adapter.ParseTarget(raw)
	prefixed := port != epos.PortTCP || address != raw
	if fromType, ok := epos.ParsePortType(portType); ok && fromType != epos.PortAll && !prefixed {
		port = fromType
	}
	if address == "" {
		d.logger.Printf("Empty address in target %q", raw)
		return portType, epos.PrinterTarget{}, false
	}
	return portType, epos.PrinterTarget{Address: address, Series: series, PortType: port}, true
}

func stringArg(args map[string]any, key string) string {
	return strings.TrimSpace(cast.ToString(args[key]))
}

// intArg returns nil for absent or non-numeric values
func intArg(args map[string]any, key string) *int {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return nil
	}
	return &n
}

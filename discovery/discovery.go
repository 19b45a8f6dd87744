// Package discovery runs timed scan windows over the printer transports and
// collects the devices found, de-duplicated by address.
package discovery

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// Result messages
const (
	MessageSuccess    = "Successfully!"
	MessageStartError = "Error while search printer"
)

// FoundFunc receives every device a scanner reports. It may be called from
// any goroutine, any number of times.
type FoundFunc func(device epos.DiscoveredDevice)

// Scanner searches one or more transports for printers
type Scanner interface {
	// Start begins scanning for devices matching filter. It returns once the
	// scan is running; devices are reported until ctx is done or Stop is called.
	Start(ctx context.Context, filter epos.PortType, found FoundFunc) error
	// Stop ends the running scan. Stopping an idle scanner is not an error.
	Stop() error
}

// Options sets the scan window lengths
type Options struct {
	Window    time.Duration
	USBWindow time.Duration
}

func DefaultOptions() Options {
	return Options{Window: 7 * time.Second, USBWindow: time.Second}
}

type scan struct {
	devices []epos.DiscoveredDevice
	index   map[string]int
	cancel  context.CancelFunc
	stopped chan struct{}
	active  bool
}

// Coordinator runs one discovery window at a time. Starting a new window
// stops the running one and clears its list.
type Coordinator struct {
	scanner Scanner
	opts    Options
	logger  *log.Logger

	mu      sync.Mutex
	current *scan
}

// NewCoordinator creates a coordinator with the default logger
func NewCoordinator(scanner Scanner, opts Options) *Coordinator {
	logger := log.New(os.Stdout, "[DISCOVERY] ", log.LstdFlags|log.Lmsgprefix)
	return NewCoordinatorWithLogger(scanner, opts, logger)
}

// NewCoordinatorWithLogger creates a coordinator with a custom logger
func NewCoordinatorWithLogger(scanner Scanner, opts Options, logger *log.Logger) *Coordinator {
	defaults := DefaultOptions()
	if opts.Window <= 0 {
		opts.Window = defaults.Window
	}
	if opts.USBWindow <= 0 {
		opts.USBWindow = defaults.USBWindow
	}
	return &Coordinator{scanner: scanner, opts: opts, logger: logger}
}

// WindowFor returns the scan window used for filter
func (c *Coordinator) WindowFor(filter epos.PortType) time.Duration {
	if filter == epos.PortUSB {
		return c.opts.USBWindow
	}
	return c.opts.Window
}

// Discover scans for the filter's window and returns the devices found in
// first-seen order. A superseded window returns what it had collected.
func (c *Coordinator) Discover(ctx context.Context, filter epos.PortType) epos.PrinterResult {
	s, scanCtx := c.begin(ctx)

	c.logger.Printf("Starting %s discovery for %s", filter, c.WindowFor(filter))
	if err := c.scanner.Start(scanCtx, filter, c.upsert(s)); err != nil {
		c.logger.Printf("Error starting discovery: %v", err)
		c.finish(s)
		return epos.PrinterResult{
			Type:    epos.MethodDiscovery,
			Success: false,
			Message: MessageStartError,
			Content: epos.ErrFailure,
		}
	}

	timer := time.NewTimer(c.WindowFor(filter))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.stopped:
		c.logger.Printf("Discovery superseded by a new request")
	case <-ctx.Done():
		c.logger.Printf("Discovery cancelled: %v", ctx.Err())
	}

	devices := c.finish(s)
	c.logger.Printf("Discovery finished with %d device(s)", len(devices))
	return epos.Succeeded(epos.MethodDiscovery, MessageSuccess, devices)
}

// begin stops any running window and installs a fresh, empty one
func (c *Coordinator) begin(ctx context.Context) (*scan, context.Context) {
	scanCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	stopped := c.current != nil && c.deactivateLocked(c.current)
	s := &scan{
		index:   make(map[string]int),
		cancel:  cancel,
		stopped: make(chan struct{}),
		active:  true,
	}
	c.current = s
	c.mu.Unlock()

	if stopped {
		c.stopScanner()
	}
	return s, scanCtx
}

// deactivateLocked ends s exactly once and reports whether it was running
func (c *Coordinator) deactivateLocked(s *scan) bool {
	if !s.active {
		return false
	}
	s.active = false
	s.cancel()
	close(s.stopped)
	return true
}

func (c *Coordinator) stopScanner() {
	if err := c.scanner.Stop(); err != nil {
		c.logger.Printf("Error stopping discovery: %v", err)
	}
}

// finish stops s and returns an immutable copy of its devices
func (c *Coordinator) finish(s *scan) []epos.DiscoveredDevice {
	c.mu.Lock()
	stopped := c.deactivateLocked(s)
	out := make([]epos.DiscoveredDevice, len(s.devices))
	copy(out, s.devices)
	c.mu.Unlock()

	if stopped {
		c.stopScanner()
	}
	return out
}

// upsert adds or replaces a device in s. Devices without a name are
// ignored, and nothing is recorded once s has stopped.
func (c *Coordinator) upsert(s *scan) FoundFunc {
	return func(device epos.DiscoveredDevice) {
		if device.DisplayName == "" {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if !s.active {
			return
		}
		key := device.Key()
		if i, ok := s.index[key]; ok {
			s.devices[i] = device
			return
		}
		s.index[key] = len(s.devices)
		s.devices = append(s.devices, device)
	}
}

// Devices returns a copy of the list collected by the running or last window
func (c *Coordinator) Devices() []epos.DiscoveredDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return []epos.DiscoveredDevice{}
	}
	out := make([]epos.DiscoveredDevice, len(c.current.devices))
	copy(out, c.current.devices)
	return out
}

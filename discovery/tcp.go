package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nixxel-company-limited/epos-bridge/adapter"
	"github.com/nixxel-company-limited/epos-bridge/epos"
	"github.com/nixxel-company-limited/epos-bridge/printer"
)

// DeviceTypePrinter is the device layer's TYPE_PRINTER value
const DeviceTypePrinter = "1"

// minimum prefix length scanned; larger networks are narrowed to the host's /24
const minPrefixBits = 22

// TCPOptions configures the network scan
type TCPOptions struct {
	Port         int
	Subnet       string
	Workers      int
	Rate         float64
	ProbeTimeout time.Duration
	QueryModel   bool
}

// TCPScanner probes every host of the local subnets on the raw printing port
type TCPScanner struct {
	opts   TCPOptions
	logger *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewTCPScanner creates a network scanner with the default logger
func NewTCPScanner(opts TCPOptions) *TCPScanner {
	logger := log.New(os.Stdout, "[DISCOVERY] ", log.LstdFlags|log.Lmsgprefix)
	return NewTCPScannerWithLogger(opts, logger)
}

// NewTCPScannerWithLogger creates a network scanner with a custom logger
func NewTCPScannerWithLogger(opts TCPOptions, logger *log.Logger) *TCPScanner {
	if opts.Port <= 0 {
		opts.Port, _ = strconv.Atoi(adapter.DefaultTCPPort)
	}
	if opts.Workers <= 0 {
		opts.Workers = 50
	}
	if opts.Rate <= 0 {
		opts.Rate = 200
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 300 * time.Millisecond
	}
	return &TCPScanner{opts: opts, logger: logger}
}

// Start launches the probe workers and returns immediately
func (s *TCPScanner) Start(ctx context.Context, filter epos.PortType, found FoundFunc) error {
	if !filter.Includes(epos.PortTCP) {
		return nil
	}
	hosts, err := s.hosts()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Printf("Probing %d host(s) on port %d", len(hosts), s.opts.Port)
	limiter := rate.NewLimiter(rate.Limit(s.opts.Rate), s.opts.Workers)
	jobs := make(chan netip.Addr)

	go func() {
		defer close(jobs)
		for _, host := range hosts {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case jobs <- host:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < s.opts.Workers; i++ {
		go func() {
			for host := range jobs {
				if device, ok := s.probe(ctx, host); ok {
					found(device)
				}
			}
		}()
	}
	return nil
}

// Stop cancels the running probes
func (s *TCPScanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func (s *TCPScanner) probe(ctx context.Context, host netip.Addr) (epos.DiscoveredDevice, bool) {
	addr := netip.AddrPortFrom(host, uint16(s.opts.Port)).String()
	dialer := net.Dialer{Timeout: s.opts.ProbeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return epos.DiscoveredDevice{}, false
	}
	conn.Close()

	ip := host.String()
	name := "ESC/POS Printer"
	if s.opts.QueryModel && ctx.Err() == nil {
		a := adapter.NewTCPAdapter(addr, s.opts.ProbeTimeout, s.opts.ProbeTimeout)
		if model, err := queryModel(a, s.logger); err == nil && model != "" {
			name = model
		}
	}

	return epos.DiscoveredDevice{
		IPAddress:   ip,
		DisplayName: name,
		DeviceType:  DeviceTypePrinter,
		PrintType:   epos.PortTCP.String(),
		Target:      adapter.FormatTarget(epos.PortTCP, ip),
	}, true
}

// queryModel opens a, asks for the model name and closes it again
func queryModel(a adapter.Adapter, logger *log.Logger) (string, error) {
	if err := a.Open(); err != nil {
		return "", err
	}
	p := printer.NewWithLogger(a, epos.SeriesTMT88, logger)
	defer p.Close()
	return p.ModelName()
}

func (s *TCPScanner) hosts() ([]netip.Addr, error) {
	var prefixes []netip.Prefix
	var self []netip.Addr

	if s.opts.Subnet == "" || strings.EqualFold(s.opts.Subnet, "auto") {
		local, addrs, err := localPrefixes()
		if err != nil {
			return nil, err
		}
		prefixes, self = local, addrs
	} else {
		for _, part := range strings.Split(s.opts.Subnet, ",") {
			prefix, err := netip.ParsePrefix(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("invalid subnet %q: %w", part, err)
			}
			prefixes = append(prefixes, prefix)
		}
	}
	if len(prefixes) == 0 {
		return nil, errors.New("no IPv4 network to scan")
	}

	var hosts []netip.Addr
	for _, prefix := range prefixes {
		h, err := SubnetHosts(prefix, self...)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h...)
	}
	return hosts, nil
}

// SubnetHosts lists the host addresses of an IPv4 prefix, without the
// network and broadcast addresses and any excluded address
func SubnetHosts(prefix netip.Prefix, exclude ...netip.Addr) ([]netip.Addr, error) {
	prefix = prefix.Masked()
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("subnet %s is not IPv4", prefix)
	}
	if prefix.Bits() < minPrefixBits {
		return nil, fmt.Errorf("subnet %s is too large to scan", prefix)
	}

	skip := make(map[netip.Addr]bool, len(exclude))
	for _, a := range exclude {
		skip[a] = true
	}

	var hosts []netip.Addr
	for a := prefix.Addr().Next(); prefix.Contains(a) && prefix.Contains(a.Next()); a = a.Next() {
		if !skip[a] {
			hosts = append(hosts, a)
		}
	}
	return hosts, nil
}

// localPrefixes returns the IPv4 networks of the up, non-loopback
// interfaces along with the host's own addresses
func localPrefixes() ([]netip.Prefix, []netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, fmt.Errorf("list interfaces: %w", err)
	}

	seen := make(map[netip.Prefix]bool)
	var prefixes []netip.Prefix
	var self []netip.Addr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			ip, _ := netip.AddrFromSlice(ipnet.IP.To4())
			bits, _ := ipnet.Mask.Size()
			if bits < 24 {
				bits = 24
			}
			prefix := netip.PrefixFrom(ip, bits).Masked()
			self = append(self, ip)
			if !seen[prefix] {
				seen[prefix] = true
				prefixes = append(prefixes, prefix)
			}
		}
	}
	return prefixes, self, nil
}

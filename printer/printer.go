package printer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/nixxel-company-limited/epos-bridge/adapter"
	"github.com/nixxel-company-limited/epos-bridge/epos"
)

var (
	ErrNotOpen       = errors.New("printer not open")
	ErrEmptyBuffer   = errors.New("command buffer is empty")
	ErrInTransaction = errors.New("transaction already open")
)

// Printer is an ESC/POS device reached through an adapter
type Printer struct {
	adapter    adapter.Adapter
	series     epos.Series
	buf        bytes.Buffer
	inTx       bool
	listener   ReceiveFunc
	statusWait time.Duration
	mu         sync.Mutex
	ioMu       sync.Mutex
	logger     *log.Logger
}

// New wraps an opened adapter
func New(a adapter.Adapter, series epos.Series) *Printer {
	logger := log.New(os.Stdout, "[PRINTER] ", log.LstdFlags|log.Lmsgprefix)
	return NewWithLogger(a, series, logger)
}

// NewWithLogger wraps an opened adapter with a custom logger
func NewWithLogger(a adapter.Adapter, series epos.Series, logger *log.Logger) *Printer {
	return &Printer{
		adapter:    a,
		series:     series,
		statusWait: time.Second,
		logger:     logger,
	}
}

func (p *Printer) add(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.adapter.IsOpen() {
		return ErrNotOpen
	}
	p.buf.Write(data)
	return nil
}

// Buffered returns a copy of the job buffer
func (p *Printer) Buffered() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.buf.Bytes())
}

// AddText appends text as-is; line breaks are the caller's
func (p *Printer) AddText(text string) error {
	return p.add([]byte(text))
}

// AddCommand appends raw device bytes
func (p *Printer) AddCommand(data []byte) error {
	return p.add(data)
}

// AddImage appends a raster image scaled to width x height dots
func (p *Printer) AddImage(img image.Image, x, y, width, height int) error {
	data, err := rasterImage(img, x, y, width, height, p.series.DotsPerLine())
	if err != nil {
		return err
	}
	return p.add(data)
}

func (p *Printer) AddFeedLine(lines int) error {
	return p.add(encodeFeedLine(lines))
}

func (p *Printer) AddLineSpace(dots int) error {
	return p.add(encodeLineSpace(dots))
}

func (p *Printer) AddCut(mode epos.CutMode) error {
	return p.add(encodeCut(mode))
}

func (p *Printer) AddPageBegin() error {
	return p.add(encodePageBegin())
}

func (p *Printer) AddPageArea(x, y, width, height int) error {
	return p.add(encodePageArea(x, y, width, height))
}

func (p *Printer) AddPagePosition(x, y int) error {
	return p.add(encodePagePosition(x, y))
}

func (p *Printer) AddPageEnd() error {
	return p.add(encodePageEnd())
}

func (p *Printer) AddTextAlign(align epos.Align) error {
	return p.add(encodeAlign(align))
}

func (p *Printer) AddTextFont(font epos.Font) error {
	return p.add(encodeFont(font))
}

func (p *Printer) AddTextSmooth(smooth bool) error {
	return p.add(encodeSmooth(smooth))
}

func (p *Printer) AddTextSize(width, height int) error {
	return p.add(encodeTextSize(width, height))
}

func (p *Printer) AddTextStyle(reverse, underline, emphasis *bool, color epos.Color) error {
	return p.add(encodeTextStyle(reverse, underline, emphasis, color))
}

func (p *Printer) AddBarcode(data string, symbology epos.Symbology, hri epos.HRIPosition, font epos.Font, width, height int) error {
	return p.add(encodeBarcode(data, symbology, hri, font, width, height))
}

func (p *Printer) AddPulse(drawer, pulse int) error {
	return p.add(encodePulse(drawer, pulse))
}

// BeginTransaction marks the start of a job
func (p *Printer) BeginTransaction() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.adapter.IsOpen() {
		return ErrNotOpen
	}
	if p.inTx {
		return ErrInTransaction
	}
	p.inTx = true
	return nil
}

// EndTransaction closes the job boundary
func (p *Printer) EndTransaction() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inTx = false
	return nil
}

// ClearCommandBuffer drops every buffered primitive
func (p *Printer) ClearCommandBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.Reset()
	return nil
}

// SetReceiveListener registers the receipt callback; nil unsets it
func (p *Printer) SetReceiveListener(fn ReceiveFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = fn
}

// SendData hands the buffered job to a background writer. The receipt
// listener fires exactly once with the outcome.
func (p *Printer) SendData(timeout time.Duration) error {
	p.mu.Lock()
	if !p.adapter.IsOpen() {
		p.mu.Unlock()
		return ErrNotOpen
	}
	if p.buf.Len() == 0 {
		p.mu.Unlock()
		return ErrEmptyBuffer
	}
	job := bytes.Clone(p.buf.Bytes())
	listener := p.listener
	p.mu.Unlock()

	go p.transmit(job, timeout, listener)
	return nil
}

func (p *Printer) transmit(job []byte, timeout time.Duration, listener ReceiveFunc) {
	code, status := p.write(job, timeout)
	p.logger.Printf("Job of %d bytes finished with code %d", len(job), code)
	if listener != nil {
		listener(code, status)
	}
}

func (p *Printer) write(job []byte, timeout time.Duration) (int, *epos.StatusSnapshot) {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()

	if timeout > 0 {
		adapter.SetDeadline(p.adapter, time.Now().Add(timeout))
		defer adapter.SetDeadline(p.adapter, time.Time{})
	}

	for written := 0; written < len(job); {
		n, err := p.adapter.Write(job[written:])
		if err != nil {
			p.logger.Printf("Error writing job: %v", err)
			return writeErrorCode(err), nil
		}
		written += n
	}

	status, err := p.readStatus()
	if err != nil {
		p.logger.Printf("Status unavailable after job: %v", err)
		return epos.ResultSuccess, nil
	}
	return ReceiptCode(status), status
}

func writeErrorCode(err error) int {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return epos.ResultTimeout
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return epos.ResultTimeout
	}
	return epos.ResultPort
}

// Status queries the device with DLE EOT 1..4
func (p *Printer) Status() (*epos.StatusSnapshot, error) {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()

	adapter.SetDeadline(p.adapter, time.Now().Add(p.statusWait))
	defer adapter.SetDeadline(p.adapter, time.Time{})
	return p.readStatus()
}

func (p *Printer) readStatus() (*epos.StatusSnapshot, error) {
	if !p.adapter.IsOpen() {
		return nil, ErrNotOpen
	}
	var resp [4]byte
	for i, n := range []byte{statusPrinter, statusOffline, statusError, statusPaper} {
		b, err := p.query([]byte{DLE, EOT, n}, 1)
		if err != nil {
			return nil, fmt.Errorf("status %d: %w", n, err)
		}
		resp[i] = b[0]
	}
	return ParseStatus(resp[0], resp[1], resp[2], resp[3])
}

// query writes a request and reads until min bytes arrived or a NUL
// terminator is seen when min is zero
func (p *Printer) query(req []byte, min int) ([]byte, error) {
	if _, err := p.adapter.Write(req); err != nil {
		return nil, err
	}
	var out []byte
	buf := make([]byte, 64)
	for {
		n, err := p.adapter.Read(buf)
		out = append(out, buf[:n]...)
		if min > 0 && len(out) >= min {
			return out, nil
		}
		if min == 0 && bytes.IndexByte(out, 0x00) >= 0 {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, errors.New("no response")
		}
	}
}

// SetPrinterSetting writes settings inside a user setting session.
// ParamDefault values and unsupported paper widths are skipped.
func (p *Printer) SetPrinterSetting(timeout time.Duration, settings map[epos.Setting]int) error {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()

	if !p.adapter.IsOpen() {
		return ErrNotOpen
	}
	if timeout > 0 {
		adapter.SetDeadline(p.adapter, time.Now().Add(timeout))
		defer adapter.SetDeadline(p.adapter, time.Time{})
	}

	var cmd []byte
	for _, setting := range []epos.Setting{epos.SettingPaperWidth, epos.SettingPrintDensity, epos.SettingPrintSpeed} {
		value, ok := settings[setting]
		if !ok {
			continue
		}
		if enc, ok := encodeSetting(setting, value); ok {
			cmd = append(cmd, enc...)
		}
	}
	if len(cmd) == 0 {
		return nil
	}

	job := append(append(bytes.Clone(settingEnter), cmd...), settingExit...)
	if _, err := p.adapter.Write(job); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// GetPrinterSetting reads one customized setting value
func (p *Printer) GetPrinterSetting(timeout time.Duration, setting epos.Setting) (int, error) {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()

	if !p.adapter.IsOpen() {
		return 0, ErrNotOpen
	}
	req, ok := encodeSettingQuery(setting)
	if !ok {
		return 0, fmt.Errorf("unsupported setting %s", setting)
	}
	if timeout > 0 {
		adapter.SetDeadline(p.adapter, time.Now().Add(timeout))
		defer adapter.SetDeadline(p.adapter, time.Time{})
	}

	resp, err := p.query(req, 0)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", setting, err)
	}
	return parseSettingResponse(setting, resp)
}

// ModelName asks the device for its model name
func (p *Printer) ModelName() (string, error) {
	p.ioMu.Lock()
	defer p.ioMu.Unlock()

	if !p.adapter.IsOpen() {
		return "", ErrNotOpen
	}
	adapter.SetDeadline(p.adapter, time.Now().Add(p.statusWait))
	defer adapter.SetDeadline(p.adapter, time.Time{})

	resp, err := p.query(modelNameQuery, 0)
	if err != nil {
		return "", err
	}
	return parseModelName(resp)
}

// Close closes the underlying adapter
func (p *Printer) Close() error {
	p.mu.Lock()
	p.listener = nil
	p.inTx = false
	p.buf.Reset()
	p.mu.Unlock()
	return p.adapter.Close()
}

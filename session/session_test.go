package session

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/epos-bridge/command"
	"github.com/nixxel-company-limited/epos-bridge/epos"
	"github.com/nixxel-company-limited/epos-bridge/printer"
)

// MockDevice is a printer.Device that records primitives and answers
// SendData with a scripted receipt
type MockDevice struct {
	mu       sync.Mutex
	calls    []string
	listener printer.ReceiveFunc
	settings map[epos.Setting]int

	receiptCode   int
	receiptStatus *epos.StatusSnapshot
	noReceipt     bool
	sendErr       error
	beginErr      error
	endErr        error
	status        *epos.StatusSnapshot
	model         string
	readable      map[epos.Setting]int
	sendRelease   chan struct{}
}

func (d *MockDevice) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *MockDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *MockDevice) AddText(text string) error {
	d.record("text:" + text)
	return nil
}
func (d *MockDevice) AddCommand(data []byte) error {
	d.record("command")
	return nil
}
func (d *MockDevice) AddImage(img image.Image, x, y, w, h int) error {
	d.record("image")
	return nil
}
func (d *MockDevice) AddFeedLine(lines int) error {
	d.record("feed")
	return nil
}
func (d *MockDevice) AddLineSpace(dots int) error {
	d.record("linespace")
	return nil
}
func (d *MockDevice) AddCut(mode epos.CutMode) error {
	d.record("cut")
	return nil
}
func (d *MockDevice) AddPageBegin() error                 { return nil }
func (d *MockDevice) AddPageArea(x, y, w, h int) error    { return nil }
func (d *MockDevice) AddPagePosition(x, y int) error      { return nil }
func (d *MockDevice) AddPageEnd() error                   { return nil }
func (d *MockDevice) AddTextAlign(align epos.Align) error { return nil }
func (d *MockDevice) AddTextFont(font epos.Font) error    { return nil }
func (d *MockDevice) AddTextSmooth(smooth bool) error     { return nil }
func (d *MockDevice) AddTextSize(w, h int) error          { return nil }
func (d *MockDevice) AddTextStyle(reverse, underline, emphasis *bool, color epos.Color) error {
	return nil
}
func (d *MockDevice) AddBarcode(data string, sym epos.Symbology, hri epos.HRIPosition, font epos.Font, w, h int) error {
	return nil
}
func (d *MockDevice) AddPulse(drawer, pulse int) error {
	d.record("pulse")
	return nil
}

func (d *MockDevice) BeginTransaction() error {
	d.record("begin")
	return d.beginErr
}

func (d *MockDevice) EndTransaction() error {
	d.record("end")
	return d.endErr
}

func (d *MockDevice) ClearCommandBuffer() error {
	d.record("clear")
	return nil
}

func (d *MockDevice) SendData(timeout time.Duration) error {
	d.record("send")
	if d.sendErr != nil {
		return d.sendErr
	}
	d.mu.Lock()
	listener := d.listener
	d.mu.Unlock()
	if d.noReceipt || listener == nil {
		return nil
	}
	go func() {
		if d.sendRelease != nil {
			<-d.sendRelease
		}
		listener(d.receiptCode, d.receiptStatus)
	}()
	return nil
}

func (d *MockDevice) Status() (*epos.StatusSnapshot, error) {
	if d.status == nil {
		return nil, errors.New("no status")
	}
	return d.status, nil
}

func (d *MockDevice) SetReceiveListener(fn printer.ReceiveFunc) {
	if fn == nil {
		d.record("unlisten")
	} else {
		d.record("listen")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = fn
}

func (d *MockDevice) SetPrinterSetting(timeout time.Duration, settings map[epos.Setting]int) error {
	d.record("set")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = settings
	return nil
}

func (d *MockDevice) GetPrinterSetting(timeout time.Duration, setting epos.Setting) (int, error) {
	v, ok := d.readable[setting]
	if !ok {
		return 0, errors.New("not supported")
	}
	return v, nil
}

func (d *MockDevice) ModelName() (string, error) {
	if d.model == "" {
		return "", errors.New("no model")
	}
	return d.model, nil
}

func (d *MockDevice) Close() error {
	d.record("close")
	return nil
}

// MockDriver hands out one device and counts opens and closes
type MockDriver struct {
	mu      sync.Mutex
	device  *MockDevice
	openErr error
	opens   int
	targets []epos.PrinterTarget
}

func (m *MockDriver) Open(target epos.PrinterTarget) (printer.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, target)
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opens++
	return m.device, nil
}

func closes(d *MockDevice) int {
	n := 0
	for _, c := range d.Calls() {
		if c == "close" {
			n++
		}
	}
	return n
}

func healthy() *epos.StatusSnapshot {
	return &epos.StatusSnapshot{
		Online:     epos.True,
		Connection: epos.True,
		CoverOpen:  epos.False,
		Paper:      epos.PaperOK,
		PaperFeed:  epos.False,
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestSession(driver printer.Driver, opts Options) *Session {
	return NewWithLogger(driver, opts, quietLogger())
}

var t88 = epos.PrinterTarget{Address: "192.168.1.50", Series: epos.SeriesTMT88, PortType: epos.PortTCP}

func TestPrintEndToEnd(t *testing.T) {
	dev := &MockDevice{receiptStatus: healthy()}
	driver := &MockDriver{device: dev}

	var mu sync.Mutex
	var states []State
	s := newTestSession(driver, Options{OnStateChange: func(st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	}})

	cmds := []command.PrintCommand{command.AppendText{Text: "Hi"}, command.Cut{Mode: epos.CutFeed}}
	res := s.Print(context.Background(), "TCP", t88, cmds)

	assert.True(t, res.Success)
	assert.Equal(t, "Success", res.Message)
	assert.Equal(t, "onPrintTCP", res.Type)
	require.NotNil(t, res.Code)
	assert.Equal(t, 0, *res.Code)
	assert.Nil(t, res.Content)

	mu.Lock()
	assert.Equal(t, []State{Connecting, Connected, Transacting, AwaitingReceipt, Disconnecting, Idle}, states)
	mu.Unlock()

	assert.Equal(t, Idle, s.State())
	_, held := s.Target()
	assert.False(t, held)

	assert.Equal(t, []string{
		"clear", "begin", "listen", "text:Hi", "cut", "send",
		"end", "clear", "unlisten", "close",
	}, dev.Calls())
	assert.Equal(t, []epos.PrinterTarget{t88}, driver.targets)
}

func TestPrintReceiptErrorIsClassified(t *testing.T) {
	status := healthy()
	status.Online = epos.False
	status.BatteryLevel = epos.BatteryLevel0
	dev := &MockDevice{receiptCode: epos.ResultFailure, receiptStatus: status}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	res := s.Print(context.Background(), "BT", t88, []command.PrintCommand{command.AppendText{Text: "x"}})

	assert.False(t, res.Success)
	assert.Equal(t, "onPrintBT", res.Type)
	code, ok := res.ErrorCode()
	require.True(t, ok)
	assert.Equal(t, epos.ErrBatteryEnd, code)
	assert.Equal(t, epos.ErrBatteryEnd.Message(), res.Message)
	assert.Equal(t, epos.ResultFailure, *res.Code)
}

func TestPrintReceiptCallbackCode(t *testing.T) {
	dev := &MockDevice{receiptCode: epos.ResultEmpty}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	res := s.Print(context.Background(), "TCP", t88, []command.PrintCommand{command.AppendText{Text: "x"}})

	code, _ := res.ErrorCode()
	assert.Equal(t, epos.ErrEmpty, code)
	assert.Equal(t, epos.ErrReceiptEnd.Message(), res.Message)
}

func TestPrintConnectFailure(t *testing.T) {
	driver := &MockDriver{openErr: errors.New("connection refused")}
	var states []State
	s := newTestSession(driver, Options{OnStateChange: func(st State) { states = append(states, st) }})

	res := s.Print(context.Background(), "TCP", t88, nil)

	assert.False(t, res.Success)
	assert.Equal(t, "Can not connect to the printer.", res.Message)
	assert.Equal(t, epos.ErrConnect, res.Content)
	assert.Equal(t, []State{Connecting, Idle}, states)
	assert.Equal(t, Idle, s.State())
}

func TestPrintSendRejected(t *testing.T) {
	status := healthy()
	status.CoverOpen = epos.True
	dev := &MockDevice{sendErr: errors.New("broken pipe"), status: status}
	driver := &MockDriver{device: dev}
	s := newTestSession(driver, Options{})

	res := s.Print(context.Background(), "TCP", t88, []command.PrintCommand{command.AppendText{Text: "x"}})

	assert.False(t, res.Success)
	assert.Equal(t, epos.ErrCoverOpen, res.Content)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, driver.opens, closes(dev))
}

func TestPrintSendRejectedWithoutStatus(t *testing.T) {
	dev := &MockDevice{sendErr: errors.New("broken pipe")}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	res := s.Print(context.Background(), "TCP", t88, []command.PrintCommand{command.AppendText{Text: "x"}})
	assert.Equal(t, epos.ErrPort, res.Content)
}

func TestPrintEmptyJob(t *testing.T) {
	dev := &MockDevice{sendErr: printer.ErrEmptyBuffer}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	res := s.Print(context.Background(), "TCP", t88, nil)
	assert.Equal(t, epos.ErrParam, res.Content)
}

func TestPrintBeginFailure(t *testing.T) {
	dev := &MockDevice{beginErr: errors.New("busy")}
	driver := &MockDriver{device: dev}
	s := newTestSession(driver, Options{})

	res := s.Print(context.Background(), "TCP", t88, nil)

	assert.Equal(t, epos.ErrFailure, res.Content)
	assert.NotContains(t, dev.Calls(), "send")
	assert.Equal(t, driver.opens, closes(dev))
}

func TestPrintReceiptTimeout(t *testing.T) {
	dev := &MockDevice{noReceipt: true}
	driver := &MockDriver{device: dev}
	s := newTestSession(driver, Options{SendTimeout: 20 * time.Millisecond, ReceiptGrace: 10 * time.Millisecond})

	res := s.Print(context.Background(), "TCP", t88, []command.PrintCommand{command.AppendText{Text: "x"}})

	assert.Equal(t, epos.ErrTimeout, res.Content)
	assert.Equal(t, epos.ResultTimeout, *res.Code)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 1, closes(dev))
}

func TestPrintContextCancelled(t *testing.T) {
	dev := &MockDevice{noReceipt: true}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := s.Print(ctx, "TCP", t88, []command.PrintCommand{command.AppendText{Text: "x"}})

	assert.Equal(t, epos.ErrTimeout, res.Content)
	assert.Equal(t, Idle, s.State())
}

func TestConcurrentRequestIsRejected(t *testing.T) {
	release := make(chan struct{})
	dev := &MockDevice{receiptStatus: healthy(), sendRelease: release}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	first := make(chan epos.PrinterResult, 1)
	go func() {
		first <- s.Print(context.Background(), "TCP", t88, []command.PrintCommand{command.AppendText{Text: "x"}})
	}()
	require.Eventually(t, func() bool { return s.State() == AwaitingReceipt }, time.Second, 5*time.Millisecond)

	second := s.Print(context.Background(), "TCP", t88, nil)
	assert.Equal(t, epos.ErrInUse, second.Content)

	setting := s.GetSetting(context.Background(), "TCP", t88)
	assert.Equal(t, epos.ErrInUse, setting.Content)

	close(release)
	res := <-first
	assert.True(t, res.Success, "in-flight caller keeps its reply")
	assert.Equal(t, Idle, s.State())
}

func TestConcurrentAcquireAdmitsOneCaller(t *testing.T) {
	s := newTestSession(&MockDriver{}, Options{})

	for i := 0; i < 2000; i++ {
		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0
		start := make(chan struct{})
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if s.acquire() {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, 1, admitted, "iteration %d", i)
		require.Equal(t, Connecting, s.State())
		s.release()
		require.Equal(t, Idle, s.State())
	}
}

func TestLateReceiptIsDropped(t *testing.T) {
	dev := &MockDevice{noReceipt: true}
	s := newTestSession(&MockDriver{device: dev}, Options{SendTimeout: 10 * time.Millisecond})

	s.Print(context.Background(), "TCP", t88, []command.PrintCommand{command.AppendText{Text: "x"}})

	done := make(chan receipt, 1)
	s.receiver("old-job", done)(0, healthy())
	assert.Empty(t, done)
}

func TestTeardownContinuesAfterErrors(t *testing.T) {
	dev := &MockDevice{receiptStatus: healthy(), endErr: errors.New("not in transaction")}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	s.Print(context.Background(), "TCP", t88, []command.PrintCommand{command.AppendText{Text: "x"}})

	calls := dev.Calls()
	assert.Equal(t, []string{"end", "clear", "unlisten", "close"}, calls[len(calls)-4:])
}

func TestPulseAfterJob(t *testing.T) {
	dev := &MockDevice{receiptStatus: healthy()}
	s := newTestSession(&MockDriver{device: dev}, Options{PulseAfterJob: true})

	s.Print(context.Background(), "TCP", t88, []command.PrintCommand{command.AppendText{Text: "x"}})

	calls := dev.Calls()
	assert.Equal(t, []string{"text:x", "pulse", "send"}, calls[3:6])
}

func TestOpensEqualCloses(t *testing.T) {
	dev := &MockDevice{receiptStatus: healthy(), status: healthy(), readable: map[epos.Setting]int{epos.SettingPaperWidth: 80}}
	driver := &MockDriver{device: dev}
	s := newTestSession(driver, Options{SendTimeout: 20 * time.Millisecond})
	ctx := context.Background()
	cmds := []command.PrintCommand{command.AppendText{Text: "x"}}

	s.Print(ctx, "TCP", t88, cmds)
	s.GetSetting(ctx, "TCP", t88)
	s.SetSetting(ctx, "TCP", t88, SettingRequest{})
	s.Info(ctx, "TCP", t88)

	dev.sendErr = errors.New("reset")
	s.Print(ctx, "TCP", t88, cmds)

	dev.sendErr = nil
	dev.noReceipt = true
	s.Print(ctx, "TCP", t88, cmds)

	assert.Equal(t, 6, driver.opens)
	assert.Equal(t, driver.opens, closes(dev))
	assert.Equal(t, Idle, s.State())
}

func TestSetSettingDefaults(t *testing.T) {
	dev := &MockDevice{}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	width := 999
	res := s.SetSetting(context.Background(), "USB", t88, SettingRequest{PaperWidth: &width})

	assert.True(t, res.Success)
	assert.Equal(t, "onPrintUSB", res.Type)
	assert.Equal(t, map[epos.Setting]int{
		epos.SettingPaperWidth:   80,
		epos.SettingPrintDensity: epos.ParamDefault,
		epos.SettingPrintSpeed:   epos.ParamDefault,
	}, dev.settings)
	assert.NotContains(t, dev.Calls(), "begin")
}

func TestSettingTable(t *testing.T) {
	w58, w60, speed := 58, 60, 5

	assert.Equal(t, 58, SettingRequest{PaperWidth: &w58}.Table()[epos.SettingPaperWidth])
	assert.Equal(t, 60, SettingRequest{PaperWidth: &w60}.Table()[epos.SettingPaperWidth])
	assert.Equal(t, 80, SettingRequest{}.Table()[epos.SettingPaperWidth])

	table := SettingRequest{PrintSpeed: &speed}.Table()
	assert.Equal(t, 5, table[epos.SettingPrintSpeed])
	assert.Equal(t, epos.ParamDefault, table[epos.SettingPrintDensity])
}

func TestGetSetting(t *testing.T) {
	dev := &MockDevice{readable: map[epos.Setting]int{
		epos.SettingPaperWidth:   58,
		epos.SettingPrintDensity: 65530,
	}}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	res := s.GetSetting(context.Background(), "TCP", t88)

	assert.True(t, res.Success)
	assert.Equal(t, map[string]int{"paper_width": 58, "print_density": 65530}, res.Content)
}

func TestGetSettingUnreadable(t *testing.T) {
	dev := &MockDevice{}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	res := s.GetSetting(context.Background(), "TCP", t88)
	assert.False(t, res.Success)
	assert.Equal(t, epos.ErrFailure, res.Content)
}

func TestInfo(t *testing.T) {
	status := healthy()
	status.Paper = epos.PaperNearEnd
	dev := &MockDevice{status: status, model: "TM-T88VI"}
	s := newTestSession(&MockDriver{device: dev}, Options{})

	res := s.Info(context.Background(), "TCP", t88)

	require.True(t, res.Success)
	assert.Equal(t, epos.MethodGetPrinterInfo, res.Type)
	info, ok := res.Content.(PrinterInfo)
	require.True(t, ok)
	assert.Equal(t, "TCP:192.168.1.50", info.Target)
	assert.Equal(t, "TM_T88", info.Series)
	assert.Equal(t, "TM-T88VI", info.Model)
	assert.True(t, info.Online)
	assert.Len(t, info.Warnings, 1)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting_receipt", AwaitingReceipt.String())
	assert.Equal(t, "unknown", State(42).String())
}

// Package session owns the single printer connection of the process and
// drives it through connect, transaction, send, receipt and teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nixxel-company-limited/epos-bridge/command"
	"github.com/nixxel-company-limited/epos-bridge/epos"
	"github.com/nixxel-company-limited/epos-bridge/printer"
)

// Options tunes the session timeouts and job behaviour
type Options struct {
	// SendTimeout is the budget handed to the device send call
	SendTimeout time.Duration

	// ReceiptGrace is added to SendTimeout before a pending print times out
	ReceiptGrace time.Duration

	// SettingTimeout bounds printer setting reads and writes
	SettingTimeout time.Duration

	// PulseAfterJob appends a drawer pulse to every print job
	PulseAfterJob bool

	Classifier epos.Classifier

	// OnStateChange is called after every state transition
	OnStateChange func(State)
}

// DefaultOptions mirrors the device layer's own budgets
func DefaultOptions() Options {
	return Options{
		SendTimeout:    30 * time.Second,
		ReceiptGrace:   5 * time.Second,
		SettingTimeout: 30 * time.Second,
	}
}

type receipt struct {
	code   int
	status *epos.StatusSnapshot
}

// Session serializes every operation against the shared device handle.
// A request that arrives while another is in flight is rejected with
// ERR_IN_USE; the in-flight caller keeps its pending reply.
type Session struct {
	driver     printer.Driver
	translator *command.Translator
	opts       Options
	logger     *log.Logger

	mu     sync.Mutex
	state  State
	device printer.Device
	target *epos.PrinterTarget
	job    string
}

// New creates a session with the default logger
func New(driver printer.Driver, opts Options) *Session {
	logger := log.New(os.Stdout, "[SESSION] ", log.LstdFlags|log.Lmsgprefix)
	return NewWithLogger(driver, opts, logger)
}

// NewWithLogger creates a session with a custom logger
func NewWithLogger(driver printer.Driver, opts Options, logger *log.Logger) *Session {
	defaults := DefaultOptions()
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaults.SendTimeout
	}
	if opts.ReceiptGrace < 0 {
		opts.ReceiptGrace = 0
	}
	if opts.SettingTimeout <= 0 {
		opts.SettingTimeout = defaults.SettingTimeout
	}
	return &Session{
		driver:     driver,
		translator: command.NewTranslatorWithLogger(logger),
		opts:       opts,
		logger:     logger,
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Target returns the printer currently held, if any
func (s *Session) Target() (epos.PrinterTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return epos.PrinterTarget{}, false
	}
	return *s.target, true
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	hook := s.opts.OnStateChange
	s.mu.Unlock()
	if hook != nil {
		hook(state)
	}
}

// acquire claims the session for one request
func (s *Session) acquire() bool {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return false
	}
	s.state = Connecting
	hook := s.opts.OnStateChange
	s.mu.Unlock()
	if hook != nil {
		hook(Connecting)
	}
	return true
}

// connect opens target, force-closing a stale handle first
func (s *Session) connect(target epos.PrinterTarget) (printer.Device, error) {
	s.mu.Lock()
	stale := s.device
	s.device = nil
	s.mu.Unlock()
	if stale != nil {
		s.logger.Printf("Closing stale connection before connecting to %s", target.Address)
		s.teardown(stale)
	}

	dev, err := s.driver.Open(target)
	if err != nil {
		return nil, err
	}
	if err := dev.ClearCommandBuffer(); err != nil {
		s.logger.Printf("Error clearing command buffer: %v", err)
	}

	s.mu.Lock()
	s.device = dev
	s.target = &target
	s.mu.Unlock()
	s.setState(Connected)
	return dev, nil
}

// release tears the connection down and returns the session to Idle
func (s *Session) release() {
	s.mu.Lock()
	dev := s.device
	s.mu.Unlock()

	if dev != nil {
		s.setState(Disconnecting)
		s.teardown(dev)
	}

	s.mu.Lock()
	s.device = nil
	s.target = nil
	s.job = ""
	s.mu.Unlock()
	s.setState(Idle)
}

// teardown runs every release step once, in order, whatever the earlier
// steps returned
func (s *Session) teardown(dev printer.Device) {
	s.step("end transaction", dev.EndTransaction)
	s.step("clear command buffer", dev.ClearCommandBuffer)
	s.step("unset receive listener", func() error {
		dev.SetReceiveListener(nil)
		return nil
	})
	s.step("disconnect", dev.Close)
}

func (s *Session) step(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("Panic during %s: %v", name, r)
		}
	}()
	if err := fn(); err != nil {
		s.logger.Printf("Error during %s: %v", name, err)
	}
}

// Print runs one print job to completion. The result is built from the
// device receipt, or from the local failure that short-circuited the job.
func (s *Session) Print(ctx context.Context, portType string, target epos.PrinterTarget, cmds []command.PrintCommand) epos.PrinterResult {
	typ := epos.PrintType(portType)
	if !s.acquire() {
		return epos.Failed(typ, epos.ErrInUse)
	}
	defer s.release()

	dev, err := s.connect(target)
	if err != nil {
		s.logger.Printf("Cannot connect to printer %s: %v", target.Address, err)
		return epos.Failed(typ, epos.ErrConnect)
	}

	s.setState(Transacting)
	if err := dev.BeginTransaction(); err != nil {
		s.logger.Printf("Error beginning transaction: %v", err)
		return s.statusFailure(dev, typ, epos.ResultFailure)
	}

	token := uuid.NewString()
	done := make(chan receipt, 1)
	s.mu.Lock()
	s.job = token
	s.mu.Unlock()
	dev.SetReceiveListener(s.receiver(token, done))

	s.translator.ApplyAll(dev, cmds)
	if s.opts.PulseAfterJob {
		if err := dev.AddPulse(printer.Drawer2Pin, printer.Pulse500); err != nil {
			s.logger.Printf("Error adding drawer pulse: %v", err)
		}
	}

	if err := dev.SendData(s.opts.SendTimeout); err != nil {
		s.logger.Printf("Send data error: %v", err)
		if errors.Is(err, printer.ErrEmptyBuffer) {
			return epos.Failed(typ, epos.ErrParam)
		}
		return s.statusFailure(dev, typ, epos.ResultPort)
	}

	s.setState(AwaitingReceipt)
	s.logger.Printf("Sent job %s to printer %s %s", token, target.Address, target.Series)

	timer := time.NewTimer(s.opts.SendTimeout + s.opts.ReceiptGrace)
	defer timer.Stop()

	select {
	case r := <-done:
		return s.receiptResult(typ, r)
	case <-timer.C:
		s.logger.Printf("No receipt for job %s", token)
		return epos.Failed(typ, epos.ErrTimeout).WithCode(epos.ResultTimeout)
	case <-ctx.Done():
		s.logger.Printf("Job %s abandoned: %v", token, ctx.Err())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return epos.Failed(typ, epos.ErrTimeout).WithCode(epos.ResultTimeout)
		}
		return epos.Failed(typ, epos.ErrFailure)
	}
}

// receiver resolves the future for token exactly once. Receipts for any
// other job are dropped.
func (s *Session) receiver(token string, done chan<- receipt) printer.ReceiveFunc {
	return func(code int, status *epos.StatusSnapshot) {
		s.mu.Lock()
		current := s.job
		s.mu.Unlock()
		if current != token {
			s.logger.Printf("Dropping receipt for stale job %s", token)
			return
		}
		select {
		case done <- receipt{code: code, status: status}:
		default:
		}
	}
}

func (s *Session) receiptResult(typ string, r receipt) epos.PrinterResult {
	for _, w := range r.status.Warnings() {
		s.logger.Printf("Printer warning: %s", w)
	}

	code := s.opts.Classifier.Classify(r.status, r.code)
	s.logger.Printf("Receipt code %d classified as %s", r.code, code)
	if code == epos.CodeSuccess {
		return epos.Succeeded(typ, code.Message(), nil).WithCode(r.code)
	}
	return epos.Failed(typ, code).WithCode(r.code)
}

// statusFailure classifies a local failure using a fresh status reading
func (s *Session) statusFailure(dev printer.Device, typ string, fallback int) epos.PrinterResult {
	status, err := dev.Status()
	if err != nil {
		s.logger.Printf("Status unavailable: %v", err)
	}
	code := s.opts.Classifier.Classify(status, fallback)
	return epos.Failed(typ, code).WithCode(fallback)
}

// PrinterInfo is the content of a printer info request
type PrinterInfo struct {
	Target   string   `json:"target"`
	Series   string   `json:"series"`
	Model    string   `json:"model,omitempty"`
	Online   bool     `json:"online"`
	Warnings []string `json:"warnings,omitempty"`
}

// Info connects to target and reports its model name and status
func (s *Session) Info(ctx context.Context, portType string, target epos.PrinterTarget) epos.PrinterResult {
	typ := epos.MethodGetPrinterInfo
	if err := ctx.Err(); err != nil {
		return epos.Failed(typ, epos.ErrTimeout)
	}
	if !s.acquire() {
		return epos.Failed(typ, epos.ErrInUse)
	}
	defer s.release()

	dev, err := s.connect(target)
	if err != nil {
		s.logger.Printf("Cannot connect to printer %s: %v", target.Address, err)
		return epos.Failed(typ, epos.ErrConnect)
	}

	info := PrinterInfo{
		Target: fmt.Sprintf("%s:%s", portType, target.Address),
		Series: target.Series.String(),
	}
	if model, err := dev.ModelName(); err != nil {
		s.logger.Printf("Model name unavailable: %v", err)
	} else {
		info.Model = model
	}

	status, err := dev.Status()
	if err != nil {
		s.logger.Printf("Status unavailable: %v", err)
		return epos.Failed(typ, epos.ErrNoResponse)
	}
	info.Online = status.Online == epos.True
	info.Warnings = status.Warnings()
	return epos.Succeeded(typ, epos.CodeSuccess.Message(), info)
}

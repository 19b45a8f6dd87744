// Package printer implements the printer device capability the session
// drives: a job buffer of device primitives, transactional sends with an
// asynchronous receipt, status reads and printer settings.
package printer

import (
	"image"
	"time"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// Builder appends device primitives to an open job buffer
type Builder interface {
	AddText(text string) error
	AddCommand(data []byte) error
	AddImage(img image.Image, x, y, width, height int) error
	AddFeedLine(lines int) error
	AddLineSpace(dots int) error
	AddCut(mode epos.CutMode) error
	AddPageBegin() error
	AddPageArea(x, y, width, height int) error
	AddPagePosition(x, y int) error
	AddPageEnd() error
	AddTextAlign(align epos.Align) error
	AddTextFont(font epos.Font) error
	AddTextSmooth(smooth bool) error
	AddTextSize(width, height int) error
	AddTextStyle(reverse, underline, emphasis *bool, color epos.Color) error
	AddBarcode(data string, symbology epos.Symbology, hri epos.HRIPosition, font epos.Font, width, height int) error
	AddPulse(drawer, pulse int) error
}

// ReceiveFunc is called once per accepted send with the device result code
// and the status read after transmission (nil when unavailable)
type ReceiveFunc func(code int, status *epos.StatusSnapshot)

// Device is one open connection to a printer
type Device interface {
	Builder

	BeginTransaction() error
	EndTransaction() error
	ClearCommandBuffer() error

	// SendData enqueues the buffer for transmission. Completion is reported
	// through the receive listener, not the return value.
	SendData(timeout time.Duration) error

	Status() (*epos.StatusSnapshot, error)
	SetReceiveListener(fn ReceiveFunc)

	SetPrinterSetting(timeout time.Duration, settings map[epos.Setting]int) error
	GetPrinterSetting(timeout time.Duration, setting epos.Setting) (int, error)
	ModelName() (string, error)

	Close() error
}

// Driver opens devices
type Driver interface {
	Open(target epos.PrinterTarget) (Device, error)
}

// Drawer and pulse parameters for AddPulse
const (
	Drawer2Pin = 0
	Drawer5Pin = 1

	Pulse100 = 100
	Pulse200 = 200
	Pulse300 = 300
	Pulse400 = 400
	Pulse500 = 500
)

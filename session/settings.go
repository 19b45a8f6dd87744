package session

import (
	"context"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// PaperWidths the device accepts, in millimetres
var PaperWidths = []int{80, 58, 60}

// DefaultPaperWidth replaces absent or unsupported widths
const DefaultPaperWidth = 80

// SettingRequest carries the optional values of a setting write
type SettingRequest struct {
	PaperWidth   *int
	PrintDensity *int
	PrintSpeed   *int
}

// Table builds the defaulted setting table sent to the device. The paper
// width is always written; density and speed stay at the device default
// when absent.
func (r SettingRequest) Table() map[epos.Setting]int {
	table := map[epos.Setting]int{
		epos.SettingPaperWidth:   DefaultPaperWidth,
		epos.SettingPrintDensity: epos.ParamDefault,
		epos.SettingPrintSpeed:   epos.ParamDefault,
	}
	if r.PaperWidth != nil {
		for _, w := range PaperWidths {
			if *r.PaperWidth == w {
				table[epos.SettingPaperWidth] = w
			}
		}
	}
	if r.PrintDensity != nil {
		table[epos.SettingPrintDensity] = *r.PrintDensity
	}
	if r.PrintSpeed != nil {
		table[epos.SettingPrintSpeed] = *r.PrintSpeed
	}
	return table
}

// SetSetting connects, writes the defaulted setting table and disconnects
func (s *Session) SetSetting(ctx context.Context, portType string, target epos.PrinterTarget, req SettingRequest) epos.PrinterResult {
	typ := epos.PrintType(portType)
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

	table := req.Table()
	if err := dev.SetPrinterSetting(s.opts.SettingTimeout, table); err != nil {
		s.logger.Printf("Error writing printer settings: %v", err)
		return s.statusFailure(dev, typ, epos.ResultFailure)
	}
	s.logger.Printf("Printer settings written: paper width %d, density %d, speed %d",
		table[epos.SettingPaperWidth], table[epos.SettingPrintDensity], table[epos.SettingPrintSpeed])
	return epos.Succeeded(typ, epos.CodeSuccess.Message(), nil)
}

// GetSetting connects and reads every setting the device reports. Settings
// that cannot be read are left out of the content.
func (s *Session) GetSetting(ctx context.Context, portType string, target epos.PrinterTarget) epos.PrinterResult {
	typ := epos.PrintType(portType)
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

	values := make(map[string]int)
	for _, setting := range []epos.Setting{epos.SettingPaperWidth, epos.SettingPrintDensity, epos.SettingPrintSpeed} {
		v, err := dev.GetPrinterSetting(s.opts.SettingTimeout, setting)
		if err != nil {
			s.logger.Printf("Error reading %s: %v", setting, err)
			continue
		}
		values[setting.String()] = v
	}
	if len(values) == 0 {
		return s.statusFailure(dev, typ, epos.ResultFailure)
	}
	return epos.Succeeded(typ, epos.CodeSuccess.Message(), values)
}

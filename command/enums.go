package command

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// Enumerated fields fall back to their default instead of failing the
// command when the value is absent or unrecognised.

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseCutMode maps CUT_FEED, CUT_NO_FEED and CUT_RESERVE; anything else is the default cut
func ParseCutMode(s string) epos.CutMode {
	switch normalize(s) {
	case "CUT_FEED":
		return epos.CutFeed
	case "CUT_NO_FEED":
		return epos.CutNoFeed
	case "CUT_RESERVE":
		return epos.CutReserve
	}
	return epos.CutDefault
}

func ParseAlign(s string) epos.Align {
	switch normalize(s) {
	case "LEFT", "ALIGN_LEFT":
		return epos.AlignLeft
	case "CENTER", "ALIGN_CENTER":
		return epos.AlignCenter
	case "RIGHT", "ALIGN_RIGHT":
		return epos.AlignRight
	}
	return epos.AlignDefault
}

var fonts = map[string]epos.Font{
	"FONT_A": epos.FontA,
	"FONT_B": epos.FontB,
	"FONT_C": epos.FontC,
	"FONT_D": epos.FontD,
	"FONT_E": epos.FontE,
}

func ParseFont(s string) epos.Font {
	if f, ok := fonts[normalize(s)]; ok {
		return f
	}
	return epos.FontA
}

var colors = map[string]epos.Color{
	"COLOR_NONE": epos.ColorNone,
	"COLOR_1":    epos.Color1,
	"COLOR_2":    epos.Color2,
	"COLOR_3":    epos.Color3,
	"COLOR_4":    epos.Color4,
}

func ParseColor(s string) epos.Color {
	if c, ok := colors[normalize(s)]; ok {
		return c
	}
	return epos.ColorDefault
}

var symbologies = map[string]epos.Symbology{
	"UPC_A":   epos.BarcodeUPCA,
	"UPC_E":   epos.BarcodeUPCE,
	"EAN13":   epos.BarcodeEAN13,
	"JAN13":   epos.BarcodeJAN13,
	"EAN8":    epos.BarcodeEAN8,
	"JAN8":    epos.BarcodeJAN8,
	"CODE39":  epos.BarcodeCode39,
	"ITF":     epos.BarcodeITF,
	"CODABAR": epos.BarcodeCodabar,
	"CODE93":  epos.BarcodeCode93,
	"CODE128": epos.BarcodeCode128,
}

// ParseSymbology accepts the numeric BARCODE_* value or its name, with or
// without the BARCODE_ prefix. Unknown values are EAN13.
func ParseSymbology(v any) epos.Symbology {
	if n, err := cast.ToIntE(v); err == nil {
		if n >= int(epos.BarcodeUPCA) && n <= int(epos.BarcodeCode128) {
			return epos.Symbology(n)
		}
		return epos.BarcodeEAN13
	}
	name := strings.TrimPrefix(normalize(cast.ToString(v)), "BARCODE_")
	if s, ok := symbologies[name]; ok {
		return s
	}
	return epos.BarcodeEAN13
}

var hriPositions = map[string]epos.HRIPosition{
	"NONE":  epos.HRINone,
	"ABOVE": epos.HRIAbove,
	"BELOW": epos.HRIBelow,
	"BOTH":  epos.HRIBoth,
}

// ParseHRIPosition accepts the numeric HRI_* value or its name. Unknown
// values print the text below the bars.
func ParseHRIPosition(v any) epos.HRIPosition {
	if n, err := cast.ToIntE(v); err == nil {
		if n >= int(epos.HRINone) && n <= int(epos.HRIBoth) {
			return epos.HRIPosition(n)
		}
		return epos.HRIBelow
	}
	name := strings.TrimPrefix(normalize(cast.ToString(v)), "HRI_")
	if p, ok := hriPositions[name]; ok {
		return p
	}
	return epos.HRIBelow
}

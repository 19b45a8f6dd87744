package printer

import (
	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// ESC/POS control bytes
const (
	ESC = 0x1B
	GS  = 0x1D
	DLE = 0x10
	EOT = 0x04
	LF  = 0x0A
	FF  = 0x0C
)

// KickCommand opens the cash drawer on pin 2: 200ms on, 500ms off
var KickCommand = []byte{0x1B, 0x70, 0x00, 0x64, 0xFA}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func le16(v int) (byte, byte) {
	v = clamp(v, 0, 0xFFFF)
	return byte(v & 0xFF), byte(v >> 8)
}

func encodeFeedLine(lines int) []byte {
	return []byte{ESC, 'd', byte(clamp(lines, 0, 255))}
}

func encodeLineSpace(dots int) []byte {
	return []byte{ESC, '3', byte(clamp(dots, 0, 255))}
}

func encodeCut(mode epos.CutMode) []byte {
	switch mode {
	case epos.CutFeed:
		return []byte{GS, 'V', 65, 0}
	case epos.CutNoFeed:
		return []byte{GS, 'V', 1}
	case epos.CutReserve:
		return []byte{GS, 'V', 104, 0}
	default:
		return []byte{GS, 'V', 66, 0}
	}
}

func encodeAlign(align epos.Align) []byte {
	n := byte(0)
	switch align {
	case epos.AlignCenter:
		n = 1
	case epos.AlignRight:
		n = 2
	}
	return []byte{ESC, 'a', n}
}

func encodeFont(font epos.Font) []byte {
	return []byte{ESC, 'M', byte(clamp(int(font), 0, 4))}
}

func encodeSmooth(smooth bool) []byte {
	return []byte{GS, 'b', boolByte(smooth)}
}

func encodeTextSize(width, height int) []byte {
	w := clamp(width, 1, 8) - 1
	h := clamp(height, 1, 8) - 1
	return []byte{GS, '!', byte(w<<4 | h)}
}

func encodeTextStyle(reverse, underline, emphasis *bool, color epos.Color) []byte {
	var out []byte
	if reverse != nil {
		out = append(out, GS, 'B', boolByte(*reverse))
	}
	if underline != nil {
		out = append(out, ESC, '-', boolByte(*underline))
	}
	if emphasis != nil {
		out = append(out, ESC, 'E', boolByte(*emphasis))
	}
	switch color {
	case epos.ColorNone, epos.Color1:
		out = append(out, ESC, 'r', 0)
	case epos.Color2:
		out = append(out, ESC, 'r', 1)
	case epos.Color3:
		out = append(out, ESC, 'r', 2)
	case epos.Color4:
		out = append(out, ESC, 'r', 3)
	}
	return out
}

func encodePageBegin() []byte {
	return []byte{ESC, 'L'}
}

func encodePageArea(x, y, width, height int) []byte {
	xl, xh := le16(x)
	yl, yh := le16(y)
	wl, wh := le16(width)
	hl, hh := le16(height)
	return []byte{ESC, 'W', xl, xh, yl, yh, wl, wh, hl, hh}
}

func encodePagePosition(x, y int) []byte {
	xl, xh := le16(x)
	yl, yh := le16(y)
	return []byte{ESC, '$', xl, xh, GS, '$', yl, yh}
}

func encodePageEnd() []byte {
	return []byte{FF}
}

func encodePulse(drawer, pulse int) []byte {
	m := byte(0)
	if drawer == Drawer5Pin {
		m = 1
	}
	on := byte(clamp(pulse/2, 1, 255))
	return []byte{ESC, 'p', m, on, 0xFA}
}

// barcode system m for GS k format B
var symbologyCodes = map[epos.Symbology]byte{
	epos.BarcodeUPCA:    65,
	epos.BarcodeUPCE:    66,
	epos.BarcodeEAN13:   67,
	epos.BarcodeJAN13:   67,
	epos.BarcodeEAN8:    68,
	epos.BarcodeJAN8:    68,
	epos.BarcodeCode39:  69,
	epos.BarcodeITF:     70,
	epos.BarcodeCodabar: 71,
	epos.BarcodeCode93:  72,
	epos.BarcodeCode128: 73,
}

func encodeBarcode(data string, symbology epos.Symbology, hri epos.HRIPosition, font epos.Font, width, height int) []byte {
	m, ok := symbologyCodes[symbology]
	if !ok {
		m = symbologyCodes[epos.BarcodeEAN13]
	}
	payload := []byte(data)
	if symbology == epos.BarcodeCode128 && (len(payload) < 2 || payload[0] != '{') {
		payload = append([]byte("{B"), payload...)
	}
	payload = payload[:clamp(len(payload), 0, 255)]

	out := []byte{
		GS, 'H', byte(clamp(int(hri), 0, 3)),
		GS, 'f', byte(clamp(int(font), 0, 4)),
		GS, 'w', byte(clamp(width, 2, 6)),
		GS, 'h', byte(clamp(height, 1, 255)),
		GS, 'k', m, byte(len(payload)),
	}
	return append(out, payload...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

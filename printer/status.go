package printer

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/nixxel-company-limited/epos-bridge/epos"
)

// DLE EOT n real-time status requests
const (
	statusPrinter = 1
	statusOffline = 2
	statusError   = 3
	statusPaper   = 4
)

var errBadStatus = errors.New("malformed status byte")

// valid status bytes have bit 1 and bit 4 set, bits 0 and 7 clear
func validStatusByte(b byte) bool {
	return b&0x93 == 0x12
}

func bit(b byte, n uint) bool {
	return b&(1<<n) != 0
}

// ParseStatus decodes the four DLE EOT responses (n = 1..4)
func ParseStatus(printerStatus, offlineCause, errorCause, paperSensor byte) (*epos.StatusSnapshot, error) {
	for _, b := range []byte{printerStatus, offlineCause, errorCause, paperSensor} {
		if !validStatusByte(b) {
			return nil, fmt.Errorf("%w: %#02x", errBadStatus, b)
		}
	}

	s := &epos.StatusSnapshot{
		Online:        epos.Bool(!bit(printerStatus, 3)),
		Connection:    epos.True,
		PanelSwitchOn: bit(printerStatus, 6),
		CoverOpen:     epos.Bool(bit(offlineCause, 2)),
		PaperFeed:     epos.Bool(bit(offlineCause, 3)),
		Paper:         epos.PaperOK,
	}

	switch {
	case bit(paperSensor, 5) || bit(paperSensor, 6) || bit(offlineCause, 5):
		s.Paper = epos.PaperEmpty
	case bit(paperSensor, 2) || bit(paperSensor, 3):
		s.Paper = epos.PaperNearEnd
	}

	switch {
	case bit(errorCause, 5):
		s.ErrorStatus = epos.UnrecoverableError
	case bit(errorCause, 3):
		s.ErrorStatus = epos.AutocutterError
	case bit(errorCause, 2):
		s.ErrorStatus = epos.MechanicalError
	case bit(errorCause, 6):
		// the automatically recoverable error on thermal heads is overheating
		s.ErrorStatus = epos.AutoRecoverError
		s.AutoRecoverError = epos.HeadOverheat
	}

	return s, nil
}

// ReceiptCode derives the device result code for a job from the status
// read after it was written
func ReceiptCode(s *epos.StatusSnapshot) int {
	if s == nil {
		return epos.ResultSuccess
	}
	switch {
	case s.CoverOpen == epos.True:
		return epos.ResultCoverOpen
	case s.Paper == epos.PaperEmpty:
		return epos.ResultEmpty
	case s.ErrorStatus == epos.AutocutterError:
		return epos.ResultCutter
	case s.ErrorStatus == epos.MechanicalError:
		return epos.ResultMechanical
	case s.ErrorStatus == epos.UnrecoverableError:
		return epos.ResultUnrecoverable
	case s.ErrorStatus == epos.AutoRecoverError:
		return epos.ResultAutoRecover
	case s.Online == epos.False:
		return epos.ResultFailure
	}
	return epos.ResultSuccess
}

// GS ( E user setting commands
var (
	settingEnter = []byte{GS, '(', 'E', 0x03, 0x00, 0x01, 'I', 'N'}
	settingExit  = []byte{GS, '(', 'E', 0x04, 0x00, 0x02, 'O', 'U', 'T'}
)

// customized setting numbers for GS ( E fn=5 / fn=6
var settingNumbers = map[epos.Setting]byte{
	epos.SettingPaperWidth:   3,
	epos.SettingPrintDensity: 5,
	epos.SettingPrintSpeed:   6,
}

// paper width millimetres to device values
var paperWidthValues = map[int]int{58: 2, 60: 3, 80: 6}

func encodeSetting(setting epos.Setting, value int) ([]byte, bool) {
	if value == epos.ParamDefault {
		return nil, false
	}
	a, ok := settingNumbers[setting]
	if !ok {
		return nil, false
	}
	if setting == epos.SettingPaperWidth {
		v, ok := paperWidthValues[value]
		if !ok {
			return nil, false
		}
		value = v
	}
	nl, nh := le16(value)
	return []byte{GS, '(', 'E', 0x04, 0x00, 0x05, a, nl, nh}, true
}

func encodeSettingQuery(setting epos.Setting) ([]byte, bool) {
	a, ok := settingNumbers[setting]
	if !ok {
		return nil, false
	}
	return []byte{GS, '(', 'E', 0x02, 0x00, 0x06, a}, true
}

// parseSettingResponse reads a "7'" header followed by the decimal value and NUL
func parseSettingResponse(setting epos.Setting, resp []byte) (int, error) {
	if !bytes.HasPrefix(resp, []byte{0x37, 0x27}) {
		return 0, errors.New("malformed setting response")
	}
	resp = resp[2:]
	if i := bytes.IndexByte(resp, 0x00); i >= 0 {
		resp = resp[:i]
	}
	// the value follows the last separator
	if j := bytes.LastIndexFunc(resp, func(r rune) bool { return r < '0' || r > '9' }); j >= 0 {
		resp = resp[j+1:]
	}
	value, err := strconv.Atoi(string(resp))
	if err != nil {
		return 0, fmt.Errorf("bad setting value %q: %w", resp, err)
	}
	if setting == epos.SettingPaperWidth {
		for mm, v := range paperWidthValues {
			if v == value {
				return mm, nil
			}
		}
	}
	return value, nil
}

// GS I n=67 model name request, answered by "_" name NUL
var modelNameQuery = []byte{GS, 'I', 67}

func parseModelName(resp []byte) (string, error) {
	if len(resp) == 0 || resp[0] != '_' {
		return "", errors.New("malformed model name response")
	}
	resp = resp[1:]
	if i := bytes.IndexByte(resp, 0x00); i >= 0 {
		resp = resp[:i]
	}
	return string(resp), nil
}

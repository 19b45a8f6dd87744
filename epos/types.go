package epos

import "strings"

// PortType is the transport a printer is reached through
type PortType int

const (
	PortAll PortType = iota
	PortTCP
	PortUSB
	PortBluetooth
)

// ParsePortType maps the caller-facing filter names (TCP, USB, BT, ALL)
func ParsePortType(s string) (PortType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TCP":
		return PortTCP, true
	case "USB":
		return PortUSB, true
	case "BT", "BLUETOOTH":
		return PortBluetooth, true
	case "ALL":
		return PortAll, true
	}
	return PortAll, false
}

func (p PortType) String() string {
	switch p {
	case PortTCP:
		return "TCP"
	case PortUSB:
		return "USB"
	case PortBluetooth:
		return "BT"
	default:
		return "ALL"
	}
}

// Includes reports whether a filter covers the given concrete port type
func (p PortType) Includes(other PortType) bool {
	return p == PortAll || p == other
}

// Series identifies a supported printer model family
type Series int

const (
	SeriesTMM10 Series = iota
	SeriesTMM30
	SeriesTMM30II
	SeriesTMM50
	SeriesTMP20
	SeriesTMP60
	SeriesTMP60II
	SeriesTMP80
	SeriesTMT20
	SeriesTMT60
	SeriesTMT70
	SeriesTMT81
	SeriesTMT82
	SeriesTMT83
	SeriesTMT83III
	SeriesTMT88
	SeriesTMT90
	SeriesTMT100
	SeriesTMU220
	SeriesTMU330
	SeriesTML90
	SeriesTMH6000
)

var seriesNames = map[string]Series{
	"TM_M10":    SeriesTMM10,
	"TM_M30":    SeriesTMM30,
	"TM_M30II":  SeriesTMM30II,
	"TM_M50":    SeriesTMM50,
	"TM_P20":    SeriesTMP20,
	"TM_P60":    SeriesTMP60,
	"TM_P60II":  SeriesTMP60II,
	"TM_P80":    SeriesTMP80,
	"TM_T20":    SeriesTMT20,
	"TM_T60":    SeriesTMT60,
	"TM_T70":    SeriesTMT70,
	"TM_T81":    SeriesTMT81,
	"TM_T82":    SeriesTMT82,
	"TM_T83":    SeriesTMT83,
	"TM_T83III": SeriesTMT83III,
	"TM_T88":    SeriesTMT88,
	"TM_T90":    SeriesTMT90,
	"TM_T100":   SeriesTMT100,
	"TM_U220":   SeriesTMU220,
	"TM_U330":   SeriesTMU330,
	"TM_L90":    SeriesTML90,
	"TM_H6000":  SeriesTMH6000,
}

// ParseSeries resolves a series name. Unknown names resolve to TM_M10,
// the family the device layer falls back to, with ok set to false.
func ParseSeries(s string) (Series, bool) {
	series, ok := seriesNames[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return SeriesTMM10, false
	}
	return series, true
}

func (s Series) String() string {
	for name, v := range seriesNames {
		if v == s {
			return name
		}
	}
	return "TM_M10"
}

// DotsPerLine returns the printable width in dots for the family's widest paper
func (s Series) DotsPerLine() int {
	switch s {
	case SeriesTMM10, SeriesTMP20, SeriesTMP60, SeriesTMP60II:
		return 384
	case SeriesTMU220, SeriesTMU330:
		return 200
	default:
		return 576
	}
}

// PrinterTarget identifies a physical device
type PrinterTarget struct {
	Address  string
	Series   Series
	PortType PortType
}

// DiscoveredDevice is a printer found during a discovery window
type DiscoveredDevice struct {
	IPAddress   string `json:"ipAddress,omitempty"`
	BDAddress   string `json:"bdAddress,omitempty"`
	MACAddress  string `json:"macAddress,omitempty"`
	DisplayName string `json:"model"`
	DeviceType  string `json:"type"`
	PrintType   string `json:"printType"`
	Target      string `json:"target"`
}

// Key is the de-duplication key within a discovery window
func (d DiscoveredDevice) Key() string {
	if d.IPAddress != "" {
		return d.IPAddress
	}
	return strings.Join([]string{d.BDAddress, d.MACAddress, d.Target, d.DisplayName}, "|")
}

// Tristate mirrors the device layer's TRUE/FALSE/UNKNOWN flags; the zero
// value is Unknown so an empty snapshot triggers no checks.
type Tristate int

const (
	Unknown Tristate = iota
	True
	False
)

// Bool converts a definite reading
func Bool(b bool) Tristate {
	if b {
		return True
	}
	return False
}

type PaperState int

const (
	PaperUnknown PaperState = iota
	PaperOK
	PaperNearEnd
	PaperEmpty
)

type ErrorStatus int

const (
	NoError ErrorStatus = iota
	MechanicalError
	AutocutterError
	UnrecoverableError
	AutoRecoverError
)

type AutoRecoverCause int

const (
	NoAutoRecoverCause AutoRecoverCause = iota
	HeadOverheat
	MotorOverheat
	BatteryOverheat
	WrongPaper
	CoverOpened
)

// BatteryLevel follows the device scale 0..6 shifted by one so the zero
// value means "no battery reading".
type BatteryLevel int

const (
	BatteryUnknown BatteryLevel = iota
	BatteryLevel0
	BatteryLevel1
	BatteryLevel2
	BatteryLevel3
	BatteryLevel4
	BatteryLevel5
	BatteryLevel6
)

type UnrecoverDetail int

const (
	NoUnrecoverDetail UnrecoverDetail = iota
	HighVoltageError
	LowVoltageError
)

type RemovalWaiting int

const (
	RemovalUnknown RemovalWaiting = iota
	RemovalWaitPaper
	RemovalWaitNone
)

// StatusSnapshot is a read-only status reading produced by the device
type StatusSnapshot struct {
	Online           Tristate
	Connection       Tristate
	CoverOpen        Tristate
	Paper            PaperState
	PaperFeed        Tristate
	PanelSwitchOn    bool
	ErrorStatus      ErrorStatus
	AutoRecoverError AutoRecoverCause
	BatteryLevel     BatteryLevel
	UnrecoverError   UnrecoverDetail
	RemovalWaiting   RemovalWaiting
}

// Warnings lists non-fatal conditions worth logging after a job
func (s *StatusSnapshot) Warnings() []string {
	if s == nil {
		return nil
	}
	var out []string
	if s.Paper == PaperNearEnd {
		out = append(out, "Roll paper is nearly end.")
	}
	if s.BatteryLevel == BatteryLevel1 {
		out = append(out, "Battery level of printer is low.")
	}
	return out
}

// Parameter enums applied to the job buffer. Default leaves the device setting untouched.

type Align int

const (
	AlignDefault Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

type Font int

const (
	FontA Font = iota
	FontB
	FontC
	FontD
	FontE
)

type CutMode int

const (
	CutDefault CutMode = iota
	CutFeed
	CutNoFeed
	CutReserve
)

type Color int

const (
	ColorDefault Color = iota
	ColorNone
	Color1
	Color2
	Color3
	Color4
)

// Symbology values match the ePOS BARCODE_* numbering accepted on the wire
type Symbology int

const (
	BarcodeUPCA Symbology = iota
	BarcodeUPCE
	BarcodeEAN13
	BarcodeJAN13
	BarcodeEAN8
	BarcodeJAN8
	BarcodeCode39
	BarcodeITF
	BarcodeCodabar
	BarcodeCode93
	BarcodeCode128
)

// HRIPosition values match the ePOS HRI_* numbering
type HRIPosition int

const (
	HRINone HRIPosition = iota
	HRIAbove
	HRIBelow
	HRIBoth
)

// Setting identifies a printer setting read or written outside a job
type Setting int

const (
	SettingPaperWidth Setting = iota
	SettingPrintDensity
	SettingPrintSpeed
)

func (s Setting) String() string {
	switch s {
	case SettingPaperWidth:
		return "paper_width"
	case SettingPrintDensity:
		return "print_density"
	default:
		return "print_speed"
	}
}

// ParamDefault leaves a setting at the device's own default
const ParamDefault = -2

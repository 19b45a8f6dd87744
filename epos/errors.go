package epos

// ErrorCode is the stable string returned to callers in a result's content
type ErrorCode string

// Status-derived codes
const (
	ErrUnknown         ErrorCode = "ERR_UNKNOWN"
	ErrOffline         ErrorCode = "ERR_OFFLINE"
	ErrNoResponse      ErrorCode = "ERR_NO_RESPONSE"
	ErrCoverOpen       ErrorCode = "ERR_COVER_OPEN"
	ErrReceiptEnd      ErrorCode = "ERR_RECEIPT_END"
	ErrPaperFeed       ErrorCode = "ERR_PAPER_FEED"
	ErrUnrecover       ErrorCode = "ERR_UNRECOVER"
	ErrAutocutter      ErrorCode = "ERR_AUTOCUTTER"
	ErrOverheatHead    ErrorCode = "ERR_OVERHEAT_HEAD"
	ErrOverheatMotor   ErrorCode = "ERR_OVERHEAT_MOTOR"
	ErrOverheatBattery ErrorCode = "ERR_OVERHEAT_BATTERY"
	ErrWrongPaper      ErrorCode = "ERR_WRONG_PAPER"
	ErrBatteryEnd      ErrorCode = "ERR_BATTERY_END"
	ErrWaitRemoval     ErrorCode = "ERR_WAIT_REMOVAL"
	ErrVoltage         ErrorCode = "ERR_VOLTAGE"
)

// Receipt callback codes
const (
	CodeSuccess      ErrorCode = "CODE_SUCCESS"
	CodePrinting     ErrorCode = "CODE_PRINTING"
	ErrAutoRecover   ErrorCode = "ERR_AUTORECOVER"
	ErrCutter        ErrorCode = "ERR_CUTTER"
	ErrMechanical    ErrorCode = "ERR_MECHANICAL"
	ErrEmpty         ErrorCode = "ERR_EMPTY"
	ErrUnrecoverable ErrorCode = "ERR_UNRECOVERABLE"
	ErrFailure       ErrorCode = "ERR_FAILURE"
	ErrNotFound      ErrorCode = "ERR_NOT_FOUND"
	ErrSystem        ErrorCode = "ERR_SYSTEM"
	ErrPort          ErrorCode = "ERR_PORT"
	ErrTimeout       ErrorCode = "ERR_TIMEOUT"
)

// Local failures raised by the bridge itself
const (
	ErrConnect     ErrorCode = "ERR_CONNECT"
	ErrInUse       ErrorCode = "ERR_IN_USE"
	ErrParam       ErrorCode = "ERR_PARAM"
	ErrUnsupported ErrorCode = "ERR_UNSUPPORTED"
)

// Numeric receipt codes reported by the device layer
const (
	ResultSuccess = iota
	ResultPrinting
	ResultAutoRecover
	ResultCoverOpen
	ResultCutter
	ResultMechanical
	ResultEmpty
	ResultUnrecoverable
	ResultFailure
	ResultNotFound
	ResultSystem
	ResultPort
	ResultTimeout
)

var callbackCodes = []ErrorCode{
	CodeSuccess,
	CodePrinting,
	ErrAutoRecover,
	ErrCoverOpen,
	ErrCutter,
	ErrMechanical,
	ErrEmpty,
	ErrUnrecoverable,
	ErrFailure,
	ErrNotFound,
	ErrSystem,
	ErrPort,
	ErrTimeout,
}

// CallbackCode maps a numeric receipt code to its symbolic form
func CallbackCode(code int) ErrorCode {
	if code < 0 || code >= len(callbackCodes) {
		return ErrUnknown
	}
	return callbackCodes[code]
}

const (
	msgUnknown     = "Unknown error. Please check the power and communication status of the printer."
	msgNoResponse  = "Please check the connection of the printer and the mobile terminal.\nConnection get lost or timeout."
	msgCoverOpen   = "Please close roll paper cover."
	msgPaper       = "Please check roll paper."
	msgPaperFeed   = "Please release a paper feed switch."
	msgCutter      = "Please remove jammed paper and close roll paper cover.\nRemove any jammed paper or foreign substances in the printer, and then turn the printer off and turn the printer on again."
	msgNeedRecover = "Then, If the printer doesn't recover from error, please cycle the power switch."
	msgUnrecover   = "Please cycle the power switch of the printer.\nIf same errors occurred even power cycled, the printer may be out of order."
	msgOverheat    = "Please wait until error LED of the printer turns off. "
	msgHead        = "Print head of printer is hot."
	msgMotor       = "Motor Driver IC of printer is hot."
	msgBattery     = "Battery of printer is hot."
	msgWrongPaper  = "Please set correct roll paper."
	msgBatteryEnd  = "Please connect AC adapter or change the battery.\nBattery of printer is almost empty."
	msgOffline     = "Printer is offline."
	msgMechanical  = "Mechanical error occurred."
	msgFailure     = "Print job failed."
	msgSystem      = "System error occurred."
	msgPrinting    = "Printing job is in progress."
	msgAutoRecover = "Automatic recovery error occurred."
	msgNotFound    = "Printer not found."
	msgPort        = "Port error occurred. Please check the connection."
	msgWaitRemoval = "Please remove the printed paper."
	msgVoltage     = "Power supply voltage is abnormal. Please check the power supply."
	msgConnect     = "Can not connect to the printer."
	msgInUse       = "Printer is busy with another request."
	msgParam       = "Missing or invalid print data."
	msgUnsupported = "Method is not supported yet."
)

// Every line is newline terminated, composite messages concatenate their parts.
func line(parts ...string) string {
	var s string
	for _, p := range parts {
		s += p + "\n"
	}
	return s
}

var messages = map[ErrorCode]string{
	ErrUnknown:         line(msgUnknown),
	ErrOffline:         line(msgOffline),
	ErrNoResponse:      line(msgNoResponse),
	ErrCoverOpen:       line(msgCoverOpen),
	ErrReceiptEnd:      line(msgPaper),
	ErrPaperFeed:       line(msgPaperFeed),
	ErrUnrecover:       line(msgUnrecover),
	ErrAutocutter:      line(msgCutter, msgNeedRecover),
	ErrOverheatHead:    line(msgHead, msgOverheat),
	ErrOverheatMotor:   line(msgMotor, msgOverheat),
	ErrOverheatBattery: line(msgBattery, msgOverheat),
	ErrWrongPaper:      line(msgWrongPaper),
	ErrBatteryEnd:      line(msgBatteryEnd),
	ErrWaitRemoval:     line(msgWaitRemoval),
	ErrVoltage:         line(msgVoltage),

	CodeSuccess:      "Success",
	CodePrinting:     line(msgPrinting),
	ErrAutoRecover:   line(msgAutoRecover),
	ErrCutter:        line(msgCutter),
	ErrMechanical:    line(msgMechanical),
	ErrEmpty:         line(msgPaper),
	ErrUnrecoverable: line(msgUnrecover),
	ErrFailure:       line(msgFailure),
	ErrNotFound:      line(msgNotFound),
	ErrSystem:        line(msgSystem),
	ErrPort:          line(msgPort),
	ErrTimeout:       line(msgNoResponse),

	ErrConnect:     msgConnect,
	ErrInUse:       msgInUse,
	ErrParam:       msgParam,
	ErrUnsupported: msgUnsupported,
}

// Message returns the fixed human-readable text for a code
func (c ErrorCode) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[ErrUnknown]
}

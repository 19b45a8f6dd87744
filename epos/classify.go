package epos

// Classifier converts device status and receipt codes into an ErrorCode.
//
// Status checks run in a fixed order and every match overwrites the previous
// one, so a later, more specific condition (battery, overheat) wins over an
// earlier generic flag such as offline. The order is part of the wire
// contract.
type Classifier struct {
	// Extended adds the removal-waiting and voltage checks after the battery check.
	Extended bool
}

// FromStatus runs the ordered status checks. A nil snapshot yields ErrUnknown.
func (c Classifier) FromStatus(s *StatusSnapshot) ErrorCode {
	code := ErrUnknown
	if s == nil {
		return code
	}

	if s.Online == False {
		code = ErrOffline
	}
	if s.Connection == False {
		code = ErrNoResponse
	}
	if s.CoverOpen == True {
		code = ErrCoverOpen
	}
	if s.Paper == PaperEmpty {
		code = ErrReceiptEnd
	}
	if s.PaperFeed == True || s.PanelSwitchOn {
		code = ErrPaperFeed
	}
	if s.ErrorStatus == UnrecoverableError {
		code = ErrUnrecover
	}
	if s.ErrorStatus == MechanicalError || s.ErrorStatus == AutocutterError {
		code = ErrAutocutter
	}
	if s.ErrorStatus == AutoRecoverError {
		switch s.AutoRecoverError {
		case HeadOverheat:
			code = ErrOverheatHead
		case MotorOverheat:
			code = ErrOverheatMotor
		case BatteryOverheat:
			code = ErrOverheatBattery
		case WrongPaper:
			code = ErrWrongPaper
		}
	}
	if s.BatteryLevel == BatteryLevel0 {
		code = ErrBatteryEnd
	}

	if c.Extended {
		if s.RemovalWaiting == RemovalWaitPaper {
			code = ErrWaitRemoval
		}
		if s.UnrecoverError == HighVoltageError || s.UnrecoverError == LowVoltageError {
			code = ErrVoltage
		}
	}

	return code
}

// Classify combines a status reading with a receipt callback code.
// A specific status error takes priority; otherwise a non-zero callback code
// is mapped through the numeric table. Code zero with no status error is
// CodeSuccess.
func (c Classifier) Classify(s *StatusSnapshot, callbackCode int) ErrorCode {
	if code := c.FromStatus(s); code != ErrUnknown {
		return code
	}
	return CallbackCode(callbackCode)
}

// Classify uses the default classifier
func Classify(s *StatusSnapshot, callbackCode int) ErrorCode {
	return Classifier{}.Classify(s, callbackCode)
}

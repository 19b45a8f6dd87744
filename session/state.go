package session

// State is the lifecycle position of the shared printer connection
type State int

const (
	Idle State = iota
	Connecting
	Connected
	Transacting
	AwaitingReceipt
	Disconnecting
)

var stateNames = [...]string{
	Idle:            "idle",
	Connecting:      "connecting",
	Connected:       "connected",
	Transacting:     "transacting",
	AwaitingReceipt: "awaiting_receipt",
	Disconnecting:   "disconnecting",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

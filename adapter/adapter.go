package adapter

import "time"

// Adapter defines the interface for printer communication adapters
type Adapter interface {
	// Open opens the connection to the printer
	Open() error

	// Write sends data to the printer
	Write(data []byte) (int, error)

	// Read reads data from the printer
	Read(buf []byte) (int, error)

	// Close closes the connection to the printer
	Close() error

	// IsOpen returns whether the connection is open
	IsOpen() bool
}

// Deadliner is implemented by adapters whose writes and reads can be bounded
type Deadliner interface {
	SetDeadline(t time.Time) error
}

// SetDeadline applies a deadline when the adapter supports one
func SetDeadline(a Adapter, t time.Time) {
	if d, ok := a.(Deadliner); ok {
		_ = d.SetDeadline(t)
	}
}

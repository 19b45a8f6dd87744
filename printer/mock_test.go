package printer

import (
	"bytes"
	"errors"
	"sync"
)

// MockAdapter is a mock implementation of the Adapter interface for testing.
// It answers DLE EOT queries with the configured status bytes and any other
// registered request with its canned reply.
type MockAdapter struct {
	mu        sync.Mutex
	open      bool
	writeData []byte
	pending   []byte
	status    [4]byte
	replies   map[string][]byte
	writeErr  error
	closed    int
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		open:    true,
		status:  [4]byte{0x12, 0x12, 0x12, 0x12},
		replies: make(map[string][]byte),
	}
}

func (m *MockAdapter) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

func (m *MockAdapter) Write(data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	if len(data) == 3 && data[0] == DLE && data[1] == EOT && data[2] >= 1 && data[2] <= 4 {
		m.pending = append(m.pending, m.status[data[2]-1])
		return len(data), nil
	}
	if reply, ok := m.replies[string(data)]; ok {
		m.pending = append(m.pending, reply...)
		return len(data), nil
	}
	m.writeData = append(m.writeData, data...)
	return len(data), nil
}

func (m *MockAdapter) Read(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return 0, errors.New("read timeout")
	}
	n := copy(buf, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.closed++
	return nil
}

func (m *MockAdapter) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *MockAdapter) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.writeData)
}

func (m *MockAdapter) SetStatus(n1, n2, n3, n4 byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = [4]byte{n1, n2, n3, n4}
}

func (m *MockAdapter) Reply(req, resp []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[string(req)] = resp
}

func (m *MockAdapter) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

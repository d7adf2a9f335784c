package websocket

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errMockClosed = errors.New("mock connection closed")

// MockFrame is one frame written to or queued for reading from a
// MockConnection
type MockFrame struct {
	Type int
	Data []byte
	Err  error
}

// MockConnection is an in-memory Connection. Reads are served from frames
// queued with AddReadMessage and block once the queue is drained until the
// connection is closed.
type MockConnection struct {
	mu      sync.Mutex
	reads   []MockFrame
	written []MockFrame
	closed  bool
	wake    chan struct{}

	ReadLimit int64
	Addr      net.Addr
}

// NewMockConnection returns an open mock connection
func NewMockConnection() *MockConnection {
	return &MockConnection{
		wake: make(chan struct{}, 1),
		Addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 52100},
	}
}

// AddReadMessage queues a frame for ReadMessage. A non-nil err is returned
// in place of the frame.
func (m *MockConnection) AddReadMessage(messageType int, data []byte, err error) {
	m.mu.Lock()
	m.reads = append(m.reads, MockFrame{Type: messageType, Data: data, Err: err})
	m.mu.Unlock()
	m.signal()
}

func (m *MockConnection) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	for {
		m.mu.Lock()
		if len(m.reads) > 0 {
			f := m.reads[0]
			m.reads = m.reads[1:]
			m.mu.Unlock()
			return f.Type, f.Data, f.Err
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		<-m.wake
	}
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errMockClosed
	}
	m.written = append(m.written, MockFrame{Type: messageType, Data: append([]byte(nil), data...)})
	return nil
}

func (m *MockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	m.ReadLimit = limit
	m.mu.Unlock()
}

func (m *MockConnection) SetReadDeadline(time.Time) error  { return nil }
func (m *MockConnection) SetWriteDeadline(time.Time) error { return nil }
func (m *MockConnection) SetPongHandler(func(string) error) {}
func (m *MockConnection) RemoteAddr() net.Addr              { return m.Addr }

func (m *MockConnection) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
	return nil
}

// IsClosed reports whether Close was called
func (m *MockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetWrittenMessages returns a copy of every frame written so far
func (m *MockConnection) GetWrittenMessages() []MockFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockFrame(nil), m.written...)
}

// TextMessages returns the payloads of the text frames written so far
func (m *MockConnection) TextMessages() [][]byte {
	var out [][]byte
	for _, f := range m.GetWrittenMessages() {
		if f.Type == websocket.TextMessage {
			out = append(out, f.Data)
		}
	}
	return out
}

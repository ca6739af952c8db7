package driver

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// MockPort is an in-memory Port. Bytes given to Feed are returned by Read;
// bytes written are recorded and, in echo mode, looped back to the reader.
type MockPort struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	mu       sync.Mutex
	closed   bool
	echo     bool
	readErr  error
	writeErr error

	closeCount int
}

var _ Port = (*MockPort)(nil)

var errMockClosed = errors.New("port closed")

func NewMockPort() *MockPort {
	return &MockPort{
		readBuf:  new(bytes.Buffer),
		writeBuf: new(bytes.Buffer),
	}
}

// SetEcho makes every written byte readable again (loop://)
func (m *MockPort) SetEcho(echo bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echo = echo
}

// Feed queues bytes as if the device had sent them
func (m *MockPort) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Write(p)
}

// FailReads makes every following Read return err
func (m *MockPort) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// FailWrites makes every following Write return err
func (m *MockPort) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Written returns a copy of everything written so far
func (m *MockPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.writeBuf.Bytes())
}

// CloseCount reports how many times Close actually released the port
func (m *MockPort) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

func (m *MockPort) Read(p []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, wrapErr(loopScheme, "read", errMockClosed)
	}
	if m.readErr != nil {
		return 0, wrapErr(loopScheme, "read", m.readErr)
	}
	if m.readBuf.Len() == 0 {
		return 0, nil
	}
	n, err = m.readBuf.Read(p)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (m *MockPort) Write(p []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, wrapErr(loopScheme, "write", errMockClosed)
	}
	if m.writeErr != nil {
		return 0, wrapErr(loopScheme, "write", m.writeErr)
	}
	m.writeBuf.Write(p)
	if m.echo {
		m.readBuf.Write(p)
	}
	return len(p), nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.closeCount++
	return nil
}

func (m *MockPort) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Reset()
	return nil
}

func (m *MockPort) ResetOutputBuffer() error {
	return nil
}

package driver

import (
	"errors"
	"net"
	"sync"
	"time"

	"uart-test/logger"
)

// TCPPort wraps a TCP connection as a Port interface
// Used for serial-over-TCP bridges (ser2net, mock-fpga)
type TCPPort struct {
	conn        net.Conn
	address     string
	readTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Ensure TCPPort implements Port interface
var _ Port = (*TCPPort)(nil)

const dialTimeout = 5 * time.Second

// OpenTCP opens a TCP connection to a serial bridge
func OpenTCP(address string, readTimeout time.Duration) (Port, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, wrapErr(tcpScheme+address, "open", err)
	}

	logger.Info("Connected to %s (TCP)", address)
	return newTCPPort(conn, address, readTimeout), nil
}

func newTCPPort(conn net.Conn, address string, readTimeout time.Duration) *TCPPort {
	return &TCPPort{conn: conn, address: address, readTimeout: readTimeout}
}

func (t *TCPPort) Read(p []byte) (int, error) {
	// Set read deadline to prevent blocking forever
	if err := t.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
		return 0, wrapErr(t.name(), "read", err)
	}
	n, err := t.conn.Read(p)

	// Convert timeout to nil error (expected behavior)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return n, nil
	}
	return n, wrapErr(t.name(), "read", err)
}

func (t *TCPPort) Write(p []byte) (int, error) {
	n, err := t.conn.Write(p)
	return n, wrapErr(t.name(), "write", err)
}

func (t *TCPPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	logger.Info("Disconnected from %s (TCP)", t.address)
	return t.conn.Close()
}

func (t *TCPPort) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

func (t *TCPPort) ResetInputBuffer() error {
	// Drain any pending data
	buf := make([]byte, 1024)
	for {
		if err := t.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond)); err != nil {
			return wrapErr(t.name(), "reset", err)
		}
		n, err := t.conn.Read(buf)
		if n == 0 || err != nil {
			break
		}
	}
	return nil
}

// ResetOutputBuffer is a no-op: TCP writes are not queued locally
func (t *TCPPort) ResetOutputBuffer() error {
	return nil
}

// GetAddress returns the TCP address for logging
func (t *TCPPort) GetAddress() string {
	return t.address
}

func (t *TCPPort) name() string {
	return tcpScheme + t.address
}

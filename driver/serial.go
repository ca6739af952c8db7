package driver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"uart-test/logger"
)

// ============================================================================
// Serial Port (Physical UART)
// ============================================================================

// SerialPort wraps go.bug.st/serial with close-once semantics
type SerialPort struct {
	port     serial.Port
	portName string

	mu     sync.Mutex
	closed bool
}

var _ Port = (*SerialPort)(nil)

// openSerialPort opens a physical serial port with 8N1 framing and no flow control
func openSerialPort(portName string, baudRate int, readTimeout time.Duration) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, wrapErr(portName, "open", err)
	}

	// Bounded reads keep the session loop responsive to the keyboard
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, wrapErr(portName, "open", fmt.Errorf("failed to set read timeout: %w", err))
	}

	logger.Info("Serial port %s opened at %d bps (8N1)", portName, baudRate)
	return &SerialPort{port: port, portName: portName}, nil
}

func (p *SerialPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	return n, wrapErr(p.portName, "read", err)
}

func (p *SerialPort) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)
	return n, wrapErr(p.portName, "write", err)
}

func (p *SerialPort) ResetInputBuffer() error {
	return wrapErr(p.portName, "reset", p.port.ResetInputBuffer())
}

func (p *SerialPort) ResetOutputBuffer() error {
	return wrapErr(p.portName, "reset", p.port.ResetOutputBuffer())
}

// Close releases the OS handle. Only the first call has an effect.
func (p *SerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	logger.Info("Serial port %s closed", p.portName)
	return p.port.Close()
}

func (p *SerialPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *SerialPort) GetPortName() string {
	return p.portName
}

// ============================================================================
// Unified Open Function
// ============================================================================

const (
	tcpScheme  = "tcp://"
	loopScheme = "loop://"
)

// OpenSerial opens a port - physical serial, TCP bridge or in-memory loopback
// depending on the address format.
// TCP addresses: "tcp://host:port"
// Loopback: "loop://"
// Serial ports: "COM3", "/dev/ttyUSB0", etc.
func OpenSerial(portName string, baudRate int, readTimeout time.Duration) (Port, error) {
	switch {
	case strings.HasPrefix(portName, tcpScheme):
		return OpenTCP(strings.TrimPrefix(portName, tcpScheme), readTimeout)
	case strings.HasPrefix(portName, loopScheme):
		m := NewMockPort()
		m.SetEcho(true)
		logger.Info("Loopback port opened")
		return m, nil
	}
	port, err := openSerialPort(portName, baudRate, readTimeout)
	if err != nil {
		return nil, err
	}
	return port, nil
}

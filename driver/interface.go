package driver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"go.bug.st/serial"
)

// Port defines the byte link to the device under test
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	ResetOutputBuffer() error
	IsOpen() bool
}

// ConnectionError reports a failure on the link itself: the port could not
// be opened, or a read/write on an open port failed.
type ConnectionError struct {
	Port string
	Op   string // "open", "read", "write", "reset"
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Hint returns a remediation line for well-known serial failures, or ""
func (e *ConnectionError) Hint() string {
	if errors.Is(e.Err, fs.ErrNotExist) {
		return "Port not found: run with --list to see available ports"
	}
	if errors.Is(e.Err, fs.ErrPermission) {
		return "Permission denied: add your user to the dialout/uucp group or run with sudo"
	}
	var pe *serial.PortError
	if !errors.As(e.Err, &pe) {
		return ""
	}
	switch pe.Code() {
	case serial.PortNotFound:
		return "Port not found: run with --list to see available ports"
	case serial.PortBusy:
		return "Port is busy: close any other terminal program using it"
	case serial.PermissionDenied:
		return "Permission denied: add your user to the dialout/uucp group or run with sudo"
	case serial.InvalidSpeed:
		return "Baud rate not supported by this port"
	case serial.PortClosed:
		return "Port was closed: the device may have been unplugged"
	}
	return ""
}

func wrapErr(port, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Port: port, Op: op, Err: err}
}

// Package session runs the interactive loop between the operator's keyboard
// and the device under test.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"uart-test/driver"
	"uart-test/logger"
	"uart-test/protocol"
)

const readBufSize = 4096

// ErrInterrupted is returned when the operator interrupts the session
var ErrInterrupted = errors.New("interrupted by user")

// KeyPoller reports at most one pending key press without blocking
type KeyPoller interface {
	PollKey() (byte, bool, error)
}

// Opener opens the named port
type Opener func(name string, baudRate int, readTimeout time.Duration) (driver.Port, error)

// Options configures a session
type Options struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
	Interval    time.Duration
	QuitKey     byte

	Out      io.Writer
	Observer Observer
	State    *StateMachine
}

func (o *Options) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Millisecond
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Millisecond
	}
	if o.QuitKey == 0 {
		o.QuitKey = protocol.DefaultQuitKey
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.State == nil {
		o.State = NewStateMachine()
	}
}

// Session polls one open port and one keyboard from a single goroutine
type Session struct {
	opts Options
	port driver.Port
	keys KeyPoller
}

func New(port driver.Port, keys KeyPoller, opts Options) *Session {
	opts.setDefaults()
	return &Session{opts: opts, port: port, keys: keys}
}

// Run loops until the quit key, ctx cancellation or a link error. It
// returns nil on quit, ErrInterrupted on cancellation and the
// *driver.ConnectionError otherwise. The port is left for the caller to
// release.
func (s *Session) Run(ctx context.Context) error {
	s.opts.State.TransitionTo(StateRunning)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	buf := make([]byte, readBufSize)
	for {
		if ctx.Err() != nil {
			return ErrInterrupted
		}

		// 1. Inbound bytes, bounded by the port read timeout
		n, err := s.port.Read(buf)
		if n > 0 {
			s.receive(buf[:n])
		}
		if err != nil {
			return err
		}

		// 2. At most one key press
		key, ok, err := s.keys.PollKey()
		if err != nil {
			return fmt.Errorf("poll keyboard: %w", err)
		}
		if ok {
			if key == s.opts.QuitKey {
				logger.Info("Quit key pressed")
				return nil
			}
			if err := s.transmit(key); err != nil {
				return err
			}
		}

		// 3. Yield
		select {
		case <-ctx.Done():
			return ErrInterrupted
		case <-ticker.C:
		}
	}
}

func (s *Session) receive(chunk []byte) {
	fmt.Fprintln(s.opts.Out, protocol.FormatRX(chunk))
	logger.Protocol("RX", "data", chunk)
	s.opts.State.CountRX(len(chunk))
	s.opts.Observer.Observe(rxEvent(chunk))
}

func (s *Session) transmit(key byte) error {
	fmt.Fprintln(s.opts.Out, protocol.FormatTX(key))
	if _, err := s.port.Write([]byte{key}); err != nil {
		return err
	}
	logger.Protocol("TX", "key", []byte{key})
	s.opts.State.CountTX(1)
	s.opts.Observer.Observe(txEvent(key))
	return nil
}

// Launch opens the port, runs a session and reports every outcome to the
// operator. The port is closed on every path once it has been opened.
func Launch(ctx context.Context, opts Options, open Opener, keys KeyPoller) error {
	opts.setDefaults()
	out := opts.Out
	state := opts.State

	fmt.Fprintf(out, "Opening serial port %s at %d baud...\n", opts.Port, opts.BaudRate)
	state.Opening(opts.Port, opts.BaudRate)

	port, err := open(opts.Port, opts.BaudRate, opts.ReadTimeout)
	if err != nil {
		logger.Error("Failed to open %s: %v", opts.Port, err)
		state.TransitionToError(err.Error())
		reportConnectionError(out, err)
		return err
	}
	defer release(out, port, state)

	// Clear any existing data
	if err := port.ResetInputBuffer(); err != nil {
		return fail(out, state, err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		return fail(out, state, err)
	}

	fmt.Fprintln(out, "Serial port opened successfully!")
	fmt.Fprintln(out, "Waiting for FPGA messages...")
	fmt.Fprintln(out, protocol.CommandHelp(opts.QuitKey))
	fmt.Fprintln(out, protocol.Rule('-'))

	err = New(port, keys, opts).Run(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInterrupted):
		logger.Info("Session interrupted")
		fmt.Fprintln(out, "\nInterrupted by user")
		return err
	default:
		return fail(out, state, err)
	}
}

func fail(out io.Writer, state *StateMachine, err error) error {
	logger.Error("Session failed: %v", err)
	state.TransitionToError(err.Error())

	var ce *driver.ConnectionError
	if errors.As(err, &ce) {
		reportConnectionError(out, err)
	} else {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
	return err
}

func reportConnectionError(out io.Writer, err error) {
	fmt.Fprintf(out, "Error: %v\n", err)
	var ce *driver.ConnectionError
	if errors.As(err, &ce) {
		if hint := ce.Hint(); hint != "" {
			fmt.Fprintln(out, hint)
		}
	}
	fmt.Fprintln(out, "\nTroubleshooting:")
	fmt.Fprintln(out, "1. Check that the correct port is specified")
	fmt.Fprintln(out, "2. Ensure no other program is using the port")
	fmt.Fprintln(out, "3. Verify the FPGA is connected and programmed")
}

func release(out io.Writer, port driver.Port, state *StateMachine) {
	if !port.IsOpen() {
		return
	}
	if err := port.Close(); err != nil {
		logger.Error("Close failed: %v", err)
	}
	if state.GetState() != StateError {
		state.TransitionTo(StateClosed)
	}
	fmt.Fprintln(out, "Serial port closed")
}

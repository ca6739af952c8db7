package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"uart-test/driver"
)

type step func() (byte, bool)

func press(k byte) step { return func() (byte, bool) { return k, true } }

func idle() step { return func() (byte, bool) { return 0, false } }

func do(f func()) step {
	return func() (byte, bool) {
		f()
		return 0, false
	}
}

// scriptedKeys replays one step per poll, then reports no key forever
type scriptedKeys struct {
	steps []step
	err   error
}

func (k *scriptedKeys) PollKey() (byte, bool, error) {
	if k.err != nil {
		return 0, false, k.err
	}
	if len(k.steps) == 0 {
		return 0, false, nil
	}
	s := k.steps[0]
	k.steps = k.steps[1:]
	b, ok := s()
	return b, ok, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) Observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingObserver) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func testContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx, cancel
}

func fastOptions(out io.Writer) Options {
	return Options{
		Port:        "loop://",
		BaudRate:    115200,
		Interval:    time.Millisecond,
		ReadTimeout: time.Millisecond,
		Out:         out,
	}
}

func TestRunPrintsASCIIChunk(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	port.Feed([]byte{0x41, 0x42})
	var out bytes.Buffer

	err := New(port, &scriptedKeys{steps: []step{idle(), press('q')}}, fastOptions(&out)).Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, "RX: 4142 -> 'AB'\n", out.String())
}

func TestRunPrintsNonASCIIChunk(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	port.Feed([]byte{0xFF, 0x00})
	var out bytes.Buffer

	err := New(port, &scriptedKeys{steps: []step{press('q')}}, fastOptions(&out)).Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, "RX: ff00 -> (non-ASCII)\n", out.String())
}

func TestRunTransmitsKey(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	var out bytes.Buffer

	err := New(port, &scriptedKeys{steps: []step{press('5'), press('q')}}, fastOptions(&out)).Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, []byte{0x35}, port.Written())
	assert.Equal(t, "TX: '5' (35)\n", out.String())
}

func TestRunEveryKeyIsOneByte(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	var out bytes.Buffer

	keys := &scriptedKeys{steps: []step{press('e'), idle(), press('0'), press('7'), press('r'), press('q')}}
	require.NoError(t, New(port, keys, fastOptions(&out)).Run(ctx))

	assert.Equal(t, []byte("e07r"), port.Written())
	assert.Equal(t, 4, strings.Count(out.String(), "TX: "))
}

func TestRunQuitTransmitsNothing(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	var out bytes.Buffer

	err := New(port, &scriptedKeys{steps: []step{press('q')}}, fastOptions(&out)).Run(ctx)

	require.NoError(t, err)
	assert.Empty(t, port.Written())
	assert.NotContains(t, out.String(), "TX:")
}

func TestRunCustomQuitKey(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	var out bytes.Buffer
	opts := fastOptions(&out)
	opts.QuitKey = 'x'

	err := New(port, &scriptedKeys{steps: []step{press('q'), press('x')}}, opts).Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, []byte("q"), port.Written())
}

func TestRunLoopbackEcho(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	port.SetEcho(true)
	var out bytes.Buffer

	err := New(port, &scriptedKeys{steps: []step{press('5'), idle(), press('q')}}, fastOptions(&out)).Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, "TX: '5' (35)\nRX: 35 -> '5'\n", out.String())
}

func TestRunInterruptedBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	port := driver.NewMockPort()

	err := New(port, &scriptedKeys{steps: []step{press('5')}}, fastOptions(io.Discard)).Run(ctx)

	require.ErrorIs(t, err, ErrInterrupted)
	assert.Empty(t, port.Written())
}

func TestRunInterruptedWhileIdle(t *testing.T) {
	ctx, cancel := testContext(t)
	port := driver.NewMockPort()

	err := New(port, &scriptedKeys{steps: []step{idle(), do(cancel)}}, fastOptions(io.Discard)).Run(ctx)

	require.ErrorIs(t, err, ErrInterrupted)
}

func TestRunReadErrorEndsLoop(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	port.FailReads(io.ErrUnexpectedEOF)

	err := New(port, &scriptedKeys{}, fastOptions(io.Discard)).Run(ctx)

	var ce *driver.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "read", ce.Op)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRunWriteErrorEndsLoop(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	port.FailWrites(io.ErrClosedPipe)

	err := New(port, &scriptedKeys{steps: []step{press('5')}}, fastOptions(io.Discard)).Run(ctx)

	var ce *driver.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "write", ce.Op)
}

func TestRunKeyboardError(t *testing.T) {
	ctx, _ := testContext(t)
	boom := errors.New("tty gone")

	err := New(driver.NewMockPort(), &scriptedKeys{err: boom}, fastOptions(io.Discard)).Run(ctx)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "poll keyboard")
}

func TestRunNotifiesObserverAndCounts(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	port.SetEcho(true)
	obs := &recordingObserver{}
	state := NewStateMachine()
	opts := fastOptions(io.Discard)
	opts.Observer = obs
	opts.State = state

	err := New(port, &scriptedKeys{steps: []step{press('5'), idle(), press('q')}}, opts).Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{EventTX, EventRX}, obs.kinds())
	assert.Equal(t, "35", obs.events[0].Hex)
	assert.Equal(t, "5", obs.events[1].Text)
	info := state.GetStatusInfo()
	assert.EqualValues(t, 1, info.TxBytes)
	assert.EqualValues(t, 1, info.RxBytes)
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestLaunchQuitSession(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	open := func(string, int, time.Duration) (driver.Port, error) { return port, nil }
	state := NewStateMachine()
	var out bytes.Buffer
	opts := fastOptions(&out)
	opts.State = state

	keys := &scriptedKeys{steps: []step{do(func() { port.Feed([]byte("AB")) }), press('q')}}
	err := Launch(ctx, opts, open, keys)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"Opening serial port loop:// at 115200 baud...",
		"Serial port opened successfully!",
		"Waiting for FPGA messages...",
		"Commands: 'e' = enter, 'r' = reset, '0'-'7' = toggle bits, 'q' = quit",
		strings.Repeat("-", 60),
		"RX: 4142 -> 'AB'",
		"Serial port closed",
	}, lines(out.String()))
	assert.False(t, port.IsOpen())
	assert.Equal(t, 1, port.CloseCount())
	assert.Equal(t, StateClosed, state.GetState())
}

func TestLaunchDiscardsStaleInput(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	port.Feed([]byte("stale"))
	open := func(string, int, time.Duration) (driver.Port, error) { return port, nil }
	var out bytes.Buffer

	require.NoError(t, Launch(ctx, fastOptions(&out), open, &scriptedKeys{steps: []step{idle(), press('q')}}))

	assert.NotContains(t, out.String(), "RX:")
}

func TestLaunchInterrupted(t *testing.T) {
	ctx, cancel := testContext(t)
	port := driver.NewMockPort()
	open := func(string, int, time.Duration) (driver.Port, error) { return port, nil }
	var out bytes.Buffer

	err := Launch(ctx, fastOptions(&out), open, &scriptedKeys{steps: []step{do(cancel)}})

	require.ErrorIs(t, err, ErrInterrupted)
	assert.True(t, strings.HasSuffix(out.String(), "\nInterrupted by user\nSerial port closed\n"))
	assert.Equal(t, 1, port.CloseCount())
}

func TestLaunchOpenFailure(t *testing.T) {
	ctx, _ := testContext(t)
	openErr := &driver.ConnectionError{Port: "/dev/ttyUSB9", Op: "open", Err: fs.ErrNotExist}
	open := func(string, int, time.Duration) (driver.Port, error) { return nil, openErr }
	state := NewStateMachine()
	var out bytes.Buffer
	opts := fastOptions(&out)
	opts.Port = "/dev/ttyUSB9"
	opts.State = state

	err := Launch(ctx, opts, open, &scriptedKeys{})

	require.ErrorIs(t, err, fs.ErrNotExist)
	got := out.String()
	assert.True(t, strings.HasPrefix(got, "Opening serial port /dev/ttyUSB9 at 115200 baud...\nError: open /dev/ttyUSB9: "))
	assert.Contains(t, got, "Port not found: run with --list")
	assert.Contains(t, got, "\nTroubleshooting:\n1. Check that the correct port is specified\n2. Ensure no other program is using the port\n3. Verify the FPGA is connected and programmed\n")
	assert.NotContains(t, got, "Serial port opened successfully!")
	assert.NotContains(t, got, "Serial port closed")
	assert.Equal(t, StateError, state.GetState())
}

func TestLaunchReadErrorClosesPort(t *testing.T) {
	ctx, _ := testContext(t)
	port := driver.NewMockPort()
	open := func(string, int, time.Duration) (driver.Port, error) { return port, nil }
	state := NewStateMachine()
	var out bytes.Buffer
	opts := fastOptions(&out)
	opts.State = state

	keys := &scriptedKeys{steps: []step{do(func() { port.FailReads(io.ErrUnexpectedEOF) })}}
	err := Launch(ctx, opts, open, keys)

	var ce *driver.ConnectionError
	require.ErrorAs(t, err, &ce)
	got := out.String()
	assert.Contains(t, got, "Error: read loop://: unexpected EOF\n")
	assert.Contains(t, got, "Troubleshooting:")
	assert.True(t, strings.HasSuffix(got, "Serial port closed\n"))
	assert.False(t, port.IsOpen())
	assert.Equal(t, StateError, state.GetState())
	assert.Equal(t, "read loop://: unexpected EOF", state.GetStatusInfo().LastError)
}

package console

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/windows"
	"golang.org/x/term"
)

// Keyboard delivers console key presses through a reader goroutine
type Keyboard struct {
	stream  *streamReader
	handle  windows.Handle
	oldMode uint32
	hasMode bool
	closeMu sync.Mutex
}

// Open prepares f (normally os.Stdin) for key polling. A console has line
// input and echo disabled until Close; Ctrl-C processing is kept.
func Open(f *os.File) (*Keyboard, error) {
	k := &Keyboard{handle: windows.Handle(f.Fd())}
	if term.IsTerminal(int(f.Fd())) {
		var mode uint32
		if err := windows.GetConsoleMode(k.handle, &mode); err != nil {
			return nil, fmt.Errorf("get console mode: %w", err)
		}
		raw := mode &^ (windows.ENABLE_LINE_INPUT | windows.ENABLE_ECHO_INPUT)
		if err := windows.SetConsoleMode(k.handle, raw); err != nil {
			return nil, fmt.Errorf("set console mode: %w", err)
		}
		k.oldMode, k.hasMode = mode, true
	}
	k.stream = newStreamReader(f)
	return k, nil
}

// PollKey returns the next pending byte, if any. It never blocks.
func (k *Keyboard) PollKey() (byte, bool, error) {
	key, ok := k.stream.poll()
	return key, ok, nil
}

// Close restores the console mode saved by Open
func (k *Keyboard) Close() error {
	k.closeMu.Lock()
	defer k.closeMu.Unlock()
	if !k.hasMode {
		return nil
	}
	k.hasMode = false
	if err := windows.SetConsoleMode(k.handle, k.oldMode); err != nil {
		return fmt.Errorf("restore console mode: %w", err)
	}
	return nil
}

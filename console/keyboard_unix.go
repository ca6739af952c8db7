//go:build linux || darwin || freebsd || netbsd || openbsd

package console

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/creack/goselect"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
	"uart-test/logger"
)

// Keyboard reads single bytes from a terminal or pipe without blocking
type Keyboard struct {
	file    *os.File
	fd      int
	saved   *unix.Termios
	eof     bool
	closeMu sync.Mutex
}

// Open prepares f (normally os.Stdin) for key polling. A terminal is
// switched to cbreak mode until Close.
func Open(f *os.File) (*Keyboard, error) {
	k := &Keyboard{file: f, fd: int(f.Fd())}
	if !term.IsTerminal(k.fd) {
		logger.Info("Keyboard input is not a terminal, reading as stream")
		return k, nil
	}

	saved, err := unix.IoctlGetTermios(k.fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// cbreak: keys arrive one at a time without echo, Ctrl-C still signals
	cbreak := *saved
	cbreak.Lflag &^= unix.ICANON | unix.ECHO
	cbreak.Cc[unix.VMIN] = 1
	cbreak.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(k.fd, ioctlSetTermios, &cbreak); err != nil {
		return nil, fmt.Errorf("set termios: %w", err)
	}
	k.saved = saved
	return k, nil
}

// PollKey returns the next pending byte, if any. It never blocks.
func (k *Keyboard) PollKey() (byte, bool, error) {
	if k.eof {
		return 0, false, nil
	}

	fds := &goselect.FDSet{}
	fds.Set(uintptr(k.fd))
	if err := goselect.Select(k.fd+1, fds, nil, nil, 0); err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("select stdin: %w", err)
	}
	if !fds.IsSet(uintptr(k.fd)) {
		return 0, false, nil
	}

	var buf [1]byte
	n, err := unix.Read(k.fd, buf[:])
	switch {
	case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read stdin: %w", err)
	case n == 0:
		logger.Info("Keyboard input closed")
		k.eof = true
		return 0, false, nil
	}
	return buf[0], true, nil
}

// Close restores the terminal mode saved by Open
func (k *Keyboard) Close() error {
	k.closeMu.Lock()
	defer k.closeMu.Unlock()
	if k.saved == nil {
		return nil
	}
	err := unix.IoctlSetTermios(k.fd, ioctlSetTermios, k.saved)
	k.saved = nil
	if err != nil {
		return fmt.Errorf("restore termios: %w", err)
	}
	return nil
}

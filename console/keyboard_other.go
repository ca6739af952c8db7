//go:build !windows && !linux && !darwin && !freebsd && !netbsd && !openbsd

package console

import "os"

// Keyboard delivers key presses through a reader goroutine. The terminal
// mode is left untouched, so input arrives a line at a time.
type Keyboard struct {
	stream *streamReader
}

// Open prepares f (normally os.Stdin) for key polling
func Open(f *os.File) (*Keyboard, error) {
	return &Keyboard{stream: newStreamReader(f)}, nil
}

// PollKey returns the next pending byte, if any. It never blocks.
func (k *Keyboard) PollKey() (byte, bool, error) {
	key, ok := k.stream.poll()
	return key, ok, nil
}

func (k *Keyboard) Close() error {
	return nil
}

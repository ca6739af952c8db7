// Package console polls the controlling terminal for single key presses
// without blocking.
//
// Open returns a Keyboard whose backend depends on the host: on unix the
// terminal is put in cbreak mode and stdin readiness is checked with a
// zero-timeout select; elsewhere a reader goroutine feeds a buffered
// channel. Either way PollKey returns immediately.
package console

import (
	"io"

	"uart-test/logger"
)

const keyBacklog = 64

// streamReader turns a blocking reader into a non-blocking key source
type streamReader struct {
	keys chan byte
}

func newStreamReader(r io.Reader) *streamReader {
	s := &streamReader{keys: make(chan byte, keyBacklog)}
	go s.run(r)
	return s
}

func (s *streamReader) run(r io.Reader) {
	defer close(s.keys)
	var buf [1]byte
	for {
		n, err := r.Read(buf[:])
		if n == 1 {
			s.keys <- buf[0]
		}
		if err != nil {
			if err != io.EOF {
				logger.Error("Keyboard read failed: %v", err)
			} else {
				logger.Info("Keyboard input closed")
			}
			return
		}
	}
}

func (s *streamReader) poll() (byte, bool) {
	select {
	case k, ok := <-s.keys:
		return k, ok
	default:
		return 0, false
	}
}

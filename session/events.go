package session

import (
	"time"

	"uart-test/protocol"
)

// Event kinds
const (
	EventRX     = "rx"
	EventTX     = "tx"
	EventStatus = "status"
)

// Event is one observable thing that happened during a session
type Event struct {
	Kind   string      `json:"kind"`
	Time   time.Time   `json:"time"`
	Hex    string      `json:"hex,omitempty"`
	Text   string      `json:"text,omitempty"`
	ASCII  bool        `json:"ascii,omitempty"`
	Status *StatusInfo `json:"status,omitempty"`
}

// Observer receives events from the session loop. Observe must not block.
type Observer interface {
	Observe(Event)
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

func rxEvent(chunk []byte) Event {
	ev := Event{Kind: EventRX, Time: time.Now(), Hex: protocol.HexString(chunk)}
	if text, err := protocol.DecodeASCII(chunk); err == nil {
		ev.Text, ev.ASCII = text, true
	}
	return ev
}

func txEvent(key byte) Event {
	ev := rxEvent([]byte{key})
	ev.Kind = EventTX
	return ev
}

// StatusEvent wraps a status snapshot
func StatusEvent(info StatusInfo) Event {
	return Event{Kind: EventStatus, Time: time.Now(), Status: &info}
}

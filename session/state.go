package session

import (
	"sync"
	"time"
)

// State represents where the session is in its lifecycle
type State int

const (
	StateIdle State = iota
	StateOpening
	StateRunning
	StateClosed
	StateError
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOpening:
		return "OPENING"
	case StateRunning:
		return "RUNNING"
	case StateClosed:
		return "CLOSED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StatusInfo contains detailed status information for broadcasting
type StatusInfo struct {
	State       string    `json:"state"`
	Message     string    `json:"message"`
	Port        string    `json:"port,omitempty"`
	BaudRate    int       `json:"baud_rate,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	LastError   string    `json:"last_error,omitempty"`
	RxBytes     int64     `json:"rx_bytes"`
	TxBytes     int64     `json:"tx_bytes"`
	IsConnected bool      `json:"is_connected"`
}

// StateChangeCallback is called when state changes
type StateChangeCallback func(info StatusInfo)

// StateMachine tracks session state with thread-safety. The loop writes,
// monitor clients read from their own goroutines.
type StateMachine struct {
	mu sync.RWMutex

	currentState State
	stateStarted time.Time
	lastError    string
	port         string
	baudRate     int
	rxBytes      int64
	txBytes      int64

	onStateChange StateChangeCallback
}

// NewStateMachine creates a new state machine
func NewStateMachine() *StateMachine {
	return &StateMachine{currentState: StateIdle}
}

// SetCallback sets the state change callback
func (sm *StateMachine) SetCallback(cb StateChangeCallback) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onStateChange = cb
}

// GetState returns the current state
func (sm *StateMachine) GetState() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// GetStatusInfo returns the current status information
func (sm *StateMachine) GetStatusInfo() StatusInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.getStatusInfoLocked()
}

func (sm *StateMachine) getStatusInfoLocked() StatusInfo {
	info := StatusInfo{
		State:       sm.currentState.String(),
		Port:        sm.port,
		BaudRate:    sm.baudRate,
		LastError:   sm.lastError,
		RxBytes:     sm.rxBytes,
		TxBytes:     sm.txBytes,
		IsConnected: sm.currentState == StateRunning,
	}

	if sm.currentState != StateIdle {
		info.StartedAt = sm.stateStarted
		info.ElapsedMs = time.Since(sm.stateStarted).Milliseconds()
	}

	switch sm.currentState {
	case StateIdle:
		info.Message = "No port opened"
	case StateOpening:
		info.Message = "Opening serial port..."
	case StateRunning:
		info.Message = "Waiting for FPGA messages"
	case StateClosed:
		info.Message = "Serial port closed"
	case StateError:
		info.Message = "Connection failed: " + sm.lastError
	}

	return info
}

// Opening records the target port and moves to OPENING
func (sm *StateMachine) Opening(port string, baudRate int) {
	sm.mu.Lock()
	sm.port = port
	sm.baudRate = baudRate
	sm.rxBytes, sm.txBytes = 0, 0
	sm.mu.Unlock()
	sm.TransitionTo(StateOpening)
}

// TransitionTo changes to a new state
func (sm *StateMachine) TransitionTo(newState State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.currentState = newState
	sm.stateStarted = time.Now()

	if newState != StateError {
		sm.lastError = ""
	}

	sm.notifyLocked()
}

// TransitionToError transitions to error state with a message
func (sm *StateMachine) TransitionToError(err string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.currentState = StateError
	sm.stateStarted = time.Now()
	sm.lastError = err

	sm.notifyLocked()
}

// CountRX adds n received bytes. Counters do not notify.
func (sm *StateMachine) CountRX(n int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.rxBytes += int64(n)
}

// CountTX adds n transmitted bytes
func (sm *StateMachine) CountTX(n int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.txBytes += int64(n)
}

func (sm *StateMachine) notifyLocked() {
	if sm.onStateChange != nil {
		sm.onStateChange(sm.getStatusInfoLocked())
	}
}

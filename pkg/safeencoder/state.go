package safeencoder

import (
	"fmt"
)

type State uint32

const (
	StateUninitialized = State(iota)
	StateSpawning
	StateHandshaking
	StateReady
	StateShuttingDown
	StateTerminated
	StateSpawnFailed
	StateHandshakeFailed
	StateProtocolFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSpawning:
		return "spawning"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	case StateSpawnFailed:
		return "spawn_failed"
	case StateHandshakeFailed:
		return "handshake_failed"
	case StateProtocolFailed:
		return "protocol_failed"
	default:
		return fmt.Sprintf("unknown_state_%d", uint32(s))
	}
}

// IsFailed reports whether the session ended in one of the failure states.
func (s State) IsFailed() bool {
	switch s {
	case StateSpawnFailed, StateHandshakeFailed, StateProtocolFailed:
		return true
	}
	return false
}

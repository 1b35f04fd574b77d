package irc

import "fmt"

// ConnState is the per-server connection lifecycle state. Transitions are
// monotonic within one connection attempt: Idle through Connected never
// skips or reverses; Reconnecting re-enters at Resolving; Closed is terminal
// until a new Run is requested.
type ConnState int

const (
	StateIdle ConnState = iota
	StateResolving
	StateConnecting
	StateTLSHandshake
	StateRegistering
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateTLSHandshake:
		return "tls-handshake"
	case StateRegistering:
		return "registering"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// validTransition encodes the lifecycle graph. A violation is a programmer
// defect, not a runtime condition.
func validTransition(from, to ConnState) bool {
	switch to {
	case StateResolving:
		// A fresh Run request may also re-enter from Closed.
		return from == StateIdle || from == StateReconnecting || from == StateClosed
	case StateConnecting:
		return from == StateResolving
	case StateTLSHandshake:
		return from == StateConnecting
	case StateRegistering:
		return from == StateConnecting || from == StateTLSHandshake
	case StateConnected:
		return from == StateRegistering
	case StateReconnecting:
		// Any failure in an active attempt funnels here.
		return from != StateClosed && from != StateIdle
	case StateClosed:
		return from != StateClosed
	default:
		return false
	}
}

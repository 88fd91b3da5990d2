package stream

// State represents the current lifecycle state of the stream client.
// Exactly one value is active at a time; transitions are serialized by
// the client's mutex.
type State int32

const (
	// StateIdle indicates the client was created or started while disabled
	StateIdle State = iota
	// StateConnecting indicates a connection attempt is in progress
	StateConnecting
	// StateConnected indicates the subscription is live
	StateConnected
	// StateDisconnected indicates the transport dropped and a reconnect
	// is scheduled
	StateDisconnected
	// StateStopped indicates Stop was called; terminal
	StateStopped
)

// String returns a string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

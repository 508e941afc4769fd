package realtime

// State is the lifecycle position of the client's session.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	// StateUnauthorized and StateErrored are terminal variants of StateClosed.
	StateUnauthorized
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateUnauthorized:
		return "unauthorized"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Live reports whether a session is being established or is established.
func (s State) Live() bool {
	return s == StateConnecting || s == StateOpen
}

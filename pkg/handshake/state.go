package handshake

// State is a handshake state. States only move forward.
type State uint8

const (
	StateAwaitHandshake State = iota
	StateAwaitInit
	StateEstablished
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitHandshake:
		return "AWAIT_HANDSHAKE"
	case StateAwaitInit:
		return "AWAIT_INIT"
	case StateEstablished:
		return "ESTABLISHED"
	default:
		return "UNKNOWN"
	}
}

package stream

// State is the lifecycle state of the stream connection. It is owned solely
// by Conn; no other component mutates it.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribing
	StateActive
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

package base

// State is the lifecycle state of an Endpoint
type State uint8

const (
	StateInit         State = iota // Created, Connect not called yet
	StateConnecting                // Initial dial in progress
	StateConnected                 // A session is running
	StateLost                      // Connection loss or keepalive timeout observed
	StateReconnecting              // Reconnect attempts in progress
	StateKilled                    // Terminal
)

// transitions lists the allowed successor states. Killed is reachable from every
// state and handled separately.
var transitions = map[State][]State{
	StateInit:         {StateConnecting},
	StateConnecting:   {StateConnected, StateReconnecting},
	StateConnected:    {StateLost},
	StateLost:         {StateReconnecting},
	StateReconnecting: {StateConnected},
}

// CanTransition reports whether an endpoint in state s may move to next
func (s State) CanTransition(next State) bool {
	if s == StateKilled {
		return false
	}
	if next == StateKilled {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateLost:
		return "lost"
	case StateReconnecting:
		return "reconnecting"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

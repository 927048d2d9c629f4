package driver

import "fmt"

// State is the driver's lifecycle position.
type State int

// Lifecycle states. The driver moves Initial -> Stopped on Start,
// Stopped <-> Running as device sessions come and go, and back to
// Initial on Stop.
const (
	StateInitial State = iota
	StateStopped
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

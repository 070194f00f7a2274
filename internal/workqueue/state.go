package workqueue

// State is the lifecycle state of a processing queue.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
	StateError
)

var stateNames = map[State]string{
	StateIdle:     "idle",
	StateRunning:  "running",
	StateStopping: "stopping",
	StateStopped:  "stopped",
	StateError:    "error",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// acceptsWork reports whether items may be enqueued in this state.
func (s State) acceptsWork() bool {
	return s == StateIdle || s == StateRunning
}

package service

// State is a step of the driver service lifecycle.
type State int

const (
	// NotStarted is the state of a new Lifecycle.
	NotStarted State = iota
	// Starting covers launching the process and waiting for it to accept connections.
	Starting
	// Ready means the driver accepts commands. A session may or may not be active.
	Ready
	// Ending covers deleting the session and stopping the process.
	Ending
	// Ended is terminal after an orderly stop.
	Ended
	// Failed is terminal after a failed start or an unexpected process exit.
	Failed
)

var _stateNames = map[State]string{
	NotStarted: "not started",
	Starting:   "starting",
	Ready:      "ready",
	Ending:     "ending",
	Ended:      "ended",
	Failed:     "failed",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := _stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no transition leaves the state.
func (s State) Terminal() bool {
	return s == Ended || s == Failed
}

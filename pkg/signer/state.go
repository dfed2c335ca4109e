package signer

// State is the dispatcher lifecycle position.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StateAuthorizing
	StateExecuting
	StateResolving
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateLoaded:      "loaded",
	StateAuthorizing: "authorizing",
	StateExecuting:   "executing",
	StateResolving:   "resolving",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// busy reports whether a request is between approval or rejection and its
// delivery.
func (s State) busy() bool {
	return s == StateAuthorizing || s == StateExecuting || s == StateResolving
}

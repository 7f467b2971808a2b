package bridge

// State is a phase of a bridge build.
type State int

const (
	StateIdle State = iota
	StateScopeResolved
	StateClassified
	StateContextPhaseDone
	StateSymbolPhaseDone
	StateFinalized
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:             "idle",
	StateScopeResolved:    "scope_resolved",
	StateClassified:       "classified",
	StateContextPhaseDone: "context_phase_done",
	StateSymbolPhaseDone:  "symbol_phase_done",
	StateFinalized:        "finalized",
	StateFailed:           "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateFailed
}

// next is the only forward transition allowed from each state.
var next = map[State]State{
	StateIdle:             StateScopeResolved,
	StateScopeResolved:    StateClassified,
	StateClassified:       StateContextPhaseDone,
	StateContextPhaseDone: StateSymbolPhaseDone,
	StateSymbolPhaseDone:  StateFinalized,
}

// canTransition reports whether from -> to is legal. Failed is reachable
// from every non-terminal state.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}

package signing

import "fmt"

// State is a stage of a signing run.
type State string

const (
	StateValidating     State = "validating"
	StateDownloading    State = "downloading"
	StateAuthenticating State = "authenticating"
	StateUploading      State = "uploading"
	StateFieldEditing   State = "field_editing"
	StateReadingInfo    State = "reading_info"
	StateInviting       State = "inviting"
	StateCleanup        State = "cleanup"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// pipeline is the forward order of the working states.
var pipeline = []State{
	StateValidating,
	StateDownloading,
	StateAuthenticating,
	StateUploading,
	StateFieldEditing,
	StateReadingInfo,
	StateInviting,
	StateCleanup,
}

// IsTerminal reports whether the state ends a run.
func IsTerminal(s State) bool {
	return s == StateDone || s == StateFailed
}

// isAllowedTransition reports whether a run may move from one state to the
// next. Runs move forward one step at a time. Any working state may jump to
// cleanup, which always precedes done or failed.
func isAllowedTransition(from, to State) bool {
	switch {
	case IsTerminal(from):
		return false
	case from == StateCleanup:
		return to == StateDone || to == StateFailed
	case to == StateCleanup:
		return true
	}

	for i, s := range pipeline[:len(pipeline)-1] {
		if s == from {
			return pipeline[i+1] == to
		}
	}
	return false
}

// tracker records the states a run moves through.
type tracker struct {
	current State
	history []State
}

func newTracker() *tracker {
	return &tracker{
		current: StateValidating,
		history: []State{StateValidating},
	}
}

func (t *tracker) transition(to State) error {
	if !isAllowedTransition(t.current, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", t.current, to)
	}
	t.current = to
	t.history = append(t.history, to)
	return nil
}

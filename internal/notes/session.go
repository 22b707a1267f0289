// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notes

// State is a step of a note session.
type State int

const (
	StateNew State = iota
	StateResolved
	StateFetched
	StateConverted
	StateEditing
	StateUnchangedAbort
	StateConvertedBack
	StateSubmitting
	StateCommitted
	StateConflict
)

var stateNames = [...]string{
	StateNew:            "new",
	StateResolved:       "resolved",
	StateFetched:        "fetched",
	StateConverted:      "converted",
	StateEditing:        "editing",
	StateUnchangedAbort: "unchanged",
	StateConvertedBack:  "converted-back",
	StateSubmitting:     "submitting",
	StateCommitted:      "committed",
	StateConflict:       "conflict",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether s ends an edit session.
func (s State) Terminal() bool {
	return s == StateUnchangedAbort || s == StateCommitted || s == StateConflict
}

// Session records one run through the note workflow.
type Session struct {
	// ID names the session in logs and the edit buffer file.
	ID string

	ItemKey string
	NoteKey string

	// Path is the edit buffer while it exists on disk. It is cleared
	// when the buffer is removed after a commit or an unchanged edit.
	Path string

	// States lists every state entered, in order.
	States []State
}

// State returns the latest state.
func (s *Session) State() State {
	if len(s.States) == 0 {
		return StateNew
	}
	return s.States[len(s.States)-1]
}

func (s *Session) enter(st State) {
	s.States = append(s.States, st)
}

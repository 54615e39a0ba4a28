// Package tracking derives the learner-facing tracking state from match
// results and detected anomalies. Derivation is pure; the session runner
// owns when and how often it runs.
package tracking

import (
	"github.com/charmbracelet/lipgloss"

	"stepwatch/internal/anomaly"
	"stepwatch/internal/match"
)

// State is the coarse position of the learner relative to the active step.
type State string

const (
	StateWaiting    State = "waiting"
	StateChecking   State = "checking"
	StateInProgress State = "in_progress"
	StateMatched    State = "matched"
	StateError      State = "error"
	StateCompleted  State = "completed"
)

// StateInfo is the static presentation of one state for the overlay.
type StateInfo struct {
	Emoji string
	Label string
	Color lipgloss.Color
}

var stateInfos = map[State]StateInfo{
	StateWaiting:    {Emoji: "⏳", Label: "Waiting", Color: lipgloss.Color("245")},
	StateChecking:   {Emoji: "👀", Label: "Checking", Color: lipgloss.Color("33")},
	StateInProgress: {Emoji: "▶️", Label: "In progress", Color: lipgloss.Color("214")},
	StateMatched:    {Emoji: "✅", Label: "Matched", Color: lipgloss.Color("42")},
	StateError:      {Emoji: "❌", Label: "Off track", Color: lipgloss.Color("196")},
	StateCompleted:  {Emoji: "🎉", Label: "Completed", Color: lipgloss.Color("42")},
}

// Info returns the presentation of s. Unknown states render as waiting.
func (s State) Info() StateInfo {
	if info, ok := stateInfos[s]; ok {
		return info
	}
	return stateInfos[StateWaiting]
}

// FromMatch derives the state from a match result. An action mismatch on
// the right screen is WAITING, not ERROR: the learner simply has not acted
// yet. Unmatched screens degrade to CHECKING rather than ERROR so ordinary
// navigation lag never alarms anyone.
func FromMatch(res match.AdvancedResult) State {
	switch {
	case res.Matched:
		return StateMatched
	case res.WaitingForAction():
		return StateWaiting
	case len(res.MatchedKeyViews) > 0:
		return StateInProgress
	case res.PackageMatched:
		return StateChecking
	default:
		return StateWaiting
	}
}

// FromError maps a present error to ERROR and otherwise falls through to
// the match-based state.
func FromError(errType *anomaly.ErrorType, res match.AdvancedResult) State {
	if errType != nil {
		return StateError
	}
	return FromMatch(res)
}

// CompletionState is the lifecycle of one step's completion, observable by
// the overlay.
type CompletionState string

const (
	CompletionNotStarted CompletionState = "not_started"
	CompletionInProgress CompletionState = "in_progress"
	CompletionCompleted  CompletionState = "completed"
	CompletionError      CompletionState = "error"
)

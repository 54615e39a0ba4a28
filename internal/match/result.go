// Package match implements the two step matching strategies: a baseline
// matcher that compares per-event-type field sets against an event
// signature, and an advanced matcher that tests KeyView visibility in a
// screen snapshot and separates "right screen" from "right gesture".
package match

import "stepwatch/internal/lesson"

// Result is the baseline matcher's outcome for one subtask/signature pair.
type Result struct {
	Matched         bool
	Ratio           float64
	MatchedFields   []string
	UnmatchedFields []string
	PackageMatched  bool
	SubtaskID       string
}

// AdvancedResult is the advanced matcher's outcome. UIStateMatched and
// ActionMismatch together distinguish "right screen, wrong or missing
// gesture" from "wrong screen entirely"; the overlay leans on that split.
type AdvancedResult struct {
	Matched           bool
	Ratio             float64
	MatchedKeyViews   []lesson.KeyView
	UnmatchedKeyViews []lesson.KeyView
	PackageMatched    bool
	UIStateMatched    bool
	ActionMismatch    bool
	SubtaskID         string
}

// WaitingForAction reports whether the learner is on the right screen with
// the expected elements visible but has not performed the expected gesture.
func (r AdvancedResult) WaitingForAction() bool {
	return r.UIStateMatched && r.ActionMismatch
}

// FailureReason returns a short human-readable explanation for a non-match,
// empty for a match. Checks run from most to least severe.
func (r AdvancedResult) FailureReason() string {
	if r.Matched {
		return ""
	}
	switch {
	case !r.PackageMatched:
		return "wrong app in foreground"
	case !r.UIStateMatched:
		return "expected elements not visible"
	case r.ActionMismatch:
		return "right screen, waiting for the gesture"
	default:
		return "no match"
	}
}

// Package lesson defines the backend-authored step descriptions for a
// recorded task and their normalized expectation form consumed by the
// matchers. The backend record format is treated as read-only input.
package lesson

import "strings"

// TargetAction identifies the gesture the learner must perform for a step.
type TargetAction string

// Target actions understood by the matchers. ActionNone means the step has
// no gesture requirement and matches on UI state alone.
const (
	ActionNone      TargetAction = ""
	ActionClick     TargetAction = "CLICK"
	ActionLongClick TargetAction = "LONG_CLICK"
	ActionScroll    TargetAction = "SCROLL"
	ActionInput     TargetAction = "INPUT"
	ActionNavigate  TargetAction = "NAVIGATE"
)

// ParseTargetAction normalizes a backend action string to a TargetAction.
// Unrecognized values map to ActionNone so that an unknown action never
// blocks matching.
func ParseTargetAction(s string) TargetAction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CLICK", "TAP":
		return ActionClick
	case "LONG_CLICK", "LONG_PRESS":
		return ActionLongClick
	case "SCROLL", "SWIPE":
		return ActionScroll
	case "INPUT", "TYPE", "TEXT":
		return ActionInput
	case "NAVIGATE", "OPEN":
		return ActionNavigate
	default:
		return ActionNone
	}
}

// SubtaskDetail is one step of a recorded lesson as delivered by the backend.
type SubtaskDetail struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	OrderIndex         int    `json:"order_index"`
	TargetApp          string `json:"target_app"`
	TargetAction       string `json:"target_action"`
	ViewID             string `json:"view_id,omitempty"`
	Text               string `json:"text,omitempty"`
	ContentDescription string `json:"content_description,omitempty"`
	Bounds             string `json:"bounds,omitempty"`
}

// KeyView describes one UI element that must be visible for a step to be
// considered reachable. A KeyView is valid iff at least one field is
// non-blank; it matches when either its view id or its text is found.
type KeyView struct {
	ViewID string `json:"view_id,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Valid reports whether the KeyView carries at least one usable field.
func (k KeyView) Valid() bool {
	return strings.TrimSpace(k.ViewID) != "" || strings.TrimSpace(k.Text) != ""
}

// StepExpectation is the declarative definition of done for one lesson step.
// One expectation exists per active step and is replaced when the session
// advances.
type StepExpectation struct {
	ExpectedPackage  string
	ExpectedActivity string
	KeyViews         []KeyView
	TargetAction     TargetAction
	SubtaskID        string
	SubtaskTitle     string
}

// ExpectationFor maps a backend subtask record to a StepExpectation.
// The mapping is pure: it never fails, and blank backend fields simply
// produce fewer KeyViews.
func ExpectationFor(d SubtaskDetail) StepExpectation {
	exp := StepExpectation{
		ExpectedPackage: strings.TrimSpace(d.TargetApp),
		TargetAction:    ParseTargetAction(d.TargetAction),
		SubtaskID:       d.ID,
		SubtaskTitle:    d.Title,
	}

	primary := KeyView{
		ViewID: strings.TrimSpace(d.ViewID),
		Text:   strings.TrimSpace(d.Text),
	}
	if primary.Valid() {
		exp.KeyViews = append(exp.KeyViews, primary)
	}

	// Content description becomes its own KeyView unless it duplicates the
	// visible text.
	desc := strings.TrimSpace(d.ContentDescription)
	if desc != "" && !strings.EqualFold(desc, primary.Text) {
		exp.KeyViews = append(exp.KeyViews, KeyView{Text: desc})
	}

	return exp
}

// ValidKeyViews returns the expectation's KeyViews with invalid entries
// filtered out.
func (e StepExpectation) ValidKeyViews() []KeyView {
	var out []KeyView
	for _, kv := range e.KeyViews {
		if kv.Valid() {
			out = append(out, kv)
		}
	}
	return out
}

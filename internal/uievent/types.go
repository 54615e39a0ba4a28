// Package uievent defines the inbound accessibility event contract: the
// event type taxonomy, the JSON-lines codec, the live node tree interface,
// and the normalized structures (signatures and snapshots) extracted from
// them for matching.
package uievent

import "time"

// EventType identifies the kind of UI change an accessibility event reports.
type EventType string

// The closed set of event types delivered by the device bridge. Anything
// else is mapped to TypeUnknown; unknown events still flow through matching
// with fallback field rules.
const (
	TypeViewClicked              EventType = "view.clicked"
	TypeViewLongClicked          EventType = "view.long_clicked"
	TypeViewSelected             EventType = "view.selected"
	TypeViewFocused              EventType = "view.focused"
	TypeViewTextChanged          EventType = "view.text_changed"
	TypeViewTextSelectionChanged EventType = "view.text_selection_changed"
	TypeViewScrolled             EventType = "view.scrolled"
	TypeWindowStateChanged       EventType = "window.state_changed"
	TypeWindowContentChanged     EventType = "window.content_changed"
	TypeWindowsChanged           EventType = "windows.changed"
	TypeNotification             EventType = "notification.state_changed"
	TypeAnnouncement             EventType = "announcement"
	TypeUnknown                  EventType = "unknown"
)

var knownTypes = map[EventType]bool{
	TypeViewClicked:              true,
	TypeViewLongClicked:          true,
	TypeViewSelected:             true,
	TypeViewFocused:              true,
	TypeViewTextChanged:          true,
	TypeViewTextSelectionChanged: true,
	TypeViewScrolled:             true,
	TypeWindowStateChanged:       true,
	TypeWindowContentChanged:     true,
	TypeWindowsChanged:           true,
	TypeNotification:             true,
	TypeAnnouncement:             true,
}

// Known reports whether t is part of the closed event type set.
func Known(t EventType) bool {
	return knownTypes[t]
}

// IsGesture reports whether t describes a learner gesture rather than a
// passive window/content change. Used to tell "waiting for the action"
// apart from "performed the wrong action".
func IsGesture(t EventType) bool {
	switch t {
	case TypeViewClicked, TypeViewLongClicked, TypeViewSelected,
		TypeViewTextChanged, TypeViewTextSelectionChanged, TypeViewScrolled:
		return true
	default:
		return false
	}
}

// Event is one accessibility-style notification from the device bridge.
// Root, when present, references the live node tree of the foreground
// window for deep inspection; it is never serialized.
type Event struct {
	Type               EventType `json:"type"`
	Time               time.Time `json:"timestamp"`
	Package            string    `json:"package"`
	ClassName          string    `json:"class_name,omitempty"`
	Text               string    `json:"text,omitempty"`
	ContentDescription string    `json:"content_description,omitempty"`
	ViewID             string    `json:"view_id,omitempty"`
	Clickable          bool      `json:"clickable,omitempty"`
	Editable           bool      `json:"editable,omitempty"`
	Checkable          bool      `json:"checkable,omitempty"`

	Root Node `json:"-"`
}

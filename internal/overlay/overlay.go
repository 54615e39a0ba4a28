// Package overlay renders the live tracking status in the terminal using
// bubbletea: the active step, the tracking badge, completion progress, and
// a scrolling feed of session events.
package overlay

import (
	tea "github.com/charmbracelet/bubbletea"

	"stepwatch/internal/events"
)

// Overlay is the terminal status display for one tracking session.
type Overlay struct {
	eventChan <-chan events.Event
	onPause   func()
	onResume  func()
	onQuit    func()
}

// Option configures the Overlay.
type Option func(*Overlay)

// New creates an overlay fed by the given event channel.
func New(eventChan <-chan events.Event, opts ...Option) *Overlay {
	o := &Overlay{eventChan: eventChan}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithOnPause sets the callback invoked when the user presses 'p'.
func WithOnPause(fn func()) Option {
	return func(o *Overlay) { o.onPause = fn }
}

// WithOnResume sets the callback invoked when the user presses 'r'.
func WithOnResume(fn func()) Option {
	return func(o *Overlay) { o.onResume = fn }
}

// WithOnQuit sets the callback invoked when the user quits the overlay.
func WithOnQuit(fn func()) Option {
	return func(o *Overlay) { o.onQuit = fn }
}

// Run starts the overlay and blocks until it exits.
func (o *Overlay) Run() error {
	m := newModel(o.eventChan, o.onPause, o.onResume, o.onQuit)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

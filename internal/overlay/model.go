package overlay

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stepwatch/internal/events"
	"stepwatch/internal/tracking"
)

// guidanceBox holds the highlight rectangle for the active step's target
// element, in device coordinates.
type guidanceBox struct {
	Left, Top, Right, Bottom int
}

// feedLine is one formatted entry of the event feed.
type feedLine struct {
	Time  time.Time
	Text  string
	Style lipgloss.Style
}

// model is the bubbletea model for the overlay.
type model struct {
	eventChan <-chan events.Event

	// Session state
	sessionID   string
	lessonTitle string
	stepCount   int
	stepIndex   int
	stepTitle   string
	trackState  tracking.State
	completed   int
	paused      bool
	ended       bool
	endReason   string

	guidance *guidanceBox

	// Event feed
	feed       []feedLine
	scrollPos  int
	autoScroll bool

	// UI state
	width   int
	height  int
	spinner spinner.Model

	// Callbacks
	onPause  func()
	onResume func()
	onQuit   func()
}

// eventMsg wraps an internal event for the bubbletea message system.
type eventMsg events.Event

func newModel(eventChan <-chan events.Event, onPause, onResume, onQuit func()) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return model{
		eventChan:  eventChan,
		trackState: tracking.StateWaiting,
		autoScroll: true,
		spinner:    sp,
		onPause:    onPause,
		onResume:   onResume,
		onQuit:     onQuit,
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.eventChan),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

// visibleLines returns the number of feed lines that fit in the viewport.
// Height minus border (2), header (3), divider (1), footer (1).
func (m model) visibleLines() int {
	return max(1, m.height-7)
}

package overlay

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stepwatch/internal/events"
	"stepwatch/internal/tracking"
)

const (
	// maxFeedLines is the maximum number of feed lines kept in memory.
	maxFeedLines = 1000
	// trimFeedLines is how many lines are dropped when the feed overflows.
	trimFeedLines = 100
)

// channelClosedMsg signals that the event channel was closed.
type channelClosedMsg struct{}

// waitForEvent creates a command that waits for the next event from the
// channel. Returns channelClosedMsg if the channel is closed.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg(event)
	}
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		m.handleEvent(events.Event(msg))
		return m, waitForEvent(m.eventChan)

	case channelClosedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case "p":
		if !m.paused && m.onPause != nil {
			m.onPause()
		}
		m.paused = true
		return m, nil

	case "r":
		if m.paused && m.onResume != nil {
			m.onResume()
		}
		m.paused = false
		return m, nil

	case "up", "k":
		if m.scrollPos > 0 {
			m.scrollPos--
			m.autoScroll = false
		}
		return m, nil

	case "down", "j":
		if m.scrollPos < len(m.feed)-m.visibleLines() {
			m.scrollPos++
		}
		if m.scrollPos >= len(m.feed)-m.visibleLines() {
			m.autoScroll = true
		}
		return m, nil

	case "end", "G":
		m.autoScroll = true
		return m, nil
	}
	return m, nil
}

// handleEvent folds one session event into the display state.
func (m *model) handleEvent(event events.Event) {
	switch e := event.(type) {
	case *events.SessionStartEvent:
		m.sessionID = e.SessionID
		m.lessonTitle = e.LessonTitle
		m.stepCount = e.StepCount
		m.stepIndex = 0
		m.completed = 0
		m.ended = false
		m.addLine(e, fmt.Sprintf("session started: %s (%d steps)", e.LessonTitle, e.StepCount), styles.Session)

	case *events.SessionEndEvent:
		m.ended = true
		m.endReason = e.Reason
		m.completed = e.CompletedSteps
		m.addLine(e, fmt.Sprintf("session ended: %s (%d/%d)", e.Reason, e.CompletedSteps, e.TotalSteps), styles.Session)

	case *events.StepAdvancedEvent:
		m.stepIndex = e.StepIndex
		m.stepTitle = e.Title
		m.guidance = nil
		m.addLine(e, fmt.Sprintf("step %d: %s", e.StepIndex+1, e.Title), styles.Step)

	case *events.StepMatchedEvent:
		m.addLine(e, fmt.Sprintf("matched %s (%.0f%%)", e.SubtaskID, e.Ratio*100), styles.Step)

	case *events.StepCompletedEvent:
		m.completed++
		m.guidance = nil
		m.addLine(e, fmt.Sprintf("completed %s", e.SubtaskID), styles.Completed)

	case *events.StepGuidanceEvent:
		m.guidance = &guidanceBox{Left: e.Left, Top: e.Top, Right: e.Right, Bottom: e.Bottom}

	case *events.TrackingChangedEvent:
		m.trackState = tracking.State(e.To)
		if e.Reason != "" {
			m.addLine(e, e.Reason, styles.Tracking)
		}

	case *events.AnomalyDetectedEvent:
		m.addLine(e, fmt.Sprintf("%s %s", e.ErrorType, e.Info), styles.Anomaly)

	case *events.AnomalyReportedEvent:
		m.addLine(e, fmt.Sprintf("%s reported to instructor", e.ErrorType), styles.Anomaly)

	case *events.ParseErrorEvent:
		m.addLine(e, fmt.Sprintf("bad event line: %s", e.Error), styles.Error)

	case *events.ErrorEvent:
		m.addLine(e, e.Message, styles.Error)
	}
}

func (m *model) addLine(event events.Event, text string, style lipgloss.Style) {
	m.feed = append(m.feed, feedLine{Time: event.Timestamp(), Text: text, Style: style})
	if len(m.feed) > maxFeedLines {
		m.feed = m.feed[trimFeedLines:]
		if m.scrollPos >= trimFeedLines {
			m.scrollPos -= trimFeedLines
		} else {
			m.scrollPos = 0
		}
	}
	if m.autoScroll {
		m.scrollPos = max(0, len(m.feed)-m.visibleLines())
	}
}

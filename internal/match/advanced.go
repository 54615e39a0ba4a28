package match

import (
	"log/slog"

	"stepwatch/internal/fuzzy"
	"stepwatch/internal/lesson"
	"stepwatch/internal/uievent"
)

// Advanced matcher defaults.
const (
	DefaultMinKeyViews      = 1
	DefaultPackageOnlyRatio = 0.3
)

// eventsForAction maps each target action to the event types that count as
// performing it.
var eventsForAction = map[lesson.TargetAction][]uievent.EventType{
	lesson.ActionClick:     {uievent.TypeViewClicked, uievent.TypeViewSelected},
	lesson.ActionLongClick: {uievent.TypeViewLongClicked},
	lesson.ActionScroll:    {uievent.TypeViewScrolled, uievent.TypeWindowContentChanged},
	lesson.ActionInput:     {uievent.TypeViewTextChanged, uievent.TypeViewTextSelectionChanged},
	lesson.ActionNavigate:  {uievent.TypeWindowStateChanged, uievent.TypeWindowsChanged},
}

// AdvancedMatcher is the primary matcher for the completion and error
// pipeline. It tests KeyView visibility in a snapshot and checks the
// performed gesture against the step's target action. Stateless, safe for
// concurrent use.
type AdvancedMatcher struct {
	// MinKeyViews is the minimum number of matched KeyViews for the UI
	// state to count as reached.
	MinKeyViews int
	// PackageOnlyRatio is the ratio floor awarded when the learner is in
	// the right app but none of the expected elements are visible yet.
	PackageOnlyRatio float64

	logger *slog.Logger
}

// NewAdvancedMatcher creates a matcher with the default tuning. A nil
// logger uses slog.Default().
func NewAdvancedMatcher(logger *slog.Logger) *AdvancedMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvancedMatcher{
		MinKeyViews:      DefaultMinKeyViews,
		PackageOnlyRatio: DefaultPackageOnlyRatio,
		logger:           logger,
	}
}

// Match compares a snapshot against a step expectation. It is total: any
// combination of inputs yields a result and never panics. An empty
// eventType skips the gesture check.
func (m *AdvancedMatcher) Match(snap *uievent.Snapshot, exp lesson.StepExpectation, eventType uievent.EventType) AdvancedResult {
	res := AdvancedResult{SubtaskID: exp.SubtaskID}
	if snap == nil {
		snap = &uievent.Snapshot{}
	}

	actionMatched := actionAllows(exp.TargetAction, eventType)
	res.ActionMismatch = !actionMatched

	if exp.ExpectedPackage != "" && !fuzzy.ContainsFold(snap.Package, exp.ExpectedPackage) {
		// Wrong app: everything else is moot.
		return res
	}
	res.PackageMatched = true

	keyViews := exp.ValidKeyViews()
	if len(keyViews) == 0 {
		res.UIStateMatched = true
		res.Ratio = 1
		res.Matched = actionMatched
		return res
	}

	for _, kv := range keyViews {
		if keyViewVisible(snap, kv) {
			res.MatchedKeyViews = append(res.MatchedKeyViews, kv)
		} else {
			res.UnmatchedKeyViews = append(res.UnmatchedKeyViews, kv)
		}
	}

	minViews := m.MinKeyViews
	if minViews <= 0 {
		minViews = DefaultMinKeyViews
	}
	res.UIStateMatched = len(res.MatchedKeyViews) >= minViews
	res.Ratio = float64(len(res.MatchedKeyViews)) / float64(len(keyViews))
	if res.Ratio < m.PackageOnlyRatio {
		// Right app is worth partial credit even with nothing visible yet.
		res.Ratio = m.PackageOnlyRatio
	}
	res.Matched = res.UIStateMatched && actionMatched

	m.logger.Debug("advanced match",
		"subtask", exp.SubtaskID,
		"event_type", eventType,
		"ratio", res.Ratio,
		"matched", res.Matched,
		"waiting_for_action", res.WaitingForAction(),
	)
	return res
}

// BestMatch runs Match over all expectations and returns the index and
// result of the best-scoring one, preferring full matches over ratio.
// Returns false when the list is empty.
func (m *AdvancedMatcher) BestMatch(snap *uievent.Snapshot, exps []lesson.StepExpectation, eventType uievent.EventType) (AdvancedResult, int, bool) {
	var best AdvancedResult
	bestIdx := -1
	for i, exp := range exps {
		res := m.Match(snap, exp, eventType)
		if bestIdx < 0 || better(res, best) {
			best = res
			bestIdx = i
		}
	}
	return best, bestIdx, bestIdx >= 0
}

// StepCompleted reports whether the snapshot and gesture fully satisfy the
// expectation.
func (m *AdvancedMatcher) StepCompleted(snap *uievent.Snapshot, exp lesson.StepExpectation, eventType uievent.EventType) bool {
	return m.Match(snap, exp, eventType).Matched
}

func better(a, b AdvancedResult) bool {
	if a.Matched != b.Matched {
		return a.Matched
	}
	return a.Ratio > b.Ratio
}

// actionAllows reports whether eventType counts as performing action.
// Absence of either input, or an unrecognized action, passes: an unknown
// action must never block matching.
func actionAllows(action lesson.TargetAction, eventType uievent.EventType) bool {
	if action == lesson.ActionNone || eventType == "" {
		return true
	}
	allowed, ok := eventsForAction[action]
	if !ok {
		return true
	}
	for _, t := range allowed {
		if t == eventType {
			return true
		}
	}
	return false
}

// keyViewVisible reports whether a KeyView exists in the snapshot. The view
// id path and the text path are OR-combined: either one succeeding matches
// the KeyView.
func keyViewVisible(snap *uievent.Snapshot, kv lesson.KeyView) bool {
	if kv.ViewID != "" {
		short := fuzzy.ShortID(kv.ViewID)
		for _, v := range snap.VisibleViews {
			if v == kv.ViewID ||
				fuzzy.ShortID(v) == short ||
				fuzzy.ContainsFold(v, kv.ViewID) ||
				fuzzy.NormalizedContains(fuzzy.ShortID(v), short) {
				return true
			}
		}
	}

	if kv.Text != "" {
		for _, t := range snap.TextNodes {
			if fuzzy.ContainsFold(t, kv.Text) || fuzzy.NormalizedContains(t, kv.Text) {
				return true
			}
		}
	}

	return false
}

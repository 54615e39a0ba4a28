package match

import (
	"log/slog"

	"stepwatch/internal/fuzzy"
	"stepwatch/internal/lesson"
	"stepwatch/internal/uievent"
)

// Field names compared by the baseline matcher. They mirror signature keys.
const (
	fieldPackage     = uievent.SigPackage
	fieldViewID      = uievent.SigViewID
	fieldClass       = uievent.SigClass
	fieldText        = uievent.SigText
	fieldDescription = uievent.SigDescription
)

// fieldsForType selects which signature fields each event type is compared
// on. Unknown types fall back to defaultFields.
var fieldsForType = map[uievent.EventType][]string{
	uievent.TypeViewClicked:          {fieldPackage, fieldViewID, fieldClass},
	uievent.TypeViewLongClicked:      {fieldPackage, fieldViewID, fieldClass},
	uievent.TypeWindowStateChanged:   {fieldPackage, fieldClass},
	uievent.TypeWindowContentChanged: {fieldPackage},
}

var defaultFields = []string{fieldPackage, fieldClass}

// Matcher is the baseline field-table matcher. It is stateless and safe for
// concurrent use.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a baseline matcher. A nil logger uses slog.Default().
func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger}
}

// MatchStep compares one subtask against an event signature. Blank expected
// values skip their field; an absent actual value fails the field. The
// result is a full match only when every considered field matched and at
// least one field was considered.
func (m *Matcher) MatchStep(sub lesson.SubtaskDetail, sig uievent.Signature, eventType uievent.EventType) Result {
	res := Result{SubtaskID: sub.ID}

	fields, ok := fieldsForType[eventType]
	if !ok {
		fields = defaultFields
	}

	considered := 0
	for _, field := range fields {
		expected := expectedValue(sub, field)
		if expected == "" {
			continue
		}
		considered++

		actual, present := sig[field]
		if present && fieldMatches(field, expected, actual) {
			res.MatchedFields = append(res.MatchedFields, field)
			if field == fieldPackage {
				res.PackageMatched = true
			}
		} else {
			res.UnmatchedFields = append(res.UnmatchedFields, field)
		}
	}

	if considered > 0 {
		res.Ratio = float64(len(res.MatchedFields)) / float64(considered)
		res.Matched = len(res.MatchedFields) == considered
	}

	m.logger.Debug("baseline match",
		"subtask", sub.ID,
		"event_type", eventType,
		"ratio", res.Ratio,
		"matched", res.Matched,
	)
	return res
}

// BestMatch returns the highest-ratio result with a ratio above zero, and
// false when nothing scored.
func (m *Matcher) BestMatch(subs []lesson.SubtaskDetail, sig uievent.Signature, eventType uievent.EventType) (Result, bool) {
	var best Result
	found := false
	for _, sub := range subs {
		res := m.MatchStep(sub, sig, eventType)
		if res.Ratio > 0 && (!found || res.Ratio > best.Ratio) {
			best = res
			found = true
		}
	}
	return best, found
}

// expectedValue pulls the comparison value for a field out of the subtask.
// The viewId slot is populated from the backend's target action; that is
// how the backend contract is defined today, so it is preserved here even
// though it reads like a field mix-up.
func expectedValue(sub lesson.SubtaskDetail, field string) string {
	switch field {
	case fieldPackage:
		return sub.TargetApp
	case fieldViewID:
		return sub.TargetAction
	case fieldText, fieldDescription:
		return sub.Description
	default:
		return ""
	}
}

func fieldMatches(field, expected, actual string) bool {
	switch field {
	case fieldPackage:
		return fuzzy.EqualFold(expected, actual) || fuzzy.ContainsFold(expected, actual)
	case fieldViewID:
		return expected == actual ||
			fuzzy.ShortID(expected) == fuzzy.ShortID(actual) ||
			fuzzy.ContainsFold(expected, actual)
	case fieldClass:
		return expected == actual || fuzzy.SimpleName(expected) == fuzzy.SimpleName(actual)
	case fieldText, fieldDescription:
		return fuzzy.ContainsFold(expected, actual)
	default:
		return false
	}
}

package match

import (
	"testing"

	"stepwatch/internal/lesson"
	"stepwatch/internal/uievent"
)

func snapshot(pkg string, views, texts []string) *uievent.Snapshot {
	return &uievent.Snapshot{Package: pkg, VisibleViews: views, TextNodes: texts}
}

func TestAdvancedMatchClickOnTarget(t *testing.T) {
	exp := lesson.StepExpectation{
		ExpectedPackage: "com.example.app",
		KeyViews:        []lesson.KeyView{{ViewID: "btn_ok"}},
		TargetAction:    lesson.ActionClick,
		SubtaskID:       "s1",
	}
	snap := snapshot("com.example.app", []string{"com.example.app:id/btn_ok"}, nil)

	res := NewAdvancedMatcher(nil).Match(snap, exp, uievent.TypeViewClicked)

	if !res.Matched {
		t.Fatalf("Matched = false, reason %q", res.FailureReason())
	}
	if res.Ratio != 1.0 {
		t.Errorf("Ratio = %v, want 1.0", res.Ratio)
	}
	if !res.UIStateMatched || res.ActionMismatch {
		t.Errorf("UIStateMatched = %v, ActionMismatch = %v", res.UIStateMatched, res.ActionMismatch)
	}
}

func TestAdvancedMatchWrongGestureOnRightScreen(t *testing.T) {
	exp := lesson.StepExpectation{
		ExpectedPackage: "com.example.app",
		KeyViews:        []lesson.KeyView{{ViewID: "btn_ok"}},
		TargetAction:    lesson.ActionClick,
	}
	snap := snapshot("com.example.app", []string{"com.example.app:id/btn_ok"}, nil)

	res := NewAdvancedMatcher(nil).Match(snap, exp, uievent.TypeViewScrolled)

	if res.Matched {
		t.Fatal("scroll must not satisfy a click step")
	}
	if !res.UIStateMatched {
		t.Error("UIStateMatched = false, want true")
	}
	if !res.ActionMismatch {
		t.Error("ActionMismatch = false, want true")
	}
	if !res.WaitingForAction() {
		t.Error("WaitingForAction = false, want true")
	}
}

func TestAdvancedMatchWrongPackage(t *testing.T) {
	exp := lesson.StepExpectation{
		ExpectedPackage: "com.example.app",
		KeyViews:        []lesson.KeyView{{ViewID: "btn_ok"}},
	}
	snap := snapshot("com.other.launcher", []string{"com.other.launcher:id/btn_ok"}, nil)

	res := NewAdvancedMatcher(nil).Match(snap, exp, uievent.TypeViewClicked)

	if res.Matched || res.PackageMatched || res.UIStateMatched {
		t.Fatalf("wrong package produced %+v", res)
	}
	if res.Ratio != 0 {
		t.Errorf("Ratio = %v, want 0", res.Ratio)
	}
	if res.FailureReason() != "wrong app in foreground" {
		t.Errorf("FailureReason = %q", res.FailureReason())
	}
}

func TestAdvancedMatchKeyViewORPaths(t *testing.T) {
	m := NewAdvancedMatcher(nil)

	// Text-only KeyView matches through texts even with no view ids.
	textOnly := lesson.StepExpectation{
		ExpectedPackage: "com.example.app",
		KeyViews:        []lesson.KeyView{{Text: "Save changes"}},
	}
	snap := snapshot("com.example.app", nil, []string{"save CHANGES"})
	if res := m.Match(snap, textOnly, ""); !res.Matched {
		t.Errorf("text-only KeyView did not match: %q", res.FailureReason())
	}

	// ViewId-only KeyView matches through the short-id path.
	idOnly := lesson.StepExpectation{
		ExpectedPackage: "com.example.app",
		KeyViews:        []lesson.KeyView{{ViewID: "com.vendor:id/btn_save"}},
	}
	snap = snapshot("com.example.app", []string{"com.example.app:id/btn_save"}, nil)
	if res := m.Match(snap, idOnly, ""); !res.Matched {
		t.Errorf("short-id KeyView did not match: %q", res.FailureReason())
	}

	// A KeyView with both fields matches when only the text side is found.
	both := lesson.StepExpectation{
		ExpectedPackage: "com.example.app",
		KeyViews:        []lesson.KeyView{{ViewID: "btn_missing", Text: "Continue"}},
	}
	snap = snapshot("com.example.app", nil, []string{"Continue"})
	if res := m.Match(snap, both, ""); !res.Matched {
		t.Errorf("either-path KeyView did not match: %q", res.FailureReason())
	}
}

func TestAdvancedMatchNoKeyViewsDegeneratesToPackage(t *testing.T) {
	exp := lesson.StepExpectation{ExpectedPackage: "com.example.app"}
	snap := snapshot("com.example.app", nil, nil)

	res := NewAdvancedMatcher(nil).Match(snap, exp, "")
	if !res.Matched || res.Ratio != 1 {
		t.Fatalf("package-only expectation: %+v", res)
	}
}

func TestAdvancedMatchPackageOnlyRatioFloor(t *testing.T) {
	exp := lesson.StepExpectation{
		ExpectedPackage: "com.example.app",
		KeyViews:        []lesson.KeyView{{ViewID: "btn_missing"}},
	}
	snap := snapshot("com.example.app", []string{"com.example.app:id/other"}, nil)

	res := NewAdvancedMatcher(nil).Match(snap, exp, "")
	if res.Matched || res.UIStateMatched {
		t.Fatalf("missing element matched: %+v", res)
	}
	if res.Ratio != DefaultPackageOnlyRatio {
		t.Errorf("Ratio = %v, want floor %v", res.Ratio, DefaultPackageOnlyRatio)
	}
	if res.FailureReason() != "expected elements not visible" {
		t.Errorf("FailureReason = %q", res.FailureReason())
	}
}

func TestAdvancedMatchUnknownActionPasses(t *testing.T) {
	exp := lesson.StepExpectation{
		ExpectedPackage: "com.example.app",
		KeyViews:        []lesson.KeyView{{ViewID: "btn_ok"}},
		TargetAction:    lesson.TargetAction("HOVER"),
	}
	snap := snapshot("com.example.app", []string{"com.example.app:id/btn_ok"}, nil)

	if res := NewAdvancedMatcher(nil).Match(snap, exp, uievent.TypeViewClicked); !res.Matched {
		t.Fatalf("unrecognized action blocked matching: %+v", res)
	}
}

func TestAdvancedMatchNilSnapshot(t *testing.T) {
	exp := lesson.StepExpectation{ExpectedPackage: "com.example.app"}
	res := NewAdvancedMatcher(nil).Match(nil, exp, uievent.TypeViewClicked)
	if res.Matched || res.PackageMatched {
		t.Fatalf("nil snapshot matched: %+v", res)
	}
}

func TestActionAllows(t *testing.T) {
	tests := []struct {
		action lesson.TargetAction
		event  uievent.EventType
		want   bool
	}{
		{lesson.ActionClick, uievent.TypeViewClicked, true},
		{lesson.ActionClick, uievent.TypeViewSelected, true},
		{lesson.ActionClick, uievent.TypeViewLongClicked, false},
		{lesson.ActionLongClick, uievent.TypeViewLongClicked, true},
		{lesson.ActionScroll, uievent.TypeViewScrolled, true},
		{lesson.ActionScroll, uievent.TypeWindowContentChanged, true},
		{lesson.ActionInput, uievent.TypeViewTextChanged, true},
		{lesson.ActionInput, uievent.TypeViewClicked, false},
		{lesson.ActionNavigate, uievent.TypeWindowStateChanged, true},
		{lesson.ActionNone, uievent.TypeViewClicked, true},
		{lesson.ActionClick, "", true},
	}
	for _, tt := range tests {
		if got := actionAllows(tt.action, tt.event); got != tt.want {
			t.Errorf("actionAllows(%q, %q) = %v, want %v", tt.action, tt.event, got, tt.want)
		}
	}
}

func TestAdvancedBestMatch(t *testing.T) {
	m := NewAdvancedMatcher(nil)
	exps := []lesson.StepExpectation{
		{ExpectedPackage: "com.other", SubtaskID: "a"},
		{ExpectedPackage: "com.example.app", KeyViews: []lesson.KeyView{{ViewID: "btn_ok"}}, SubtaskID: "b"},
	}
	snap := snapshot("com.example.app", []string{"com.example.app:id/btn_ok"}, nil)

	res, idx, ok := m.BestMatch(snap, exps, uievent.TypeViewClicked)
	if !ok || idx != 1 || res.SubtaskID != "b" || !res.Matched {
		t.Fatalf("BestMatch = %+v, idx %d, ok %v", res, idx, ok)
	}

	if _, _, ok := m.BestMatch(snap, nil, ""); ok {
		t.Error("empty expectation list reported a match")
	}
}

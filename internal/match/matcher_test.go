package match

import (
	"testing"

	"stepwatch/internal/lesson"
	"stepwatch/internal/uievent"
)

func TestMatchStepClicked(t *testing.T) {
	sub := lesson.SubtaskDetail{
		ID:           "s1",
		TargetApp:    "com.example.app",
		TargetAction: "com.example.app:id/btn_ok",
	}
	sig := uievent.Signature{
		uievent.SigPackage: "com.example.app",
		uievent.SigViewID:  "com.example.app:id/btn_ok",
		uievent.SigClass:   "android.widget.Button",
	}

	res := NewMatcher(nil).MatchStep(sub, sig, uievent.TypeViewClicked)

	if !res.Matched {
		t.Fatalf("Matched = false, unmatched %v", res.UnmatchedFields)
	}
	if res.Ratio != 1.0 {
		t.Errorf("Ratio = %v, want 1.0", res.Ratio)
	}
	if !res.PackageMatched {
		t.Error("PackageMatched = false")
	}
}

func TestMatchStepBlankExpectedSkipsField(t *testing.T) {
	// No target action: the viewId field drops out of consideration and
	// the click matches on package alone.
	sub := lesson.SubtaskDetail{ID: "s1", TargetApp: "com.example.app"}
	sig := uievent.Signature{
		uievent.SigPackage: "com.example.app",
		uievent.SigViewID:  "com.example.app:id/whatever",
	}

	res := NewMatcher(nil).MatchStep(sub, sig, uievent.TypeViewClicked)

	if !res.Matched || res.Ratio != 1.0 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.MatchedFields) != 1 {
		t.Errorf("MatchedFields = %v, want package only", res.MatchedFields)
	}
}

func TestMatchStepAbsentActualFailsField(t *testing.T) {
	sub := lesson.SubtaskDetail{
		ID:           "s1",
		TargetApp:    "com.example.app",
		TargetAction: "com.example.app:id/btn_ok",
	}
	sig := uievent.Signature{uievent.SigPackage: "com.example.app"}

	res := NewMatcher(nil).MatchStep(sub, sig, uievent.TypeViewClicked)

	if res.Matched {
		t.Fatal("match despite absent viewId")
	}
	if res.Ratio != 0.5 {
		t.Errorf("Ratio = %v, want 0.5", res.Ratio)
	}
}

func TestMatchStepWindowContentPackageOnly(t *testing.T) {
	sub := lesson.SubtaskDetail{ID: "s1", TargetApp: "com.example.app", Description: "ignored here"}
	sig := uievent.Signature{uievent.SigPackage: "com.example.app"}

	res := NewMatcher(nil).MatchStep(sub, sig, uievent.TypeWindowContentChanged)
	if !res.Matched || res.Ratio != 1.0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestMatchStepUnknownTypeFallsBack(t *testing.T) {
	// Fallback fields are package and className; className has no expected
	// value, so only package is considered.
	sub := lesson.SubtaskDetail{ID: "s1", TargetApp: "com.example.app"}
	sig := uievent.Signature{uievent.SigPackage: "com.example.settings.app"}

	res := NewMatcher(nil).MatchStep(sub, sig, uievent.TypeUnknown)
	if !res.Matched {
		t.Fatalf("substring package match failed: %+v", res)
	}
}

func TestMatchStepNothingConsidered(t *testing.T) {
	res := NewMatcher(nil).MatchStep(lesson.SubtaskDetail{ID: "s1"}, uievent.Signature{}, uievent.TypeViewClicked)
	if res.Matched || res.Ratio != 0 {
		t.Fatalf("empty subtask produced %+v", res)
	}
}

func TestBestMatch(t *testing.T) {
	subs := []lesson.SubtaskDetail{
		{ID: "a", TargetApp: "com.other"},
		{ID: "b", TargetApp: "com.example.app"},
	}
	sig := uievent.Signature{uievent.SigPackage: "com.example.app"}

	res, ok := NewMatcher(nil).BestMatch(subs, sig, uievent.TypeWindowContentChanged)
	if !ok || res.SubtaskID != "b" {
		t.Fatalf("BestMatch = %+v, ok %v", res, ok)
	}

	if _, ok := NewMatcher(nil).BestMatch(subs, uievent.Signature{}, uievent.TypeWindowContentChanged); ok {
		t.Error("zero-ratio results should report no match")
	}
}

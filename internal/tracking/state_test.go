package tracking

import (
	"testing"

	"stepwatch/internal/anomaly"
	"stepwatch/internal/lesson"
	"stepwatch/internal/match"
)

func TestFromMatch(t *testing.T) {
	kv := lesson.KeyView{ViewID: "btn_ok"}

	tests := []struct {
		name string
		res  match.AdvancedResult
		want State
	}{
		{
			name: "full match",
			res:  match.AdvancedResult{Matched: true, UIStateMatched: true, PackageMatched: true},
			want: StateMatched,
		},
		{
			name: "right screen waiting for gesture",
			res:  match.AdvancedResult{UIStateMatched: true, ActionMismatch: true, PackageMatched: true},
			want: StateWaiting,
		},
		{
			name: "partial keyview match",
			res: match.AdvancedResult{
				PackageMatched:    true,
				MatchedKeyViews:   []lesson.KeyView{kv},
				UnmatchedKeyViews: []lesson.KeyView{{Text: "Other"}},
			},
			want: StateInProgress,
		},
		{
			name: "package only",
			res:  match.AdvancedResult{PackageMatched: true},
			want: StateChecking,
		},
		{
			name: "nothing matched",
			res:  match.AdvancedResult{},
			want: StateWaiting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromMatch(tt.res); got != tt.want {
				t.Errorf("FromMatch = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromMatchPrecedence(t *testing.T) {
	// A full match wins even when partial-looking flags are also set.
	res := match.AdvancedResult{
		Matched:         true,
		UIStateMatched:  true,
		PackageMatched:  true,
		MatchedKeyViews: []lesson.KeyView{{ViewID: "a"}},
	}
	if got := FromMatch(res); got != StateMatched {
		t.Fatalf("FromMatch = %q, want matched", got)
	}
}

func TestFromError(t *testing.T) {
	res := match.AdvancedResult{Matched: true}
	if got := FromError(nil, res); got != StateMatched {
		t.Errorf("nil error: %q, want matched", got)
	}

	errType := anomaly.ErrWrongApp
	if got := FromError(&errType, res); got != StateError {
		t.Errorf("present error: %q, want error", got)
	}
}

func TestStateInfo(t *testing.T) {
	if StateMatched.Info().Label != "Matched" {
		t.Errorf("matched label = %q", StateMatched.Info().Label)
	}
	if State("bogus").Info() != StateWaiting.Info() {
		t.Error("unknown state should render as waiting")
	}
}

package uievent

import (
	"fmt"
	"testing"
)

func TestBuildCollectsViewsAndTexts(t *testing.T) {
	root := &fakeNode{
		className: "com.example.settings.MainActivity",
		children: []*fakeNode{
			{viewID: "com.example:id/wifi", text: "Wi-Fi"},
			{viewID: "com.example:id/bt", text: "Bluetooth", desc: "Bluetooth"},
			{viewID: "com.example:id/wifi", text: "WI-FI"}, // dup id, dup text
			{desc: "More options"},
		},
	}

	snap := NewSnapshotBuilder(0, 0, nil).Build(root, "com.example")

	if snap.Package != "com.example" {
		t.Errorf("Package = %q", snap.Package)
	}
	if snap.Activity != "MainActivity" {
		t.Errorf("Activity = %q, want MainActivity", snap.Activity)
	}
	if len(snap.VisibleViews) != 2 {
		t.Errorf("VisibleViews = %v, want 2 distinct ids", snap.VisibleViews)
	}
	// "Bluetooth" desc collapses into its text; dup "WI-FI" collapses
	// case-insensitively.
	wantTexts := []string{"Wi-Fi", "Bluetooth", "More options"}
	if len(snap.TextNodes) != len(wantTexts) {
		t.Fatalf("TextNodes = %v, want %v", snap.TextNodes, wantTexts)
	}
	for i, w := range wantTexts {
		if snap.TextNodes[i] != w {
			t.Errorf("TextNodes[%d] = %q, want %q", i, snap.TextNodes[i], w)
		}
	}

	for _, n := range collectReleases(root)[1:] {
		if n.released != 1 {
			t.Errorf("node %q released %d times, want 1", n.viewID, n.released)
		}
	}
	if root.released != 0 {
		t.Error("builder must not release the caller-owned root")
	}
}

func TestBuildRespectsCaps(t *testing.T) {
	var children []*fakeNode
	for i := 0; i < 20; i++ {
		children = append(children, &fakeNode{
			viewID: fmt.Sprintf("com.example:id/item_%d", i),
			text:   fmt.Sprintf("Item %d", i),
		})
	}
	root := &fakeNode{children: children}

	snap := NewSnapshotBuilder(5, 3, nil).Build(root, "com.example")

	if len(snap.VisibleViews) != 5 {
		t.Errorf("VisibleViews len = %d, want 5", len(snap.VisibleViews))
	}
	if len(snap.TextNodes) != 3 {
		t.Errorf("TextNodes len = %d, want 3", len(snap.TextNodes))
	}
}

func TestBuildSkipsUnreadableNodes(t *testing.T) {
	root := &fakeNode{
		children: []*fakeNode{
			{viewID: "com.example:id/a"},
			{panicOn: true},
			{viewID: "com.example:id/b"},
		},
	}

	snap := NewSnapshotBuilder(0, 0, nil).Build(root, "com.example")

	if len(snap.VisibleViews) != 2 {
		t.Fatalf("VisibleViews = %v, want the two readable ids", snap.VisibleViews)
	}
	if root.children[1].released != 1 {
		t.Error("panicking node was not released")
	}
}

func TestBuildNilRoot(t *testing.T) {
	snap := NewSnapshotBuilder(0, 0, nil).Build(nil, "com.example")
	if snap.Package != "com.example" || len(snap.VisibleViews) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestStructuralEqual(t *testing.T) {
	base := &Snapshot{
		Package:      "com.example",
		VisibleViews: []string{"a", "b"},
		TextNodes:    []string{"x"},
	}
	same := &Snapshot{
		Package:      "com.example",
		VisibleViews: []string{"a", "b"},
		TextNodes:    []string{"x"},
	}
	if !base.StructuralEqual(same) {
		t.Error("identical structure reported unequal")
	}

	diffPkg := &Snapshot{Package: "com.other", VisibleViews: []string{"a", "b"}, TextNodes: []string{"x"}}
	if base.StructuralEqual(diffPkg) {
		t.Error("different package reported equal")
	}

	diffViews := &Snapshot{Package: "com.example", VisibleViews: []string{"a", "c"}, TextNodes: []string{"x"}}
	if base.StructuralEqual(diffViews) {
		t.Error("different views reported equal")
	}

	if base.StructuralEqual(nil) {
		t.Error("nil other reported equal")
	}
}

func TestFromEventFields(t *testing.T) {
	ev := &Event{
		Type:               TypeViewClicked,
		Package:            "com.example",
		ClassName:          "com.example.DetailActivity",
		ViewID:             "com.example:id/save",
		Text:               "Save",
		ContentDescription: "Save changes",
	}

	snap := FromEventFields(ev)

	if snap.Activity != "DetailActivity" {
		t.Errorf("Activity = %q", snap.Activity)
	}
	if len(snap.VisibleViews) != 1 || snap.VisibleViews[0] != "com.example:id/save" {
		t.Errorf("VisibleViews = %v", snap.VisibleViews)
	}
	if len(snap.TextNodes) != 2 {
		t.Errorf("TextNodes = %v, want text and description", snap.TextNodes)
	}
}

func TestActivityName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"com.example.settings.MainActivity", "MainActivity"},
		{"MainActivity", "MainActivity"},
		{"android.widget.FrameLayout", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ActivityName(tt.in); got != tt.want {
			t.Errorf("ActivityName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

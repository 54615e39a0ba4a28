package uievent

import "fmt"

// Bounds is an element's position on screen in pixels.
type Bounds struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the horizontal extent of the bounds.
func (b Bounds) Width() int { return b.Right - b.Left }

// Height returns the vertical extent of the bounds.
func (b Bounds) Height() int { return b.Bottom - b.Top }

// Empty reports whether the bounds cover no screen area.
func (b Bounds) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Node is a handle to one element of a live UI tree. Handles are backed by
// per-process bridge resources: every Node acquired via Child or Parent
// must be released exactly once, on every path, or the bridge's object
// table fills up and the session dies.
type Node interface {
	ViewID() string
	Text() string
	ContentDescription() string
	ClassName() string
	Clickable() bool
	Editable() bool
	Checkable() bool
	Visible() bool
	Bounds() Bounds

	ChildCount() int
	// Child acquires the i-th child. The caller owns the returned handle
	// and must Release it. A nil Node with nil error means the slot is
	// empty.
	Child(i int) (Node, error)
	// Parent acquires the parent handle, nil if the node is the root.
	Parent() (Node, error)

	Release()
}

// visitChild acquires child i of n, runs fn on it, and guarantees the
// handle is released even when fn panics. Panics from a misbehaving bridge
// node are converted to errors so one bad node cannot abort a traversal.
func visitChild(n Node, i int, fn func(Node)) (err error) {
	child, err := n.Child(i)
	if err != nil {
		return err
	}
	if child == nil {
		return nil
	}
	defer child.Release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node access: %v", r)
		}
	}()
	fn(child)
	return nil
}

// visitParent acquires the parent of n, runs fn on it, and guarantees
// release. Missing parents are not an error.
func visitParent(n Node, fn func(Node)) (err error) {
	parent, err := n.Parent()
	if err != nil {
		return err
	}
	if parent == nil {
		return nil
	}
	defer parent.Release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node access: %v", r)
		}
	}()
	fn(parent)
	return nil
}

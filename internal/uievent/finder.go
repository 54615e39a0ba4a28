package uievent

import (
	"log/slog"

	"stepwatch/internal/fuzzy"
)

// ElementFinder locates a target element's screen bounds for the guidance
// overlay. It is not part of the matching decision path but shares the
// release-on-all-paths obligation with the snapshot builder.
type ElementFinder struct {
	logger *slog.Logger
}

// NewElementFinder creates a finder. A nil logger uses slog.Default().
func NewElementFinder(logger *slog.Logger) *ElementFinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ElementFinder{logger: logger}
}

// Find searches the tree under root for the element identified by viewID
// and/or text and returns the first visible match's bounds. The search
// tries, in order: exact view id, short-id suffix across the whole tree,
// then a text fallback restricted to visible clickable nodes.
func (f *ElementFinder) Find(root Node, viewID, text string) (Bounds, bool) {
	if root == nil {
		return Bounds{}, false
	}

	if viewID != "" {
		if b, ok := f.search(root, func(n Node) bool {
			return n.Visible() && n.ViewID() == viewID
		}); ok {
			return b, true
		}

		short := fuzzy.ShortID(viewID)
		if b, ok := f.search(root, func(n Node) bool {
			return n.Visible() && fuzzy.ShortID(n.ViewID()) == short && n.ViewID() != ""
		}); ok {
			return b, true
		}
	}

	if text != "" {
		if b, ok := f.search(root, func(n Node) bool {
			if !n.Visible() || !n.Clickable() {
				return false
			}
			return fuzzy.ContainsFold(n.Text(), text) || fuzzy.ContainsFold(n.ContentDescription(), text)
		}); ok {
			return b, true
		}
	}

	return Bounds{}, false
}

// search walks depth-first and returns the bounds of the first node for
// which pred is true. Unreadable nodes are skipped.
func (f *ElementFinder) search(n Node, pred func(Node) bool) (Bounds, bool) {
	if pred(n) {
		return n.Bounds(), true
	}

	count := n.ChildCount()
	for i := 0; i < count; i++ {
		var found bool
		var bounds Bounds
		err := visitChild(n, i, func(c Node) {
			bounds, found = f.search(c, pred)
		})
		if err != nil {
			f.logger.Debug("skipping unreadable node", "index", i, "error", err)
			continue
		}
		if found {
			return bounds, true
		}
	}
	return Bounds{}, false
}

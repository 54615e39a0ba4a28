package uievent

import (
	"log/slog"
	"strings"
	"time"
)

// Traversal caps. Deep trees on list-heavy screens can run to thousands of
// nodes; the caps bound traversal cost and keep snapshots comparable.
const (
	DefaultMaxViews = 500
	DefaultMaxTexts = 200
)

// Snapshot is an immutable, bounded picture of the foreground screen at one
// instant. It is built fresh per event or polling tick and discarded after
// matching; only the anomaly detector retains the most recent one for
// frozen-screen comparison.
type Snapshot struct {
	Package      string
	Activity     string
	VisibleViews []string
	TextNodes    []string
	Timestamp    time.Time
}

// StructuralEqual reports whether two snapshots show the same screen:
// same package and identical view/text sets, ignoring timestamps.
func (s *Snapshot) StructuralEqual(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Package != o.Package {
		return false
	}
	if len(s.VisibleViews) != len(o.VisibleViews) || len(s.TextNodes) != len(o.TextNodes) {
		return false
	}
	for i := range s.VisibleViews {
		if s.VisibleViews[i] != o.VisibleViews[i] {
			return false
		}
	}
	for i := range s.TextNodes {
		if s.TextNodes[i] != o.TextNodes[i] {
			return false
		}
	}
	return true
}

// SnapshotBuilder constructs snapshots from live node trees. Traversal
// tolerates per-node access failures (log and continue) and releases every
// handle it acquires on every exit path.
type SnapshotBuilder struct {
	maxViews int
	maxTexts int
	logger   *slog.Logger
}

// NewSnapshotBuilder creates a builder with the given caps. Non-positive
// caps fall back to the defaults. A nil logger uses slog.Default().
func NewSnapshotBuilder(maxViews, maxTexts int, logger *slog.Logger) *SnapshotBuilder {
	if maxViews <= 0 {
		maxViews = DefaultMaxViews
	}
	if maxTexts <= 0 {
		maxTexts = DefaultMaxTexts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotBuilder{maxViews: maxViews, maxTexts: maxTexts, logger: logger}
}

// Build walks the whole tree under root depth-first, collecting distinct
// non-blank view ids and texts up to the caps. The caller keeps ownership
// of root; all child handles are acquired and released internally.
func (b *SnapshotBuilder) Build(root Node, pkg string) *Snapshot {
	snap := &Snapshot{
		Package:   pkg,
		Timestamp: time.Now(),
	}
	if root == nil {
		return snap
	}

	snap.Activity = ActivityName(root.ClassName())

	c := &collector{builder: b, snap: snap, seenViews: map[string]bool{}, seenTexts: map[string]bool{}}
	c.walk(root)
	return snap
}

// BuildPartial collects only the subtree under node. Used when an event
// carries a source node but resolving the window root is not worth the cost.
func (b *SnapshotBuilder) BuildPartial(node Node, pkg string) *Snapshot {
	return b.Build(node, pkg)
}

// BuildLight constructs a snapshot without any tree traversal: package and
// heuristic activity only. Used by the low-cost frozen-screen polling path.
func BuildLight(pkg, className string) *Snapshot {
	return &Snapshot{
		Package:   pkg,
		Activity:  ActivityName(className),
		Timestamp: time.Now(),
	}
}

// FromEventFields builds a snapshot from the fields the event itself
// carries, for events that arrive without a node tree reference.
func FromEventFields(ev *Event) *Snapshot {
	snap := &Snapshot{Timestamp: time.Now()}
	if ev == nil {
		return snap
	}
	snap.Package = ev.Package
	snap.Activity = ActivityName(ev.ClassName)
	if id := strings.TrimSpace(ev.ViewID); id != "" {
		snap.VisibleViews = append(snap.VisibleViews, id)
	}
	if text := strings.TrimSpace(ev.Text); text != "" {
		snap.TextNodes = append(snap.TextNodes, text)
	}
	if desc := strings.TrimSpace(ev.ContentDescription); desc != "" && !strings.EqualFold(desc, ev.Text) {
		snap.TextNodes = append(snap.TextNodes, desc)
	}
	if !ev.Time.IsZero() {
		snap.Timestamp = ev.Time
	}
	return snap
}

// ActivityName extracts a screen name from a window class name. Only
// classes that look like activities produce a value.
func ActivityName(className string) string {
	className = strings.TrimSpace(className)
	if className == "" || !strings.Contains(className, "Activity") {
		return ""
	}
	if i := strings.LastIndex(className, "."); i >= 0 {
		return className[i+1:]
	}
	return className
}

// collector carries the traversal state for one Build call.
type collector struct {
	builder   *SnapshotBuilder
	snap      *Snapshot
	seenViews map[string]bool
	seenTexts map[string]bool
}

func (c *collector) full() bool {
	return len(c.snap.VisibleViews) >= c.builder.maxViews &&
		len(c.snap.TextNodes) >= c.builder.maxTexts
}

func (c *collector) walk(n Node) {
	if c.full() {
		return
	}

	c.record(n)

	count := n.ChildCount()
	for i := 0; i < count; i++ {
		if c.full() {
			return
		}
		if err := visitChild(n, i, c.walk); err != nil {
			c.builder.logger.Debug("skipping unreadable node", "index", i, "error", err)
		}
	}
}

func (c *collector) record(n Node) {
	if id := strings.TrimSpace(n.ViewID()); id != "" && !c.seenViews[id] &&
		len(c.snap.VisibleViews) < c.builder.maxViews {
		c.seenViews[id] = true
		c.snap.VisibleViews = append(c.snap.VisibleViews, id)
	}

	text := strings.TrimSpace(n.Text())
	if text != "" {
		c.recordText(text)
	}
	if desc := strings.TrimSpace(n.ContentDescription()); desc != "" && !strings.EqualFold(desc, text) {
		c.recordText(desc)
	}
}

func (c *collector) recordText(text string) {
	key := strings.ToLower(text)
	if c.seenTexts[key] || len(c.snap.TextNodes) >= c.builder.maxTexts {
		return
	}
	c.seenTexts[key] = true
	c.snap.TextNodes = append(c.snap.TextNodes, text)
}

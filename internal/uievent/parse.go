package uievent

import (
	"encoding/json"
	"fmt"
	"time"
)

// Parse decodes one JSON line from the device bridge into an Event.
// Unrecognized event types are preserved as TypeUnknown rather than
// rejected, so that matching can apply its fallback rules. A missing
// timestamp is filled with the current time.
func Parse(line []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	if ev.Package == "" {
		return nil, fmt.Errorf("event has no package")
	}

	if !Known(ev.Type) {
		ev.Type = TypeUnknown
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	return &ev, nil
}

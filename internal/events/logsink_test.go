package events

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLogSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink := NewLogSink(path)

	ch := make(chan Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sink.Start(ctx, ch); err != nil {
		t.Fatalf("start sink: %v", err)
	}

	ch <- &SessionStartEvent{BaseEvent: NewInternalEvent(EventSessionStart), SessionID: "sess-1"}
	ch <- &TrackingChangedEvent{BaseEvent: NewInternalEvent(EventTrackingChanged), To: "checking"}
	close(ch)
	if err := sink.Stop(); err != nil {
		t.Fatalf("stop sink: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var types []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		types = append(types, line.Type)
	}
	if len(types) != 2 || types[0] != string(EventSessionStart) || types[1] != string(EventTrackingChanged) {
		t.Fatalf("logged types = %v", types)
	}
}

func TestLogSinkRotatesExistingLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	if err := os.WriteFile(path, []byte("old content\n"), 0644); err != nil {
		t.Fatal(err)
	}

	sink := NewLogSink(path)
	ch := make(chan Event)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sink.Start(ctx, ch); err != nil {
		t.Fatalf("start sink: %v", err)
	}
	close(ch)
	sink.Stop()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var baks int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".bak" {
			baks++
		}
	}
	if baks != 1 {
		t.Fatalf("bak files = %d, want 1", baks)
	}

	// The live file starts fresh.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatalf("new log not empty: %q", data)
	}
}

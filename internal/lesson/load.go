package lesson

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Lesson is an ordered list of subtasks for one recorded task.
type Lesson struct {
	TaskID   string          `json:"task_id"`
	Title    string          `json:"title"`
	Subtasks []SubtaskDetail `json:"subtasks"`
}

// Load reads a lesson JSON file, sorts subtasks by order index, and
// validates that each subtask is usable for matching.
func Load(path string) (*Lesson, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lesson: %w", err)
	}

	var l Lesson
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse lesson: %w", err)
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}

	sort.SliceStable(l.Subtasks, func(i, j int) bool {
		return l.Subtasks[i].OrderIndex < l.Subtasks[j].OrderIndex
	})

	return &l, nil
}

// Validate checks that the lesson has at least one subtask and that every
// subtask carries an id and a target app.
func (l *Lesson) Validate() error {
	if len(l.Subtasks) == 0 {
		return fmt.Errorf("lesson %q has no subtasks", l.Title)
	}
	for i, s := range l.Subtasks {
		if s.ID == "" {
			return fmt.Errorf("subtask %d has no id", i)
		}
		if s.TargetApp == "" {
			return fmt.Errorf("subtask %s has no target app", s.ID)
		}
	}
	return nil
}

package controller

import (
	"time"

	"payrollforms/internal/core"
)

type EventKind int

const (
	// EventRender asks observers to redraw the month view.
	EventRender EventKind = iota
	// EventSaved follows a successful save.
	EventSaved
	// EventSaveFailed carries the persistence error in Event.Err.
	EventSaveFailed
	// EventFocus asks the UI to focus Event.RecordID. Fired once, FocusDelay after an add.
	EventFocus
)

func (k EventKind) String() string {
	switch k {
	case EventRender:
		return "render"
	case EventSaved:
		return "saved"
	case EventSaveFailed:
		return "save_failed"
	case EventFocus:
		return "focus"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind     EventKind
	View     View
	RecordID string
	Err      error
}

// Observer is called outside the controller lock and may call back into it.
type Observer func(Event)

// View is the rendering input for one month.
type View struct {
	Month      core.Month
	MonthKey   string
	Label      string
	Records    []core.Record
	Total      int
	MonthCount int
	IsCurrent  bool
	ReadOnly   bool
	LastSaved  time.Time
}

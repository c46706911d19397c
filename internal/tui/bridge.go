package tui

import (
	"payrollforms/internal/controller"
	"payrollforms/internal/log"

	tea "github.com/charmbracelet/bubbletea"
)

// eventMsg delivers a controller notification to the program loop.
type eventMsg struct {
	controller.Event
}

// Bridge buffers controller notifications until the program reads them.
// Observe never blocks, so the controller may notify from inside Update.
type Bridge struct {
	ch     chan controller.Event
	logger *log.Logger
}

func NewBridge(size int, logger *log.Logger) *Bridge {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Bridge{ch: make(chan controller.Event, size), logger: logger.WithComponent(log.ComponentTUI)}
}

// Observe is a controller.Observer. Events past the buffer are dropped; the
// model re-reads the view after its own actions, so only toasts can be lost.
func (b *Bridge) Observe(ev controller.Event) {
	select {
	case b.ch <- ev:
	default:
		b.logger.Warn("Dropped controller event", "kind", ev.Kind.String())
	}
}

// Wait returns a command that yields the next event.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		return eventMsg{<-b.ch}
	}
}

package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ConfirmModal is a yes/no dialog.
type ConfirmModal struct {
	Message string
	Details string
	Width   int
}

// ConfirmationResultMsg is sent when the user answers the modal.
type ConfirmationResultMsg struct {
	Confirmed bool
}

func NewConfirmModal(message, details string, width int) *ConfirmModal {
	return &ConfirmModal{Message: message, Details: details, Width: width}
}

func (m *ConfirmModal) Update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "enter":
		return func() tea.Msg { return ConfirmationResultMsg{Confirmed: true} }
	case "n", "esc":
		return func() tea.Msg { return ConfirmationResultMsg{Confirmed: false} }
	}
	return nil
}

func (m *ConfirmModal) View() string {
	content := warnStyle.Render(m.Message) + "\n"
	if m.Details != "" {
		content += "\n" + m.Details + "\n"
	}
	content += "\n" + okStyle.Render("[y]") + " Yes  " + errorStyle.Render("[n/esc]") + " No"

	box := modalBoxStyle
	if m.Width > 0 {
		box = box.Width(m.Width)
	}
	return box.Render(content)
}

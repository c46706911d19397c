// Package tui is a terminal front end over the forms controller.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"payrollforms/internal/controller"
	"payrollforms/internal/core"
	"payrollforms/internal/export"
	"payrollforms/internal/log"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

type mode int

const (
	modeList mode = iota
	modeEdit
	modeSearch
	modeConfirm
)

const (
	msgAdded      = "New form added successfully!"
	msgDeleted    = "Form deleted successfully!"
	msgDuplicated = "Form duplicated successfully!"
	msgCleared    = "All data cleared successfully!"
	msgSaveError  = "Error saving data"
	msgReadOnly   = "Only the current month can be edited"
	msgConfirm    = "Are you sure you want to clear all data?"
)

// opDoneMsg reports a structural change that ran off the update loop.
type opDoneMsg struct {
	op      string
	id      string
	success string
	err     error
}

type exportDoneMsg struct {
	path string
	err  error
}

type Options struct {
	// ExportDir receives exported files. Empty means the working directory.
	ExportDir string
	Logger    *log.Logger
}

type Model struct {
	ctrl      *controller.Controller
	events    *Bridge
	logger    *log.Logger
	exportDir string

	view    controller.View
	visible []int // indices into view.Records, filter order
	cursor  int
	mode    mode

	editor    textarea.Model
	editingID string
	search    textinput.Model
	query     string
	confirm   *ConfirmModal

	status    string
	statusErr bool
	width     int
	height    int
}

// New builds the model. The bridge must already be subscribed to ctrl.
func New(ctrl *controller.Controller, events *Bridge, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	ed := textarea.New()
	ed.Placeholder = "Enter your comment here..."
	ed.ShowLineNumbers = false
	ed.CharLimit = 0
	ed.SetHeight(6)

	si := textinput.New()
	si.Placeholder = "Filter forms..."
	si.CharLimit = 100
	si.Width = 40

	m := Model{
		ctrl:      ctrl,
		events:    events,
		logger:    logger.WithComponent(log.ComponentTUI),
		exportDir: opts.ExportDir,
		view:      ctrl.View(),
		editor:    ed,
		search:    si,
	}
	m.applyFilter()
	return m
}

func (m Model) Init() tea.Cmd {
	return m.events.Wait()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.editor.SetWidth(max(20, msg.Width-6))
		return m, nil

	case eventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, m.events.Wait())

	case opDoneMsg:
		m.refresh()
		m.report(msg.op, msg.success, msg.err)
		if msg.id != "" {
			m.selectID(msg.id)
		}
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.setError("Export failed: " + msg.err.Error())
		} else {
			m.setStatus("Exported to " + msg.path)
		}
		return m, nil

	case ConfirmationResultMsg:
		m.mode = modeList
		m.confirm = nil
		if !msg.Confirmed {
			m.setStatus("Clear cancelled")
			return m, nil
		}
		return m, m.clearAllCmd()

	case tea.KeyMsg:
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modeSearch:
			return m.updateSearch(msg)
		case modeConfirm:
			return m, m.confirm.Update(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m *Model) handleEvent(ev controller.Event) tea.Cmd {
	switch ev.Kind {
	case controller.EventRender:
		m.setView(ev.View)
	case controller.EventSaved:
		m.setView(ev.View)
		m.setStatus("Saved at " + ev.View.LastSaved.Format(time.TimeOnly))
	case controller.EventSaveFailed:
		m.setView(ev.View)
		m.setError(msgSaveError)
		m.logger.Warn("Save failed", log.FieldError, ev.Err)
	case controller.EventFocus:
		if m.mode == modeList && m.selectID(ev.RecordID) {
			return m.startEdit()
		}
	}
	return nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "h", "left":
		m.setView(m.ctrl.ChangeMonth(-1))
		m.cursor = 0
	case "l", "right":
		m.setView(m.ctrl.ChangeMonth(1))
		m.cursor = 0
	case "t":
		m.setView(m.ctrl.GoToToday())
		m.cursor = 0
	case "a":
		if m.view.ReadOnly {
			m.setError(msgReadOnly)
			return m, nil
		}
		return m, m.addCmd()
	case "enter", "e":
		if m.view.ReadOnly {
			m.setError(msgReadOnly)
			return m, nil
		}
		if _, ok := m.selected(); ok {
			return m, m.startEdit()
		}
	case "c":
		if r, ok := m.selected(); ok {
			return m, m.duplicateCmd(r.ID)
		}
	case "d", "delete":
		if r, ok := m.selected(); ok {
			return m, m.deleteCmd(r.ID)
		}
	case "X":
		m.confirm = NewConfirmModal(msgConfirm, "Every form in every month is removed.", min(60, max(30, m.width-4)))
		m.mode = modeConfirm
	case "/":
		m.mode = modeSearch
		m.search.SetValue(m.query)
		return m, m.search.Focus()
	case "esc":
		m.query = ""
		m.applyFilter()
	case "1":
		return m, m.exportCmd(export.FormatJSON)
	case "2":
		return m, m.exportCmd(export.FormatCSV)
	case "3":
		return m, m.exportCmd(export.FormatText)
	}
	return m, nil
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+s":
		m.stopEdit()
		return m, nil
	}
	before := m.editor.Value()
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if after := m.editor.Value(); after != before {
		if err := m.ctrl.Edit(m.editingID, after); err != nil {
			m.report(log.OpUpdate, "", err)
			m.stopEdit()
			return m, nil
		}
		m.updateLocal(m.editingID, after)
	}
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeList
		m.search.Blur()
		return m, nil
	case "esc":
		m.mode = modeList
		m.search.Blur()
		m.query = ""
		m.applyFilter()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.query = m.search.Value()
	m.applyFilter()
	return m, cmd
}

func (m *Model) startEdit() tea.Cmd {
	r, ok := m.selected()
	if !ok {
		return nil
	}
	m.mode = modeEdit
	m.editingID = r.ID
	m.editor.SetValue(r.Content)
	return m.editor.Focus()
}

func (m *Model) stopEdit() {
	m.mode = modeList
	m.editingID = ""
	m.editor.Blur()
	if m.ctrl.PendingSave() {
		m.setStatus("Saving...")
	}
}

// updateLocal mirrors an edit into the cached view without waiting for a render.
func (m *Model) updateLocal(id, content string) {
	for i := range m.view.Records {
		if m.view.Records[i].ID == id {
			m.view.Records[i].Content = content
			return
		}
	}
}

func (m *Model) refresh() {
	m.setView(m.ctrl.View())
}

// setView swaps the cached view. While editing, the record under the editor
// keeps its typed content.
func (m *Model) setView(v controller.View) {
	m.view = v
	if m.mode == modeEdit {
		m.updateLocal(m.editingID, m.editor.Value())
	}
	m.applyFilter()
}

func (m *Model) applyFilter() {
	if m.query == "" {
		m.visible = make([]int, len(m.view.Records))
		for i := range m.view.Records {
			m.visible[i] = i
		}
	} else {
		contents := make([]string, len(m.view.Records))
		for i, r := range m.view.Records {
			contents[i] = r.Content
		}
		matches := fuzzy.Find(m.query, contents)
		m.visible = make([]int, len(matches))
		for i, match := range matches {
			m.visible[i] = match.Index
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = max(0, len(m.visible)-1)
	}
}

func (m Model) selected() (core.Record, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return core.Record{}, false
	}
	return m.view.Records[m.visible[m.cursor]], true
}

func (m *Model) selectID(id string) bool {
	for pos, idx := range m.visible {
		if m.view.Records[idx].ID == id {
			m.cursor = pos
			return true
		}
	}
	return false
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

// report turns a controller result into a status line. A failed save keeps
// the change, so it is reported but not treated as a rejection.
func (m *Model) report(op, success string, err error) {
	var pe *core.PersistenceError
	switch {
	case err == nil:
		if success != "" {
			m.setStatus(success)
		}
	case errors.As(err, &pe):
		m.setError(msgSaveError)
	case errors.Is(err, controller.ErrMonthReadOnly):
		m.setError(msgReadOnly)
	case errors.Is(err, core.ErrNotFound):
		m.setError("Form not found")
	default:
		m.logger.Error("Form operation failed", log.FieldOperation, op, log.FieldError, err)
		m.setError(err.Error())
	}
}

func (m Model) addCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		rec, err := ctrl.AddNew(context.Background())
		return opDoneMsg{op: log.OpCreate, id: rec.ID, success: msgAdded, err: err}
	}
}

func (m Model) duplicateCmd(id string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		dup, err := ctrl.Duplicate(context.Background(), id)
		return opDoneMsg{op: log.OpDuplicate, id: dup.ID, success: msgDuplicated, err: err}
	}
}

func (m Model) deleteCmd(id string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		err := ctrl.Delete(context.Background(), id)
		return opDoneMsg{op: log.OpDelete, success: msgDeleted, err: err}
	}
}

func (m Model) clearAllCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		err := ctrl.ClearAll(context.Background(), true)
		return opDoneMsg{op: log.OpClear, success: msgCleared, err: err}
	}
}

func (m Model) exportCmd(f export.Format) tea.Cmd {
	ctrl, dir, logger := m.ctrl, m.exportDir, m.logger
	return func() tea.Msg {
		data, name, err := ctrl.Export(f)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return exportDoneMsg{err: fmt.Errorf("write %s: %w", path, err)}
		}
		logger.Info("Export written", log.FieldOperation, log.OpExport, log.FieldFormat, string(f), "path", path)
		return exportDoneMsg{path: path}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Payroll Forms") + "  " + subtitleStyle.Render(m.view.Label))
	if m.view.ReadOnly {
		b.WriteString("  " + warnStyle.Render("read only"))
	}
	b.WriteString("\n")
	lastSaved := "never"
	if !m.view.LastSaved.IsZero() {
		lastSaved = m.view.LastSaved.Format("2006-01-02 15:04:05")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Total forms: %d  This month: %d  Last saved: %s",
		m.view.Total, m.view.MonthCount, lastSaved)))
	b.WriteString("\n\n")

	if m.mode == modeSearch {
		b.WriteString("/ " + m.search.View() + "\n\n")
	} else if m.query != "" {
		b.WriteString(mutedStyle.Render("filter: "+m.query) + "\n\n")
	}

	switch {
	case len(m.view.Records) == 0:
		b.WriteString(mutedStyle.Render("No forms for this month.") + "\n")
	case len(m.visible) == 0:
		b.WriteString(mutedStyle.Render("No matches.") + "\n")
	}

	for pos, idx := range m.visible {
		r := m.view.Records[idx]
		if m.mode == modeEdit && r.ID == m.editingID {
			b.WriteString(entryStyle.Render(mutedStyle.Render("Added on: "+r.Date)+"\n"+m.editor.View()) + "\n")
			continue
		}
		marker := "  "
		line := fmt.Sprintf("%s  %s", mutedStyle.Render(r.Date), preview(r.Content, max(20, m.width-20)))
		if pos == m.cursor {
			marker = cursorStyle.Render("> ")
			line = selectedStyle.Render(line)
		}
		b.WriteString(marker + line + "\n")
	}

	if m.mode == modeConfirm && m.confirm != nil {
		modal := m.confirm.View()
		if m.width > 0 && m.height > 0 {
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
		}
		b.WriteString("\n" + modal + "\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		if m.statusErr {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(okStyle.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(statusBarStyle.Render(m.hint()))
	return b.String()
}

func (m Model) hint() string {
	switch m.mode {
	case modeEdit:
		return "type to edit  esc:done"
	case modeSearch:
		return "type to filter  enter:confirm  esc:cancel"
	case modeConfirm:
		return "y:yes  n:no"
	default:
		return "j/k:move  h/l:month  t:today  a:add  e:edit  c:duplicate  d:delete  X:clear  /:filter  1/2/3:export json/csv/txt  q:quit"
	}
}

// preview is the first line of content cut to width runes.
func preview(content string, width int) string {
	first, _, more := strings.Cut(content, "\n")
	if first == "" && !more {
		return mutedStyle.Render("(empty)")
	}
	runes := []rune(first)
	if len(runes) > width {
		first = string(runes[:width-1]) + "…"
	} else if more {
		first += " …"
	}
	return textStyle.Render(first)
}

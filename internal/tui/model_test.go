package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"payrollforms/internal/controller"
	"payrollforms/internal/persist/local"

	tea "github.com/charmbracelet/bubbletea"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.Local)

func newTestModel(t *testing.T, quota int, exportDir string) (Model, *controller.Controller, *Bridge) {
	t.Helper()
	ctrl := controller.New(local.New(local.NewMemoryKV(quota), nil), controller.Options{
		SaveDebounce:           200 * time.Millisecond,
		FocusDelay:             5 * time.Millisecond,
		RestrictToCurrentMonth: true,
		Now:                    func() time.Time { return fixedNow },
	})
	t.Cleanup(ctrl.Close)
	bridge := NewBridge(256, nil)
	t.Cleanup(ctrl.Subscribe(bridge.Observe))
	return New(ctrl, bridge, Options{ExportDir: exportDir}), ctrl, bridge
}

func key(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// run feeds a command's message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m, _ = update(t, m, cmd())
	return m
}

func nextEvent(t *testing.T, b *Bridge, kind controller.EventKind) controller.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-b.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
		}
	}
}

func TestAddFocusAndEdit(t *testing.T) {
	m, ctrl, bridge := newTestModel(t, 0, "")

	m, cmd := update(t, m, key("a"))
	m = run(t, m, cmd)
	if m.view.MonthCount != 1 || m.status != msgAdded || m.statusErr {
		t.Fatalf("after add: count=%d status=%q", m.view.MonthCount, m.status)
	}

	ev := nextEvent(t, bridge, controller.EventFocus)
	m, _ = update(t, m, eventMsg{ev})
	if m.mode != modeEdit || m.editingID != ev.RecordID {
		t.Fatalf("focus should open the editor, mode=%v id=%q", m.mode, m.editingID)
	}

	m, _ = update(t, m, key("hi"))
	if got := ctrl.View().Records[0].Content; got != "hi" {
		t.Fatalf("controller content = %q", got)
	}
	if !ctrl.PendingSave() {
		t.Fatal("edit should schedule a save")
	}

	m, _ = update(t, m, key("esc"))
	if m.mode != modeList {
		t.Fatal("esc should leave the editor")
	}
	saved := nextEvent(t, bridge, controller.EventSaved)
	m, _ = update(t, m, eventMsg{saved})
	if !strings.HasPrefix(m.status, "Saved at ") {
		t.Fatalf("status = %q", m.status)
	}
	if m.view.Records[0].Content != "hi" {
		t.Fatal("saved view should carry the edit")
	}
}

func TestReadOnlyMonth(t *testing.T) {
	m, _, _ := newTestModel(t, 0, "")

	m, _ = update(t, m, key("h"))
	if m.view.Label != "February 2025" || !m.view.ReadOnly {
		t.Fatalf("prev month view %+v", m.view)
	}
	m, cmd := update(t, m, key("a"))
	if cmd != nil || m.status != msgReadOnly || !m.statusErr {
		t.Fatalf("add in past month should be refused, status=%q", m.status)
	}
	if !strings.Contains(m.View(), "read only") {
		t.Fatal("view should flag the month as read only")
	}

	m, _ = update(t, m, key("t"))
	if m.view.ReadOnly || m.view.Label != "March 2025" {
		t.Fatal("t should return to the current month")
	}
}

func TestClearAllNeedsConfirmation(t *testing.T) {
	m, ctrl, _ := newTestModel(t, 0, "")
	m, cmd := update(t, m, key("a"))
	m = run(t, m, cmd)

	m, _ = update(t, m, key("X"))
	if m.mode != modeConfirm {
		t.Fatal("X should open the confirmation")
	}
	m, cmd = update(t, m, key("n"))
	m = run(t, m, cmd)
	if ctrl.View().Total != 1 || m.mode != modeList {
		t.Fatal("declining should keep the data")
	}

	m, _ = update(t, m, key("X"))
	m, cmd = update(t, m, key("y"))
	m, cmd = update(t, m, cmd())
	m = run(t, m, cmd)
	if ctrl.View().Total != 0 || m.status != msgCleared {
		t.Fatalf("clear: total=%d status=%q", ctrl.View().Total, m.status)
	}
}

func TestDuplicateAndDelete(t *testing.T) {
	m, ctrl, _ := newTestModel(t, 0, "")
	m, cmd := update(t, m, key("a"))
	m = run(t, m, cmd)

	m, cmd = update(t, m, key("c"))
	m = run(t, m, cmd)
	if m.view.MonthCount != 2 || m.status != msgDuplicated {
		t.Fatalf("duplicate: count=%d status=%q", m.view.MonthCount, m.status)
	}

	m, cmd = update(t, m, key("d"))
	m = run(t, m, cmd)
	if ctrl.View().Total != 1 || m.status != msgDeleted {
		t.Fatalf("delete: total=%d status=%q", ctrl.View().Total, m.status)
	}
}

func TestFilter(t *testing.T) {
	m, ctrl, _ := newTestModel(t, 0, "")
	var cmd tea.Cmd
	for _, content := range []string{"overtime 4h", "sick leave", "overtime 2h"} {
		m, cmd = update(t, m, key("a"))
		m = run(t, m, cmd)
		r, _ := m.selected()
		if err := ctrl.Edit(r.ID, content); err != nil {
			t.Fatalf("edit: %v", err)
		}
	}
	m.refresh()

	m, _ = update(t, m, key("/"))
	m, _ = update(t, m, key("over"))
	if len(m.visible) != 2 {
		t.Fatalf("expected two matches, got %d", len(m.visible))
	}
	for _, idx := range m.visible {
		if !strings.HasPrefix(m.view.Records[idx].Content, "overtime") {
			t.Fatalf("unexpected match %q", m.view.Records[idx].Content)
		}
	}
	m, _ = update(t, m, key("enter"))
	if m.mode != modeList || m.query != "over" {
		t.Fatal("enter should keep the filter")
	}
	m, _ = update(t, m, key("esc"))
	if len(m.visible) != 3 {
		t.Fatal("esc should clear the filter")
	}
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	m, _, _ := newTestModel(t, 0, dir)
	m, cmd := update(t, m, key("a"))
	m = run(t, m, cmd)

	m, cmd = update(t, m, key("2"))
	m = run(t, m, cmd)
	path := filepath.Join(dir, "payroll-forms-2025-03.csv")
	if m.statusErr || m.status != "Exported to "+path {
		t.Fatalf("status = %q", m.status)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "id,createdAt,lastModified,monthKey,content,date\n") {
		t.Fatalf("unexpected csv %q", data)
	}
}

func TestSaveFailureKeepsRecord(t *testing.T) {
	m, ctrl, _ := newTestModel(t, 1, "")
	m, cmd := update(t, m, key("a"))
	m = run(t, m, cmd)
	if m.status != msgSaveError || !m.statusErr {
		t.Fatalf("status = %q", m.status)
	}
	if ctrl.View().Total != 1 {
		t.Fatal("record should stay after a failed save")
	}
}

func TestViewEmptyMonth(t *testing.T) {
	m, _, _ := newTestModel(t, 0, "")
	out := m.View()
	for _, want := range []string{"Payroll Forms", "March 2025", "No forms for this month.", "Last saved: never"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short", 20); !strings.Contains(got, "short") {
		t.Fatalf("preview = %q", got)
	}
	if got := preview("first\nsecond", 20); !strings.Contains(got, "first …") || strings.Contains(got, "second") {
		t.Fatalf("multi-line preview = %q", got)
	}
	if got := preview("abcdefghij", 5); !strings.Contains(got, "abcd…") {
		t.Fatalf("truncated preview = %q", got)
	}
	if got := preview("", 5); !strings.Contains(got, "(empty)") {
		t.Fatalf("empty preview = %q", got)
	}
}

func TestBridgeDropsWhenFull(t *testing.T) {
	b := NewBridge(1, nil)
	b.Observe(controller.Event{Kind: controller.EventRender})
	b.Observe(controller.Event{Kind: controller.EventSaved})
	msg := b.Wait()()
	ev, ok := msg.(eventMsg)
	if !ok || ev.Kind != controller.EventRender {
		t.Fatalf("unexpected msg %#v", msg)
	}
	select {
	case extra := <-b.ch:
		t.Fatalf("second event should have been dropped, got %v", extra.Kind)
	default:
	}
}

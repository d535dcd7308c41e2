package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/pulse/types"
)

func testSnapshot(runID string) *types.Snapshot {
	return types.NewSnapshot(runID, []types.ViewID{types.ViewJira},
		[]types.ViewResult{{View: types.ViewJira, State: types.StateCompleted, Data: []string{"OPS-1"}, Elapsed: time.Millisecond}},
		time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), 2*time.Millisecond)
}

func countingRun(calls *int) RunFunc {
	return func(context.Context) (*types.Snapshot, error) {
		*calls++
		return testSnapshot("run"), nil
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_InitFetches(t *testing.T) {
	calls := 0
	m := NewModel(t.Context(), countingRun(&calls), 0)
	if !m.loading {
		t.Error("new model should be loading")
	}
	if m.Init() == nil {
		t.Fatal("Init should return a command")
	}

	msg := m.fetch()()
	got, ok := msg.(snapshotMsg)
	if !ok {
		t.Fatalf("fetch produced %T, want snapshotMsg", msg)
	}
	if calls != 1 || got.snap == nil {
		t.Errorf("calls=%d snap=%v", calls, got.snap)
	}
}

func TestModel_SnapshotMsgStopsLoading(t *testing.T) {
	m := NewModel(t.Context(), countingRun(new(int)), 0)
	m, cmd := update(t, m, snapshotMsg{snap: testSnapshot("run-1")})

	if m.loading {
		t.Error("loading should be false after a snapshot arrives")
	}
	if m.Snapshot() == nil || m.Snapshot().RunID() != "run-1" {
		t.Errorf("unexpected snapshot: %v", m.Snapshot())
	}
	if cmd != nil {
		t.Error("no tick should be scheduled without an interval")
	}
	if view := m.View(); !strings.Contains(view, "jira") {
		t.Errorf("view should render the table:\n%s", view)
	}
}

func TestModel_IntervalSchedulesTick(t *testing.T) {
	m := NewModel(t.Context(), countingRun(new(int)), time.Minute)
	_, cmd := update(t, m, snapshotMsg{snap: testSnapshot("run-1")})
	if cmd == nil {
		t.Fatal("expected a tick command with an interval")
	}
}

func TestModel_TickStartsRun(t *testing.T) {
	m := NewModel(t.Context(), countingRun(new(int)), time.Minute)
	m, _ = update(t, m, snapshotMsg{snap: testSnapshot("run-1")})

	m, cmd := update(t, m, tickMsg(time.Now()))
	if !m.loading || cmd == nil {
		t.Error("tick should start a run")
	}

	// A tick during a run is ignored.
	_, cmd = update(t, m, tickMsg(time.Now()))
	if cmd != nil {
		t.Error("tick while loading should be ignored")
	}
}

func TestModel_RefreshKey(t *testing.T) {
	m := NewModel(t.Context(), countingRun(new(int)), 0)

	_, cmd := update(t, m, keyMsg("r"))
	if cmd != nil {
		t.Error("refresh while loading should be ignored")
	}

	m, _ = update(t, m, snapshotMsg{snap: testSnapshot("run-1")})
	m, cmd = update(t, m, keyMsg("r"))
	if !m.loading || cmd == nil {
		t.Error("refresh should start a run")
	}
}

func TestModel_KeepsLastSnapshotOnError(t *testing.T) {
	m := NewModel(t.Context(), countingRun(new(int)), 0)
	m, _ = update(t, m, snapshotMsg{snap: testSnapshot("run-1")})
	m, _ = update(t, m, snapshotMsg{err: errors.New("registry exploded")})

	if m.Snapshot().RunID() != "run-1" {
		t.Error("previous snapshot should be kept on error")
	}
	if view := m.View(); !strings.Contains(view, "registry exploded") {
		t.Errorf("view should show the error:\n%s", view)
	}
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(t.Context(), countingRun(new(int)), 0)
	m, cmd := update(t, m, keyMsg("q"))
	if !m.quitting || cmd == nil {
		t.Fatal("q should quit")
	}
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/verte-zerg/oscreplay/internal/model"
	"github.com/verte-zerg/oscreplay/internal/playback"
)

type fakeController struct {
	presets  [model.NumPresets]model.Preset
	started  []int
	stopped  []int
	stopAll  bool
	startErr error
}

func (f *fakeController) SelectFile(index int, path string) error {
	f.presets[index].FilePath = path
	return nil
}

func (f *fakeController) SetLoop(index int, enabled bool) error {
	f.presets[index].LoopEnabled = enabled
	return nil
}

func (f *fakeController) Start(index int) error {
	if f.presets[index].FilePath == "" {
		return fmt.Errorf("preset %d: %w", index+1, playback.ErrNoFile)
	}
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, index)
	f.presets[index].IsSending = true
	return nil
}

func (f *fakeController) Stop(index int) error {
	f.stopped = append(f.stopped, index)
	return nil
}

func (f *fakeController) StopAll() {
	f.stopAll = true
}

func (f *fakeController) Snapshot(index int) (model.Preset, error) {
	p := f.presets[index]
	p.Index = index
	return p, nil
}

type fakeRecorder struct {
	runs []model.RunSummary
}

func (f *fakeRecorder) InsertRun(_ context.Context, run model.RunSummary) (int64, error) {
	f.runs = append(f.runs, run)
	return int64(len(f.runs)), nil
}

func newTestModel(ctrl *fakeController, rec Recorder) *Model {
	logger := log.New(os.Stderr)
	logger.SetLevel(log.FatalLevel)
	return NewModel(ctrl, rec, logger, "127.0.0.1:9000")
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStartWithoutFileShowsError(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl, nil)
	m.Update(key("s"))
	if len(m.errs) != 1 || m.errs[0] != "No file selected for Preset 1" {
		t.Fatalf("unexpected errors: %v", m.errs)
	}
	if !strings.Contains(m.View(), "No file selected for Preset 1") {
		t.Fatalf("expected error modal in view")
	}
	m.Update(key("j"))
	if len(m.errs) != 0 {
		t.Fatalf("expected any key to dismiss the error")
	}
	if m.selected != 0 {
		t.Fatalf("expected dismissing key to be swallowed, selected %d", m.selected)
	}
}

func TestSelectFileThroughInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.txt")
	if err := os.WriteFile(path, []byte("ADDRESS(/a) FLOAT(1)\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	ctrl := &fakeController{}
	m := newTestModel(ctrl, nil)
	m.Update(key("down"))
	m.Update(key("o"))
	if !m.inputMode {
		t.Fatalf("expected input mode")
	}
	m.pathInput.SetValue(`"` + path + `"`)
	m.Update(key("enter"))
	if m.inputMode {
		t.Fatalf("expected input mode to close")
	}
	if ctrl.presets[1].FilePath != path {
		t.Fatalf("expected preset 2 path %q, got %q", path, ctrl.presets[1].FilePath)
	}

	m.Update(key("enter"))
	if len(ctrl.started) != 1 || ctrl.started[0] != 1 {
		t.Fatalf("expected preset 2 to start, got %v", ctrl.started)
	}
	if !strings.Contains(m.renderRow(1), "session.txt") {
		t.Fatalf("expected row to show file name: %s", m.renderRow(1))
	}
}

func TestSelectMissingFileShowsError(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl, nil)
	m.Update(key("o"))
	m.pathInput.SetValue(filepath.Join(t.TempDir(), "missing.txt"))
	m.Update(key("enter"))
	if ctrl.presets[0].FilePath != "" {
		t.Fatalf("expected path to stay unset")
	}
	if len(m.errs) != 1 || !strings.HasPrefix(m.errs[0], "Preset 1:") {
		t.Fatalf("unexpected errors: %v", m.errs)
	}
}

func TestLoopToggleAndStop(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl, nil)
	m.Update(key("3"))
	m.Update(key("l"))
	if !ctrl.presets[2].LoopEnabled {
		t.Fatalf("expected loop enabled on preset 3")
	}
	m.Update(key("l"))
	if ctrl.presets[2].LoopEnabled {
		t.Fatalf("expected loop disabled on preset 3")
	}
	m.Update(key("x"))
	if len(ctrl.stopped) != 1 || ctrl.stopped[0] != 2 {
		t.Fatalf("expected preset 3 stop, got %v", ctrl.stopped)
	}
}

func TestQuitStopsAllPresets(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(ctrl, nil)
	_, cmd := m.Update(key("q"))
	if !ctrl.stopAll {
		t.Fatalf("expected quit to stop all presets")
	}
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
}

func TestProgressAndFinishedMessages(t *testing.T) {
	ctrl := &fakeController{}
	ctrl.presets[0] = model.Preset{FilePath: "/logs/a.txt", IsSending: true}
	rec := &fakeRecorder{}
	m := newTestModel(ctrl, rec)

	m.Update(ProgressMsg{Preset: 0, Sent: 5, Total: 10})
	if m.rows[0].sent != 5 || m.rows[0].total != 10 {
		t.Fatalf("unexpected row state: %+v", m.rows[0])
	}
	if !strings.Contains(m.renderRow(0), "5/10") {
		t.Fatalf("expected counter in row: %s", m.renderRow(0))
	}

	ctrl.presets[0].IsSending = false
	_, cmd := m.Update(FinishedMsg{Preset: 0, Outcome: model.OutcomeCompleted, Passes: 2, Messages: 16})
	if cmd == nil {
		t.Fatalf("expected a refresh after a finished run")
	}
	if len(rec.runs) != 1 {
		t.Fatalf("expected run to be recorded")
	}
	row := m.renderRow(0)
	if !strings.Contains(row, "0/10") || !strings.Contains(row, "done: 2 passes, 16 sent") {
		t.Fatalf("unexpected finished row: %s", row)
	}
}

func TestFailedMessageNamesPreset(t *testing.T) {
	m := newTestModel(&fakeController{}, nil)
	m.Update(FailedMsg{Preset: 3, Kind: model.FailureTransport, Err: errors.New("connection refused")})
	if len(m.errs) != 1 || m.errs[0] != "preset 4: connection refused" {
		t.Fatalf("unexpected errors: %v", m.errs)
	}
}

func TestNormalizePath(t *testing.T) {
	if got := normalizePath(`  '/tmp/a b.txt'  `); got != "/tmp/a b.txt" {
		t.Fatalf("unexpected path %q", got)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := normalizePath("~/logs/x.txt"); got != filepath.Join(home, "logs", "x.txt") {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestProgramSinkDropsBeforeAttach(t *testing.T) {
	var sink ProgramSink
	sink.Progress(model.Progress{Preset: 0, Sent: 1, Total: 1})
	sink.Failed(model.Failure{Preset: 0, Err: errors.New("x")})
	sink.Finished(model.RunSummary{})
}

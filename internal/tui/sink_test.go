package tui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/verte-zerg/oscreplay/internal/model"
	"github.com/verte-zerg/oscreplay/internal/playback"
)

type gatedReceiver struct {
	gate chan struct{}
	once sync.Once
	mu   sync.Mutex
	msgs []tea.Msg
}

func (g *gatedReceiver) Send(msg tea.Msg) {
	g.once.Do(func() { <-g.gate })
	g.mu.Lock()
	g.msgs = append(g.msgs, msg)
	g.mu.Unlock()
}

func (g *gatedReceiver) received() []tea.Msg {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]tea.Msg(nil), g.msgs...)
}

func TestProgramSinkQueuesWhileReceiverIsBusy(t *testing.T) {
	recv := &gatedReceiver{gate: make(chan struct{})}
	var sink ProgramSink
	sink.attach(recv)
	defer sink.Close()

	start := time.Now()
	for i := 1; i <= 500; i++ {
		sink.Progress(model.Progress{Preset: 0, Sent: i, Total: 500})
		sink.Progress(model.Progress{Preset: 1, Sent: i, Total: 500})
	}
	sink.Progress(model.Progress{Preset: 0, Sent: 0, Total: 500})
	sink.Failed(model.Failure{Preset: 0, Kind: model.FailureTransport, Err: errors.New("refused")})
	sink.Finished(model.RunSummary{Preset: 0, Outcome: model.OutcomeFailed})
	sink.Progress(model.Progress{Preset: 0, Sent: 1, Total: 500})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected enqueueing to return immediately, took %s", elapsed)
	}

	close(recv.gate)
	deadline := time.Now().Add(5 * time.Second)
	for {
		msgs := recv.received()
		if n := len(msgs); n > 0 {
			if p, ok := msgs[n-1].(ProgressMsg); ok && p.Preset == 0 && p.Sent == 1 && n > 3 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for delivery, got %d messages", len(recv.received()))
		}
		time.Sleep(time.Millisecond)
	}

	var order []string
	lastSent := map[int]int{}
	for _, msg := range recv.received() {
		switch m := msg.(type) {
		case ProgressMsg:
			if m.Preset == 1 {
				if m.Sent < lastSent[1] {
					t.Fatalf("preset 2 progress went backwards: %d after %d", m.Sent, lastSent[1])
				}
				lastSent[1] = m.Sent
				continue
			}
			order = append(order, fmt.Sprintf("progress %d", m.Sent))
		case FailedMsg:
			order = append(order, "failed")
		case FinishedMsg:
			order = append(order, "finished")
		}
	}
	if lastSent[1] != 500 {
		t.Fatalf("expected latest preset 2 progress to be delivered, got %d", lastSent[1])
	}
	tail := order[len(order)-4:]
	want := []string{"progress 0", "failed", "finished", "progress 1"}
	for i := range want {
		if tail[i] != want[i] {
			t.Fatalf("unexpected preset 1 event order %v", order)
		}
	}
}

type slowModel struct {
	delay    time.Duration
	updates  int
	lastSent int
	finished bool
}

func (m *slowModel) Init() tea.Cmd { return nil }

func (m *slowModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		time.Sleep(m.delay)
		m.updates++
		m.lastSent = msg.Sent
	case FinishedMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *slowModel) View() string { return "" }

type discardSender struct{}

func (discardSender) Send(string, []model.Value) error { return nil }

func TestSlowUpdateLoopDoesNotSlowReplay(t *testing.T) {
	const lines = 100
	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "ADDRESS(/p) FLOAT(%d)\n", i)
	}
	path := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ui := &slowModel{delay: 5 * time.Millisecond}
	program := tea.NewProgram(ui,
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	sink := &ProgramSink{}
	sink.Attach(program)
	defer sink.Close()

	runDone := make(chan error, 1)
	go func() {
		_, err := program.Run()
		runDone <- err
	}()

	logger := log.New(io.Discard)
	sup := playback.NewSupervisor(discardSender{}, sink, logger)
	_ = sup.SelectFile(0, path)
	start := time.Now()
	if err := sup.Start(0); err != nil {
		t.Fatalf("start: %v", err)
	}
	sup.Wait()
	elapsed := time.Since(start)

	// Blocking delivery would take at least lines * delay.
	if limit := time.Duration(lines) * ui.delay / 2; elapsed > limit {
		t.Fatalf("%d lines took %s with a slow update loop, expected under %s", lines, elapsed, limit)
	}

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("program: %v", err)
		}
	case <-time.After(5 * time.Second):
		program.Kill()
		t.Fatalf("timed out waiting for finished event")
	}
	if !ui.finished || ui.lastSent != 0 {
		t.Fatalf("expected final progress 0 and finished event, got %+v", ui)
	}
	if ui.updates >= lines {
		t.Fatalf("expected queued progress to be coalesced, got %d updates", ui.updates)
	}
}

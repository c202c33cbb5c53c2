// Package playback replays log files as paced OSC messages, one session per preset.
package playback

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/verte-zerg/oscreplay/internal/logline"
	"github.com/verte-zerg/oscreplay/internal/model"
	"github.com/verte-zerg/oscreplay/internal/transport"
)

// PacingInterval is the fixed pause after every matched line.
const PacingInterval = 800 * time.Microsecond

var (
	// ErrNoFile is returned when a preset is started without a file.
	ErrNoFile = errors.New("no file selected")
	// ErrAlreadyRunning is returned when a running session is started again.
	ErrAlreadyRunning = errors.New("session is already running")
	// ErrSessionFinished is returned when a finished session is started again.
	ErrSessionFinished = errors.New("session has already finished")
)

// State is the lifecycle state of a Session.
type State int32

const (
	// StateIdle is a session that has not started, or that replayed its file to the end.
	StateIdle State = iota
	// StateRunning is a session with an active replay goroutine.
	StateRunning
	// StateStopped is a session that was stopped or failed.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Session replays one file for one preset. It is single-use: once it leaves
// StateRunning it is discarded.
type Session struct {
	preset int
	path   string
	loop   *atomic.Bool
	sender transport.Sender
	sink   Sink
	logger *log.Logger
	pace   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	onExit func(*Session)

	state  atomic.Int32
	ran    bool
	sent   atomic.Int64
	total  atomic.Int64
	report model.RunSummary
}

func newSession(preset int, path string, loop *atomic.Bool, sender transport.Sender, sink Sink, logger *log.Logger, pace time.Duration) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		preset: preset,
		path:   path,
		loop:   loop,
		sender: sender,
		sink:   sink,
		logger: logger,
		pace:   pace,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Running reports whether the replay goroutine is active.
func (s *Session) Running() bool {
	return s.State() == StateRunning
}

// Sent returns the matched-line count of the current pass.
func (s *Session) Sent() int {
	return int(s.sent.Load())
}

// Total returns the line count of the file read for the current pass.
func (s *Session) Total() int {
	return int(s.total.Load())
}

// Done is closed once the session has finalized.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start reads the file and begins replaying it in a new goroutine.
func (s *Session) Start() error {
	if s.path == "" {
		return ErrNoFile
	}
	if s.ran {
		if s.Running() {
			return ErrAlreadyRunning
		}
		return ErrSessionFinished
	}
	lines, err := logline.ReadLines(s.path)
	if err != nil {
		return model.Failure{Preset: s.preset, Kind: model.FailureIO, Err: err}
	}
	s.ran = true
	s.sent.Store(0)
	s.total.Store(int64(len(lines)))
	s.report = model.RunSummary{
		Preset:    s.preset,
		FilePath:  s.path,
		StartedAt: time.Now(),
	}
	s.state.Store(int32(StateRunning))
	s.logger.Info("replay started", "preset", s.preset+1, "path", s.path, "lines", len(lines))
	go s.run(lines)
	return nil
}

// Stop requests cooperative cancellation. The replay loop notices it before
// the next line, and a pending pacing wait returns early.
func (s *Session) Stop() {
	s.cancel()
}

func (s *Session) stopRequested() bool {
	return s.ctx.Err() != nil
}

func (s *Session) run(lines []string) {
	defer close(s.done)
	err := s.replay(lines)
	s.finish(err)
}

func (s *Session) replay(lines []string) error {
	for pass := 0; ; pass++ {
		if s.stopRequested() {
			return nil
		}
		if pass > 0 {
			var err error
			lines, err = logline.ReadLines(s.path)
			if err != nil {
				return model.Failure{Preset: s.preset, Kind: model.FailureIO, Err: err}
			}
			s.sent.Store(0)
			s.total.Store(int64(len(lines)))
		}
		s.sink.Progress(model.Progress{Preset: s.preset, Sent: 0, Total: len(lines)})

		completed, err := s.pass(lines)
		if err != nil {
			return err
		}
		if !completed {
			return nil
		}
		s.report.Passes++
		if !s.loop.Load() || s.stopRequested() {
			return nil
		}
		s.logger.Debug("looping", "preset", s.preset+1, "pass", s.report.Passes)
	}
}

// pass replays lines in order. It returns false if a stop interrupted it.
func (s *Session) pass(lines []string) (bool, error) {
	total := len(lines)
	for _, line := range lines {
		if s.stopRequested() {
			return false, nil
		}
		cmd, ok := logline.Parse(line)
		if !ok {
			continue
		}
		if cmd.Sendable() {
			if err := s.sender.Send(cmd.Address, cmd.Values); err != nil {
				return false, model.Failure{Preset: s.preset, Kind: model.FailureTransport, Err: err}
			}
			s.report.Messages++
		}
		s.report.Matched++
		sent := s.sent.Add(1)
		s.sink.Progress(model.Progress{Preset: s.preset, Sent: int(sent), Total: total})
		s.wait()
	}
	return true, nil
}

func (s *Session) wait() {
	if s.pace <= 0 {
		return
	}
	timer := time.NewTimer(s.pace)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.ctx.Done():
	}
}

func (s *Session) finish(err error) {
	s.report.EndedAt = time.Now()
	final := StateIdle
	switch {
	case err != nil:
		final = StateStopped
		s.report.Outcome = model.OutcomeFailed
		s.report.Error = err.Error()
	case s.stopRequested():
		final = StateStopped
		s.report.Outcome = model.OutcomeStopped
	default:
		s.report.Outcome = model.OutcomeCompleted
	}
	s.cancel()
	s.sent.Store(0)

	// The session stays Running until its last event is out, so a restart
	// of the preset cannot interleave with this run's terminal events.
	s.sink.Progress(model.Progress{Preset: s.preset, Sent: 0, Total: s.Total()})
	if err != nil {
		var failure model.Failure
		if !errors.As(err, &failure) {
			failure = model.Failure{Preset: s.preset, Kind: model.FailureIO, Err: err}
		}
		s.logger.Error("replay failed", "preset", s.preset+1, "kind", failure.Kind, "err", failure.Err)
		s.sink.Failed(failure)
	}
	s.logger.Info("replay finished",
		"preset", s.preset+1,
		"outcome", s.report.Outcome,
		"passes", s.report.Passes,
		"messages", s.report.Messages,
	)
	s.sink.Finished(s.report)

	s.state.Store(int32(final))
	if s.onExit != nil {
		s.onExit(s)
	}
}

// Summary returns the run report. It is complete once Done is closed.
func (s *Session) Summary() model.RunSummary {
	return s.report
}

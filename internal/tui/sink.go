package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/oscreplay/internal/model"
)

// ProgressMsg carries a preset's progress into the update loop.
type ProgressMsg model.Progress

// FailedMsg carries a fatal session error into the update loop.
type FailedMsg model.Failure

// FinishedMsg carries a finished run into the update loop.
type FinishedMsg model.RunSummary

type messageSender interface {
	Send(msg tea.Msg)
}

// ProgramSink forwards session events to a Bubble Tea program. Sessions only
// enqueue; a single goroutine delivers the queue with Program.Send, so a slow
// update loop never holds up playback. A progress event that has not been
// delivered yet is replaced by the next one for the same preset. Failed and
// Finished events are never dropped, and each preset's events keep their
// order. Events sent before Attach are dropped.
type ProgramSink struct {
	mu      sync.Mutex
	started bool
	closed  bool
	queue   []tea.Msg
	// pending holds index+1 of an undelivered ProgressMsg per preset.
	pending [model.NumPresets]int
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

// Attach binds the sink to a program and starts delivery.
func (s *ProgramSink) Attach(p *tea.Program) {
	s.attach(p)
}

func (s *ProgramSink) attach(to messageSender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	s.wake = make(chan struct{}, 1)
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go s.deliver(to)
}

// Close stops delivery and drops anything still queued. Call it once the
// program has exited.
func (s *ProgramSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.queue = nil
	s.mu.Unlock()
	if started {
		close(s.quit)
		<-s.done
	}
}

func (s *ProgramSink) deliver(to messageSender) {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}
		for _, msg := range s.take() {
			select {
			case <-s.quit:
				return
			default:
			}
			to.Send(msg)
		}
	}
}

func (s *ProgramSink) take() []tea.Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.queue
	s.queue = nil
	s.pending = [model.NumPresets]int{}
	return batch
}

func (s *ProgramSink) enqueue(preset int, msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.closed {
		return
	}
	tracked := preset >= 0 && preset < len(s.pending)
	_, isProgress := msg.(ProgressMsg)
	switch {
	case tracked && isProgress && s.pending[preset] > 0:
		s.queue[s.pending[preset]-1] = msg
		return
	case tracked && isProgress:
		s.queue = append(s.queue, msg)
		s.pending[preset] = len(s.queue)
	default:
		if tracked {
			s.pending[preset] = 0
		}
		s.queue = append(s.queue, msg)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Progress implements playback.Sink.
func (s *ProgramSink) Progress(p model.Progress) {
	s.enqueue(p.Preset, ProgressMsg(p))
}

// Failed implements playback.Sink.
func (s *ProgramSink) Failed(f model.Failure) {
	s.enqueue(f.Preset, FailedMsg(f))
}

// Finished implements playback.Sink.
func (s *ProgramSink) Finished(r model.RunSummary) {
	s.enqueue(r.Preset, FinishedMsg(r))
}

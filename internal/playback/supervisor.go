package playback

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/verte-zerg/oscreplay/internal/model"
	"github.com/verte-zerg/oscreplay/internal/transport"
)

// ErrInvalidPreset is returned for an index outside 0..NumPresets-1.
var ErrInvalidPreset = errors.New("invalid preset index")

type slot struct {
	mu      sync.Mutex
	path    string
	loop    atomic.Bool
	session *Session
}

// Supervisor owns the fixed set of presets and at most one running session
// per preset. Presets never share mutable state.
type Supervisor struct {
	sender transport.Sender
	sink   Sink
	logger *log.Logger
	pace   time.Duration
	slots  [model.NumPresets]slot
	active sync.WaitGroup
}

// NewSupervisor builds a supervisor that sends through sender and reports to
// sink. A nil sink discards events and a nil logger uses the default one.
func NewSupervisor(sender transport.Sender, sink Sink, logger *log.Logger) *Supervisor {
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Supervisor{
		sender: sender,
		sink:   sink,
		logger: logger,
		pace:   PacingInterval,
	}
}

func (s *Supervisor) slot(index int) (*slot, error) {
	if index < 0 || index >= model.NumPresets {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPreset, index)
	}
	return &s.slots[index], nil
}

// SelectFile sets the file path of a preset. A running session keeps the
// path it started with.
func (s *Supervisor) SelectFile(index int, path string) error {
	sl, err := s.slot(index)
	if err != nil {
		return err
	}
	sl.mu.Lock()
	sl.path = path
	sl.mu.Unlock()
	return nil
}

// SetLoop sets the loop flag of a preset. A running session reads it at the
// end of every pass.
func (s *Supervisor) SetLoop(index int, enabled bool) error {
	sl, err := s.slot(index)
	if err != nil {
		return err
	}
	sl.loop.Store(enabled)
	return nil
}

// Start begins replaying a preset's file. It returns ErrNoFile when no file is
// selected and does nothing when the preset is already sending.
func (s *Supervisor) Start(index int) error {
	sl, err := s.slot(index)
	if err != nil {
		return err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.path == "" {
		return fmt.Errorf("preset %d: %w", index+1, ErrNoFile)
	}
	if sl.session != nil && sl.session.Running() {
		return nil
	}
	sess := newSession(index, sl.path, &sl.loop, s.sender, s.sink, s.logger, s.pace)
	sess.onExit = s.release
	if err := sess.Start(); err != nil {
		return err
	}
	sl.session = sess
	s.active.Add(1)
	go func() {
		<-sess.Done()
		s.active.Done()
	}()
	return nil
}

// Stop requests the running session of a preset to stop. Stopping an idle
// preset is a no-op.
func (s *Supervisor) Stop(index int) error {
	sl, err := s.slot(index)
	if err != nil {
		return err
	}
	sl.mu.Lock()
	sess := sl.session
	sl.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
	return nil
}

// StopAll requests every running session to stop.
func (s *Supervisor) StopAll() {
	for i := range s.slots {
		_ = s.Stop(i)
	}
}

// Wait blocks until every started session has finalized and delivered its
// last event.
func (s *Supervisor) Wait() {
	s.active.Wait()
}

func (s *Supervisor) release(sess *Session) {
	sl := &s.slots[sess.preset]
	sl.mu.Lock()
	if sl.session == sess {
		sl.session = nil
	}
	sl.mu.Unlock()
}

// Snapshot returns the current view of a preset.
func (s *Supervisor) Snapshot(index int) (model.Preset, error) {
	sl, err := s.slot(index)
	if err != nil {
		return model.Preset{}, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	p := model.Preset{
		Index:       index,
		FilePath:    sl.path,
		LoopEnabled: sl.loop.Load(),
	}
	if sess := sl.session; sess != nil && sess.Running() {
		p.IsSending = true
		p.SentCount = sess.Sent()
		p.TotalLines = sess.Total()
	}
	return p, nil
}

// Snapshots returns the view of every preset in index order.
func (s *Supervisor) Snapshots() []model.Preset {
	out := make([]model.Preset, 0, model.NumPresets)
	for i := range s.slots {
		p, _ := s.Snapshot(i)
		out = append(out, p)
	}
	return out
}

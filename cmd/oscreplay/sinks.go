package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/verte-zerg/oscreplay/internal/model"
)

const statusInterval = 100 * time.Millisecond

// resultSink keeps the last run summary for the send command.
type resultSink struct {
	mu  sync.Mutex
	run *model.RunSummary
}

func (r *resultSink) Progress(model.Progress) {}

func (r *resultSink) Failed(model.Failure) {}

func (r *resultSink) Finished(run model.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run = &run
}

func (r *resultSink) summary() (model.RunSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return model.RunSummary{}, false
	}
	return *r.run, true
}

// statusLine redraws a single progress line on a terminal, at most once per
// statusInterval.
type statusLine struct {
	w    io.Writer
	mu   sync.Mutex
	last time.Time
}

func newStatusLine(w io.Writer) *statusLine {
	return &statusLine{w: w}
}

func (s *statusLine) Progress(p model.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if p.Sent != 0 && p.Sent != p.Total && now.Sub(s.last) < statusInterval {
		return
	}
	s.last = now
	_, _ = fmt.Fprintf(s.w, "\r\x1b[Kpreset %d  %d/%d", p.Preset+1, p.Sent, p.Total)
}

func (s *statusLine) Failed(model.Failure) {
	s.clear()
}

func (s *statusLine) Finished(model.RunSummary) {
	s.clear()
}

func (s *statusLine) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprint(s.w, "\r\x1b[K")
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

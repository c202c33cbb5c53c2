package playback

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/verte-zerg/oscreplay/internal/model"
)

// Sink consumes session events. Each session emits from its own goroutine,
// so implementations that feed a single-threaded consumer must hand events
// over through a queue rather than touch consumer state directly.
type Sink interface {
	Progress(model.Progress)
	Failed(model.Failure)
	Finished(model.RunSummary)
}

type nopSink struct{}

func (nopSink) Progress(model.Progress)   {}
func (nopSink) Failed(model.Failure)      {}
func (nopSink) Finished(model.RunSummary) {}

// LogSink writes session events to a logger.
type LogSink struct {
	Logger *log.Logger
}

// Progress implements Sink.
func (s LogSink) Progress(p model.Progress) {
	s.Logger.Debug("progress", "preset", p.Preset+1, "sent", p.Sent, "total", p.Total)
}

// Failed implements Sink.
func (s LogSink) Failed(f model.Failure) {
	s.Logger.Error("preset failed", "preset", f.Preset+1, "kind", f.Kind, "err", f.Err)
}

// Finished implements Sink.
func (s LogSink) Finished(r model.RunSummary) {
	s.Logger.Info("run summary",
		"preset", r.Preset+1,
		"outcome", r.Outcome,
		"passes", r.Passes,
		"matched", r.Matched,
		"messages", r.Messages,
		"elapsed", r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond),
	)
}

// MultiSink fans every event out to several sinks in order.
type MultiSink []Sink

// Progress implements Sink.
func (m MultiSink) Progress(p model.Progress) {
	for _, s := range m {
		s.Progress(p)
	}
}

// Failed implements Sink.
func (m MultiSink) Failed(f model.Failure) {
	for _, s := range m {
		s.Failed(f)
	}
}

// Finished implements Sink.
func (m MultiSink) Finished(r model.RunSummary) {
	for _, s := range m {
		s.Finished(r)
	}
}

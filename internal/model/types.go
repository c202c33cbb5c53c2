// Package model defines shared data structures.
package model

import (
	"strconv"
	"time"
)

// NumPresets is the fixed number of presets held for the lifetime of the process.
const NumPresets = 4

// ValueKind tags the type carried by a Value.
type ValueKind int

const (
	// KindFloat marks a decimal number.
	KindFloat ValueKind = iota
	// KindBool marks a boolean.
	KindBool
)

// Value is one typed payload argument: a float or a bool.
type Value struct {
	Kind  ValueKind
	Float float64
	Bool  bool
}

// FloatValue wraps a float.
func FloatValue(f float64) Value {
	return Value{Kind: KindFloat, Float: f}
}

// BoolValue wraps a bool.
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// String formats the value the way it appears in a log line body.
func (v Value) String() string {
	if v.Kind == KindBool {
		return strconv.FormatBool(v.Bool)
	}
	return strconv.FormatFloat(v.Float, 'g', -1, 64)
}

// Command is one parsed log line: an address and its values in parse order.
type Command struct {
	Address string
	Values  []Value
}

// Sendable reports whether the command carries a payload for the transport.
func (c Command) Sendable() bool {
	return len(c.Values) > 0
}

// Preset is a point-in-time view of one preset slot.
type Preset struct {
	Index       int
	FilePath    string
	LoopEnabled bool
	IsSending   bool
	SentCount   int
	TotalLines  int
}

// Progress reports the sent count of a preset against its line total.
type Progress struct {
	Preset int
	Sent   int
	Total  int
}

// FailureKind classifies a fatal session error.
type FailureKind string

const (
	// FailureIO marks an unreadable or invalid log file.
	FailureIO FailureKind = "io"
	// FailureTransport marks a failed send.
	FailureTransport FailureKind = "transport"
)

// Failure is a fatal session error tagged with its preset.
type Failure struct {
	Preset int
	Kind   FailureKind
	Err    error
}

// Error implements error.
func (f Failure) Error() string {
	return "preset " + strconv.Itoa(f.Preset+1) + ": " + f.Err.Error()
}

// Unwrap returns the underlying cause.
func (f Failure) Unwrap() error {
	return f.Err
}

// Outcome describes how a run ended.
type Outcome string

const (
	// OutcomeCompleted means the file was replayed to the end without looping.
	OutcomeCompleted Outcome = "completed"
	// OutcomeStopped means the run was stopped on request.
	OutcomeStopped Outcome = "stopped"
	// OutcomeFailed means the run hit a fatal error.
	OutcomeFailed Outcome = "failed"
)

// RunSummary captures a finished replay run.
type RunSummary struct {
	Preset    int
	FilePath  string
	StartedAt time.Time
	EndedAt   time.Time
	Passes    int
	Matched   int
	Messages  int
	Outcome   Outcome
	Error     string
}

// RunRecord is a stored run.
type RunRecord struct {
	ID int64
	RunSummary
}

// Package session keeps the per-session log of which emotion was shown and
// for how long.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotActive     = errors.New("no session is active")
	ErrAlreadyActive = errors.New("a session is already active")
)

// Interval is one contiguous stretch of a single label.
type Interval struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Tracker is the Idle/Active session state machine. It is not safe for
// concurrent use; the engine serializes access.
type Tracker struct {
	neutral string

	id      uuid.UUID
	active  bool
	started time.Time
	log     []Interval
	open    *Interval
}

// NewTracker returns an idle tracker. Intervals labelled neutral (compared
// case-insensitively) are logged but left out of summaries.
func NewTracker(neutral string) *Tracker {
	return &Tracker{neutral: neutral}
}

// Start clears the log and begins a new session at ts.
func (t *Tracker) Start(ts time.Time) (uuid.UUID, error) {
	if t.active {
		return uuid.Nil, ErrAlreadyActive
	}

	t.id = uuid.New()
	t.active = true
	t.started = ts
	t.log = nil
	t.open = nil
	return t.id, nil
}

// Observe records that label is showing from ts on. A repeat of the open
// label is coalesced. Timestamps earlier than the open interval are pulled
// forward to its start, so intervals never run backwards.
func (t *Tracker) Observe(label string, ts time.Time) error {
	if !t.active {
		return ErrNotActive
	}

	if ts.Before(t.started) {
		ts = t.started
	}

	if t.open != nil {
		if t.open.Label == label {
			return nil
		}
		if ts.Before(t.open.Start) {
			ts = t.open.Start
		}
		t.closeOpen(ts)
	}

	t.open = &Interval{Label: label, Start: ts}
	return nil
}

// End closes the open interval at ts and returns the session to Idle. The
// finished log stays available until the next Start.
func (t *Tracker) End(ts time.Time) ([]Interval, error) {
	if !t.active {
		return nil, ErrNotActive
	}

	if t.open != nil {
		if ts.Before(t.open.Start) {
			ts = t.open.Start
		}
		t.closeOpen(ts)
	}
	t.active = false
	return t.Log(), nil
}

func (t *Tracker) closeOpen(ts time.Time) {
	iv := *t.open
	iv.End = ts
	t.open = nil
	if iv.Duration() > 0 {
		t.log = append(t.log, iv)
	}
}

func (t *Tracker) Active() bool       { return t.active }
func (t *Tracker) ID() uuid.UUID      { return t.id }
func (t *Tracker) Started() time.Time { return t.started }

// Log returns a copy of the closed intervals.
func (t *Tracker) Log() []Interval {
	return append([]Interval(nil), t.log...)
}

// Open returns the interval still being recorded, if any.
func (t *Tracker) Open() (Interval, bool) {
	if t.open == nil {
		return Interval{}, false
	}
	return *t.open, true
}

// Summarize aggregates the closed intervals.
func (t *Tracker) Summarize() Summary {
	return Summarize(t.log, t.neutral)
}

package blob

import (
	"github.com/google/uuid"

	"github.com/normanking/cortexblob/internal/bus"
	"github.com/normanking/cortexblob/internal/metrics"
	"github.com/normanking/cortexblob/internal/session"
)

// StartSession begins tracking from now. The active preset is observed
// immediately so the session is accounted from its first instant.
func (e *Engine) StartSession() (uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainLocked()
	now := e.clock.Now()
	id, err := e.tracker.Start(now)
	if err != nil {
		return uuid.Nil, err
	}
	e.observeLocked(e.active, now)

	metrics.SessionActive.Set(1)
	e.log.Info().Str("session", id.String()).Str("preset", e.active).Msg("session started")
	e.publish(bus.EventTypeSessionStarted, map[string]any{"session": id.String()})
	return id, nil
}

// EndSession closes the session, summarizes it and eases back to neutral.
func (e *Engine) EndSession() (session.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainLocked()
	id := e.tracker.ID()
	if _, err := e.tracker.End(e.clock.Now()); err != nil {
		return session.Summary{}, err
	}
	summary := e.tracker.Summarize()
	metrics.SessionActive.Set(0)

	e.log.Info().Str("session", id.String()).Str("summary", summary.String()).Msg("session ended")
	e.publish(bus.EventTypeSessionEnded, map[string]any{
		"session":     id.String(),
		"summary":     summary.String(),
		"percentages": summary.Percentages(),
	})

	if err := e.applyLocked(e.neutral, SourceSession, e.clock.Now()); err != nil {
		return summary, err
	}
	return summary, nil
}

// SessionSummary returns label percentages for the last finished session,
// formatted to one decimal. It is empty while a session is running or when
// nothing but neutral was shown.
func (e *Engine) SessionSummary() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tracker.Active() {
		return map[string]string{}
	}
	return e.tracker.Summarize().Percentages()
}

// SessionState reports whether a session is running and its id.
func (e *Engine) SessionState() (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.ID(), e.tracker.Active()
}

// SessionLog returns the closed intervals of the current or last session.
func (e *Engine) SessionLog() []session.Interval {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Log()
}

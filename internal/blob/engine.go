// Package blob runs the emotion blob: it owns the live parameter vector, the
// preset table, the session log and both displaced surfaces, and serializes
// every change to them with the frame loop.
package blob

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexblob/internal/bus"
	"github.com/normanking/cortexblob/internal/deform"
	"github.com/normanking/cortexblob/internal/emotion"
	"github.com/normanking/cortexblob/internal/metrics"
	"github.com/normanking/cortexblob/internal/session"
)

const (
	// maxFrameDelta caps dt so a stalled loop does not skip a whole transition.
	maxFrameDelta = 0.1

	defaultQueueSize = 256
)

// Preset change sources, reported in events and metrics.
const (
	SourceManual    = "manual"
	SourceSentiment = "sentiment"
	SourceSession   = "session"
	SourceSave      = "save"
	SourceRemove    = "remove"
	SourceReload    = "reload"
	SourceStartup   = "startup"
)

// Options wires an Engine. Presets, Router, Field, Mesh and Cloud are
// required.
type Options struct {
	Presets *emotion.PresetStore
	Router  *emotion.Router
	Field   *deform.Field
	Mesh    *deform.Surface
	Cloud   *deform.Surface

	TransitionDuration time.Duration
	Easing             emotion.Easing
	ColorSpace         emotion.BlendSpace
	NeutralPreset      string
	Workers            int
	QueueSize          int

	Clock  clockwork.Clock
	Bus    *bus.EventBus
	Logger zerolog.Logger
}

// Frame describes the state rendered by one Step.
type Frame struct {
	Index         uint64             `json:"index"`
	Time          float64            `json:"time"`
	Delta         float64            `json:"delta"`
	Preset        string             `json:"preset"`
	Live          emotion.Vector     `json:"live"`
	RotationY     float64            `json:"rotationY"`
	Visible       deform.SurfaceKind `json:"visible"`
	Transitioning bool               `json:"transitioning"`
	Progress      float64            `json:"progress"`
}

// --- Command types ---

type engineCmd interface{ engineCmd() }

type cmdApplyPreset struct {
	name   string
	source string
	at     time.Time
}

func (cmdApplyPreset) engineCmd() {}

type cmdSentiment struct {
	label string
	at    time.Time
}

func (cmdSentiment) engineCmd() {}

// --- Engine ---

// Engine applies queued inbound events at frame boundaries. Step, the
// session calls and the preset mutations all take the same lock, so a frame
// never observes a half-applied change.
type Engine struct {
	mu sync.Mutex

	presets    *emotion.PresetStore
	router     *emotion.Router
	field      *deform.Field
	mesh       *deform.Surface
	cloud      *deform.Surface
	transition *emotion.Transition
	tracker    *session.Tracker

	neutral  string
	active   string
	time     float64
	rotation float64
	frame    uint64
	workers  int

	cmdCh chan engineCmd
	clock clockwork.Clock
	bus   *bus.EventBus
	log   zerolog.Logger
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Presets == nil || opts.Router == nil || opts.Field == nil || opts.Mesh == nil || opts.Cloud == nil {
		return nil, errors.New("engine needs presets, router, field, mesh and cloud")
	}
	if opts.TransitionDuration == 0 {
		opts.TransitionDuration = emotion.DefaultTransitionDuration
	}
	if opts.Easing == "" {
		opts.Easing = emotion.DefaultEasing
	}
	if opts.ColorSpace == "" {
		opts.ColorSpace = emotion.BlendLinearRGB
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewEventBus()
	}

	if !opts.Presets.Has(opts.NeutralPreset) {
		return nil, fmt.Errorf("neutral preset %q: %w", opts.NeutralPreset, emotion.ErrPresetNotFound)
	}
	opts.Presets.Protect(opts.NeutralPreset)

	tr, err := emotion.NewTransition(opts.TransitionDuration, emotion.DefaultVector(),
		emotion.WithEasing(opts.Easing), emotion.WithBlendSpace(opts.ColorSpace))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		presets:    opts.Presets,
		router:     opts.Router,
		field:      opts.Field,
		mesh:       opts.Mesh,
		cloud:      opts.Cloud,
		transition: tr,
		tracker:    session.NewTracker(opts.NeutralPreset),
		neutral:    opts.NeutralPreset,
		workers:    opts.Workers,
		cmdCh:      make(chan engineCmd, opts.QueueSize),
		clock:      opts.Clock,
		bus:        opts.Bus,
		log:        opts.Logger,
	}

	// The blob starts from the built-in defaults and eases into neutral.
	if err := e.applyLocked(e.neutral, SourceStartup, e.clock.Now()); err != nil {
		return nil, err
	}
	return e, nil
}

// ApplyPreset queues a manual preset selection for the next frame. It
// reports false if the queue was full and the event was dropped. Unknown
// names are logged when the event is applied and change nothing.
func (e *Engine) ApplyPreset(name string) bool {
	return e.enqueue(cmdApplyPreset{name: name, source: SourceManual, at: e.clock.Now()})
}

// OnSentiment queues a classifier label for routing on the next frame.
func (e *Engine) OnSentiment(label string) bool {
	return e.enqueue(cmdSentiment{label: label, at: e.clock.Now()})
}

func (e *Engine) enqueue(cmd engineCmd) bool {
	select {
	case e.cmdCh <- cmd:
		return true
	default:
		metrics.EventsDropped.Inc()
		e.log.Warn().Msgf("event queue full, dropping %T", cmd)
		return false
	}
}

// drainLocked applies every queued event in arrival order.
func (e *Engine) drainLocked() {
	for {
		select {
		case cmd := <-e.cmdCh:
			e.handleLocked(cmd)
		default:
			return
		}
	}
}

func (e *Engine) handleLocked(cmd engineCmd) {
	switch c := cmd.(type) {
	case cmdApplyPreset:
		// Unknown names are already logged and counted.
		_ = e.applyLocked(c.name, c.source, c.at)

	case cmdSentiment:
		e.routeLocked(c.label, c.at)
	}
}

func (e *Engine) applyLocked(name, source string, at time.Time) error {
	v, err := e.presets.Get(name)
	if err != nil {
		metrics.PresetMisses.Inc()
		e.log.Warn().Str("preset", name).Str("source", source).Msg("preset not found, keeping current state")
		e.publish(bus.EventTypePresetMissing, map[string]any{"preset": name, "source": source})
		return err
	}

	retargeted := e.transition.Retarget(v, e.transition.Live())
	e.active = name
	e.observeLocked(name, at)

	metrics.PresetsApplied.WithLabelValues(source).Inc()
	e.log.Debug().Str("preset", name).Str("source", source).Bool("retargeted", retargeted).Msg("preset applied")
	e.publish(bus.EventTypePresetApplied, map[string]any{
		"preset":     name,
		"source":     source,
		"retargeted": retargeted,
	})
	return nil
}

func (e *Engine) routeLocked(label string, at time.Time) {
	preset, ok := e.router.Route(label, e.active)
	if !ok {
		outcome := metrics.OutcomeUnchanged
		if _, err := e.router.Resolve(label); err != nil {
			outcome = metrics.OutcomeUnmatched
		}
		metrics.SentimentEvents.WithLabelValues(outcome).Inc()
		e.log.Debug().Str("label", label).Str("outcome", outcome).Str("current", e.active).Msg("sentiment ignored")
		e.publish(bus.EventTypeSentimentIgnored, map[string]any{"label": label, "outcome": outcome})
		return
	}

	metrics.SentimentEvents.WithLabelValues(metrics.OutcomeRouted).Inc()
	e.publish(bus.EventTypeSentimentRouted, map[string]any{"label": label, "preset": preset})
	_ = e.applyLocked(preset, SourceSentiment, at)
}

func (e *Engine) observeLocked(name string, at time.Time) {
	if !e.tracker.Active() {
		return
	}
	if err := e.tracker.Observe(name, at); err != nil {
		e.log.Warn().Err(err).Str("preset", name).Msg("session observe failed")
	}
}

func (e *Engine) publish(t bus.EventType, data map[string]any) {
	e.bus.Publish(bus.NewEvent(t, e.clock.Now(), data))
}

// Step runs one frame: apply queued events, advance the transition by dt
// seconds, then displace both surfaces from the live vector.
func (e *Engine) Step(ctx context.Context, dt float64) (Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.clock.Now()
	e.drainLocked()

	wasActive := e.transition.Active()
	live := e.transition.Advance(dt)
	if wasActive && !e.transition.Active() {
		e.publish(bus.EventTypeTransitionDone, map[string]any{"preset": e.active})
	}

	e.time += dt
	e.rotation = math.Mod(e.rotation+live.RotationSpeed*dt, 2*math.Pi)

	if err := deform.Apply(ctx, e.field, e.mesh, e.time, live, e.workers); err != nil {
		return Frame{}, fmt.Errorf("displace mesh: %w", err)
	}
	if err := deform.Apply(ctx, e.field, e.cloud, e.time, live, e.workers); err != nil {
		return Frame{}, fmt.Errorf("displace point cloud: %w", err)
	}

	e.frame++
	metrics.FramesTotal.Inc()
	metrics.FrameDuration.Observe(e.clock.Since(start).Seconds())
	metrics.TransitionProgress.Set(e.transition.Progress())

	return e.frameLocked(dt), nil
}

func (e *Engine) frameLocked(dt float64) Frame {
	live := e.transition.Live()
	visible := deform.KindMesh
	if live.PointMode {
		visible = deform.KindPointCloud
	}
	return Frame{
		Index:         e.frame,
		Time:          e.time,
		Delta:         dt,
		Preset:        e.active,
		Live:          live,
		RotationY:     e.rotation,
		Visible:       visible,
		Transitioning: e.transition.Active(),
		Progress:      e.transition.Progress(),
	}
}

// Run steps the engine every interval until ctx is cancelled. onFrame, if
// set, is called after each successful step with the engine unlocked.
func (e *Engine) Run(ctx context.Context, interval time.Duration, onFrame func(Frame)) error {
	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	last := e.clock.Now()
	fpsStart := last
	frames := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.Chan():
			dt := math.Min(now.Sub(last).Seconds(), maxFrameDelta)
			last = now

			frame, err := e.Step(ctx, dt)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.log.Error().Err(err).Msg("frame failed")
				continue
			}
			if onFrame != nil {
				onFrame(frame)
			}

			frames++
			if elapsed := now.Sub(fpsStart); elapsed >= 10*time.Second {
				e.log.Debug().
					Float64("fps", float64(frames)/elapsed.Seconds()).
					Str("preset", frame.Preset).
					Bool("transitioning", frame.Transitioning).
					Msg("frame stats")
				frames = 0
				fpsStart = now
			}
		}
	}
}

// Jump switches to a preset with no transition, applying queued events
// first.
func (e *Engine) Jump(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainLocked()
	v, err := e.presets.Get(name)
	if err != nil {
		return err
	}
	e.transition.Reset(v)
	e.active = name
	e.observeLocked(name, e.clock.Now())
	e.publish(bus.EventTypePresetApplied, map[string]any{"preset": name, "source": SourceManual, "retargeted": true})
	return nil
}

// Live returns the current live vector.
func (e *Engine) Live() emotion.Vector {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transition.Live()
}

// ActivePreset returns the name of the preset being shown or blended to.
func (e *Engine) ActivePreset() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Frame returns the state of the most recent frame without stepping.
func (e *Engine) Frame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameLocked(0)
}

func (e *Engine) Router() *emotion.Router { return e.router }
func (e *Engine) Bus() *bus.EventBus      { return e.bus }

// Bounds returns the extent of the visible surface after the last frame.
func (e *Engine) Bounds() (lo, hi mgl32.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transition.Live().PointMode {
		return e.cloud.Bounds()
	}
	return e.mesh.Bounds()
}

// ExportGLB writes the most recently displaced surfaces to path.
func (e *Engine) ExportGLB(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return deform.ExportGLB(path, deform.Snapshot{
		Mesh:      e.mesh,
		Cloud:     e.cloud,
		RotationY: e.rotation,
		Params:    e.transition.Live(),
	})
}

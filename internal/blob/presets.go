package blob

import (
	"github.com/normanking/cortexblob/internal/bus"
	"github.com/normanking/cortexblob/internal/emotion"
)

// ExportPresets returns the whole preset table in order.
func (e *Engine) ExportPresets() emotion.Presets {
	return e.presets.Export()
}

func (e *Engine) PresetNames() []string {
	return e.presets.List()
}

func (e *Engine) Preset(name string) (emotion.Vector, error) {
	return e.presets.Get(name)
}

// SavePreset stores the live vector under name and makes it the active
// preset.
func (e *Engine) SavePreset(name string) (emotion.Vector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainLocked()
	live := e.transition.Live()
	if err := e.presets.Upsert(name, live); err != nil {
		return emotion.Vector{}, err
	}

	e.log.Info().Str("preset", name).Msg("live state saved as preset")
	e.publish(bus.EventTypePresetSaved, map[string]any{"preset": name})
	if err := e.applyLocked(name, SourceSave, e.clock.Now()); err != nil {
		return emotion.Vector{}, err
	}
	return live, nil
}

// UpsertPreset stores v under name. If name is active the blob eases to the
// new values.
func (e *Engine) UpsertPreset(name string, v emotion.Vector) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainLocked()
	if err := e.presets.Upsert(name, v); err != nil {
		return err
	}

	e.publish(bus.EventTypePresetSaved, map[string]any{"preset": name})
	if name == e.active {
		e.transition.Retarget(v, e.transition.Live())
	}
	return nil
}

// RemovePreset deletes name. Removing the active preset first switches to
// the first remaining preset in list order. The neutral preset and the last
// preset cannot be removed.
func (e *Engine) RemovePreset(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainLocked()
	if err := e.presets.CanRemove(name); err != nil {
		return err
	}

	if name == e.active {
		next, _ := e.presets.FirstOther(name)
		if err := e.applyLocked(next, SourceRemove, e.clock.Now()); err != nil {
			return err
		}
	}

	if err := e.presets.Remove(name); err != nil {
		return err
	}

	e.log.Info().Str("preset", name).Msg("preset removed")
	e.publish(bus.EventTypePresetRemoved, map[string]any{"preset": name, "active": e.active})
	return nil
}

// ReplacePresets swaps in a reloaded table. If the active preset changed it
// is re-applied; if it disappeared the blob eases back to neutral.
func (e *Engine) ReplacePresets(presets emotion.Presets) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainLocked()
	changed, err := e.presets.Replace(presets)
	if err != nil || !changed {
		return changed, err
	}

	e.log.Info().Int("count", e.presets.Len()).Msg("presets reloaded")
	e.publish(bus.EventTypePresetsLoaded, map[string]any{"count": e.presets.Len()})

	if v, err := e.presets.Get(e.active); err == nil {
		e.transition.Retarget(v, e.transition.Live())
		return true, nil
	}
	return true, e.applyLocked(e.neutral, SourceReload, e.clock.Now())
}

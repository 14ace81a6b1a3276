package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexblob/internal/emotion"
)

func TestPresetWatcherReloadsOnWrite(t *testing.T) {
	te := newTestEngine(t, 0)
	path := filepath.Join(t.TempDir(), "emotions.json")
	require.NoError(t, emotion.SavePresetFile(path, te.ExportPresets()))

	w, err := NewPresetWatcher(path, te.Engine, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	var reloads atomic.Int32
	w.OnReload(func(changed bool, err error) {
		if changed && err == nil {
			reloads.Add(1)
		}
	})

	presets := te.ExportPresets()
	presets = append(presets, emotion.Preset{Name: "Calm", Vector: emotion.DefaultVector()})
	require.NoError(t, emotion.SavePresetFile(path, presets))

	require.Eventually(t, func() bool {
		return reloads.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, te.PresetNames(), "Calm")
}

func TestPresetWatcherIgnoresBrokenFile(t *testing.T) {
	te := newTestEngine(t, 0)
	path := filepath.Join(t.TempDir(), "emotions.json")
	require.NoError(t, emotion.SavePresetFile(path, te.ExportPresets()))

	w, err := NewPresetWatcher(path, te.Engine, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	failures := make(chan error, 8)
	w.OnReload(func(_ bool, err error) {
		if err != nil {
			failures <- err
		}
	})

	before := te.PresetNames()
	require.NoError(t, os.WriteFile(path, []byte(`{"Half": {`), 0644))

	select {
	case <-failures:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a failed reload")
	}
	assert.Equal(t, before, te.PresetNames())
}

func TestPersisterWritesChanges(t *testing.T) {
	store, err := emotion.NewPresetStore(emotion.DefaultPresets())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "emotions.json")
	p := NewPersister(path, store, zerolog.Nop())

	saved := make(chan error, 8)
	p.OnSaved(func(err error) { saved <- err })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.NoError(t, store.Upsert("Calm", emotion.DefaultVector()))

	select {
	case err := <-saved:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("presets were not saved")
	}

	loaded, err := emotion.LoadPresetFile(path)
	require.NoError(t, err)
	assert.True(t, store.Export().Equal(loaded))
}

func TestPersisterFlushesOnShutdown(t *testing.T) {
	store, err := emotion.NewPresetStore(emotion.DefaultPresets())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "emotions.json")
	p := NewPersister(path, store, zerolog.Nop())
	require.NoError(t, store.Remove("Joy"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)

	loaded, err := emotion.LoadPresetFile(path)
	require.NoError(t, err)
	assert.NotContains(t, loaded.Names(), "Joy")
}

func TestPersisterRemembersOwnWrites(t *testing.T) {
	store, err := emotion.NewPresetStore(emotion.DefaultPresets())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "emotions.json")
	p := NewPersister(path, store, zerolog.Nop())
	require.NoError(t, store.Upsert("Calm", emotion.DefaultVector()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, p.Wrote(data))

	edited, err := emotion.EncodePresets(emotion.DefaultPresets())
	require.NoError(t, err)
	assert.False(t, p.Wrote(edited))
}

func TestPersistAndWatchKeepRapidUpserts(t *testing.T) {
	te := newTestEngine(t, 0)
	path := filepath.Join(t.TempDir(), "emotions.json")
	require.NoError(t, emotion.SavePresetFile(path, te.ExportPresets()))

	p := NewPersister(path, te.store, zerolog.Nop())
	w, err := NewPresetWatcher(path, te.Engine, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()
	w.SkipOwnWrites(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	names := make([]string, 40)
	for i := range names {
		names[i] = fmt.Sprintf("Custom%02d", i)
		require.NoError(t, te.UpsertPreset(names[i], emotion.DefaultVector()))
		time.Sleep(time.Millisecond)
	}

	allKept := func() bool {
		loaded, err := emotion.LoadPresetFile(path)
		if err != nil {
			return false
		}
		inStore, onDisk := te.PresetNames(), loaded.Names()
		for _, name := range names {
			if !slices.Contains(inStore, name) || !slices.Contains(onDisk, name) {
				return false
			}
		}
		return true
	}

	require.Eventually(t, allKept, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.True(t, allKept(), "saved presets must not be rolled back by the watcher")
}

func TestPresetWatcherStillAppliesOutsideEdits(t *testing.T) {
	te := newTestEngine(t, 0)
	path := filepath.Join(t.TempDir(), "emotions.json")
	require.NoError(t, emotion.SavePresetFile(path, te.ExportPresets()))

	p := NewPersister(path, te.store, zerolog.Nop())
	w, err := NewPresetWatcher(path, te.Engine, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()
	w.SkipOwnWrites(p)

	var reloads atomic.Int32
	w.OnReload(func(changed bool, err error) {
		if changed && err == nil {
			reloads.Add(1)
		}
	})

	presets := te.ExportPresets()
	presets = append(presets, emotion.Preset{Name: "Edited", Vector: emotion.DefaultVector()})
	require.NoError(t, emotion.SavePresetFile(path, presets))

	require.Eventually(t, func() bool {
		return reloads.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, te.PresetNames(), "Edited")
}

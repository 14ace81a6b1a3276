package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexblob/internal/emotion"
)

// PresetReplacer is the part of the engine a watcher reloads into.
type PresetReplacer interface {
	ReplacePresets(emotion.Presets) (bool, error)
}

// OwnWrites recognizes file contents this process wrote itself.
type OwnWrites interface {
	Wrote(data []byte) bool
}

// PresetWatcher reloads a preset file into the engine whenever it changes on
// disk. The containing directory is watched so editors that replace the file
// by rename are picked up too.
type PresetWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	target  PresetReplacer
	log     zerolog.Logger

	mu       sync.Mutex
	onReload func(changed bool, err error)
	own      OwnWrites

	done chan struct{}
	wg   sync.WaitGroup
}

func NewPresetWatcher(path string, target PresetReplacer, logger zerolog.Logger) (*PresetWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve preset path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	pw := &PresetWatcher{
		watcher: watcher,
		path:    abs,
		target:  target,
		log:     logger,
		done:    make(chan struct{}),
	}

	pw.wg.Add(1)
	go pw.watchLoop()

	return pw, nil
}

// OnReload sets a callback run after every reload attempt.
func (pw *PresetWatcher) OnReload(fn func(changed bool, err error)) {
	pw.mu.Lock()
	pw.onReload = fn
	pw.mu.Unlock()
}

// SkipOwnWrites makes the watcher ignore files that own reports as its
// own. A persister's write reflects a table the store already moved past,
// so applying it would roll back newer changes.
func (pw *PresetWatcher) SkipOwnWrites(own OwnWrites) {
	pw.mu.Lock()
	pw.own = own
	pw.mu.Unlock()
}

func (pw *PresetWatcher) watchLoop() {
	defer pw.wg.Done()

	for {
		select {
		case <-pw.done:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != pw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pw.reload()
			}
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (pw *PresetWatcher) reload() {
	pw.mu.Lock()
	own := pw.own
	pw.mu.Unlock()

	data, err := os.ReadFile(pw.path)
	if err == nil && own != nil && own.Wrote(data) {
		pw.log.Debug().Str("path", pw.path).Msg("skipping preset file written by this process")
		return
	}

	var presets emotion.Presets
	if err == nil {
		presets, err = emotion.ParsePresets(data)
	}
	changed := false
	if err == nil {
		changed, err = pw.target.ReplacePresets(presets)
	}

	if err != nil {
		// Partial writes show up as parse errors; the next write event retries.
		pw.log.Warn().Err(err).Str("path", pw.path).Msg("preset reload failed, keeping current table")
	} else if changed {
		pw.log.Info().Str("path", pw.path).Int("count", len(presets)).Msg("presets reloaded")
	}

	pw.mu.Lock()
	fn := pw.onReload
	pw.mu.Unlock()
	if fn != nil {
		fn(changed, err)
	}
}

// Close stops the watcher
func (pw *PresetWatcher) Close() error {
	close(pw.done)
	err := pw.watcher.Close()
	pw.wg.Wait()
	return err
}

package blob

import (
	"context"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexblob/internal/emotion"
)

// recentWrites is how many of its own file contents a Persister remembers.
const recentWrites = 32

// Persister writes the preset table to disk after every change. Writes
// happen on a background goroutine; bursts of changes collapse into one
// write of the latest table.
type Persister struct {
	path string
	log  zerolog.Logger

	mu      sync.Mutex
	pending emotion.Presets
	signal  chan struct{}
	saved   func(error)
	written []uint64
}

func NewPersister(path string, store *emotion.PresetStore, logger zerolog.Logger) *Persister {
	p := &Persister{
		path:   path,
		log:    logger,
		signal: make(chan struct{}, 1),
	}
	store.OnChange(p.enqueue)
	return p
}

// OnSaved sets a callback run after every write attempt.
func (p *Persister) OnSaved(fn func(error)) {
	p.mu.Lock()
	p.saved = fn
	p.mu.Unlock()
}

func (p *Persister) enqueue(presets emotion.Presets) {
	p.mu.Lock()
	p.pending = presets
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Run writes pending tables until ctx is cancelled, then flushes once more.
func (p *Persister) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case <-p.signal:
			p.flush()
		}
	}
}

func (p *Persister) flush() {
	p.mu.Lock()
	presets := p.pending
	p.pending = nil
	saved := p.saved
	p.mu.Unlock()

	if presets == nil {
		return
	}

	data, err := emotion.EncodePresets(presets)
	if err == nil {
		p.remember(data)
		err = emotion.WritePresetFile(p.path, data)
	}
	if err != nil {
		p.log.Error().Err(err).Str("path", p.path).Msg("failed to save presets")
	} else {
		p.log.Debug().Str("path", p.path).Int("count", len(presets)).Msg("presets saved")
	}
	if saved != nil {
		saved(err)
	}
}

// remember records data as written by p before it reaches the disk, so a
// watcher that sees the file change can tell it apart from an outside edit.
func (p *Persister) remember(data []byte) {
	sum := xxhash.Sum64(data)

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.written) == recentWrites {
		p.written = slices.Delete(p.written, 0, 1)
	}
	p.written = append(p.written, sum)
}

// Wrote reports whether data matches one of the recent files p wrote.
func (p *Persister) Wrote(data []byte) bool {
	sum := xxhash.Sum64(data)

	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Contains(p.written, sum)
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/normanking/cortexblob/internal/blob"
	"github.com/normanking/cortexblob/internal/bus"
	"github.com/normanking/cortexblob/internal/config"
	"github.com/normanking/cortexblob/internal/deform"
	"github.com/normanking/cortexblob/internal/emotion"
	"github.com/normanking/cortexblob/internal/logging"
)

// loadPresets reads the configured preset file. A missing file yields the
// built-in table, written out first when persistence is on so later edits
// have somewhere to go.
func loadPresets(cfg *config.Config, logger *logging.Logger) (emotion.Presets, error) {
	if cfg.Presets.File == "" {
		return emotion.DefaultPresets(), nil
	}

	presets, err := emotion.LoadPresetFile(cfg.Presets.File)
	if err == nil {
		logger.Info("presets", "Loaded preset file", map[string]any{
			"path":  cfg.Presets.File,
			"count": len(presets),
		})
		return presets, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	presets = emotion.DefaultPresets()
	if cfg.Presets.Persist {
		if err := emotion.SavePresetFile(cfg.Presets.File, presets); err != nil {
			return nil, err
		}
		logger.Info("presets", "Wrote built-in presets", map[string]any{"path": cfg.Presets.File})
	}
	return presets, nil
}

func loadRouter(cfg *config.Config) (*emotion.Router, error) {
	if cfg.Presets.Routes == "" {
		return emotion.DefaultRouter(), nil
	}
	return emotion.LoadRoutesFile(cfg.Presets.Routes)
}

// newLogger builds the application logger from the logging section.
func newLogger(cfg *config.Config, console bool) (*logging.Logger, error) {
	return logging.New(&logging.Config{
		LogDir:     cfg.Logging.Dir,
		Level:      cfg.Logging.Level,
		MaxHistory: cfg.Logging.MaxHistory,
		Console:    cfg.Logging.Console && console,
	})
}

// buildEngine wires the preset store, router, surfaces and engine described
// by cfg.
func buildEngine(cfg *config.Config, logger *logging.Logger, eventBus *bus.EventBus) (*blob.Engine, *emotion.PresetStore, error) {
	presets, err := loadPresets(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := emotion.NewPresetStore(presets)
	if err != nil {
		return nil, nil, err
	}

	router, err := loadRouter(cfg)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range router.Presets() {
		if !store.Has(name) {
			logger.Warn("presets", "Routed preset is missing from the table", map[string]any{"preset": name})
		}
	}

	easing, err := emotion.ParseEasing(cfg.Engine.Easing)
	if err != nil {
		return nil, nil, err
	}
	space, err := emotion.ParseBlendSpace(cfg.Engine.ColorSpace)
	if err != nil {
		return nil, nil, err
	}

	radius := float32(cfg.Geometry.Radius)
	mesh, err := deform.NewPolarSphere(radius, cfg.Geometry.WidthSegments, cfg.Geometry.HeightSegments)
	if err != nil {
		return nil, nil, fmt.Errorf("build sphere: %w", err)
	}
	cloud, err := deform.NewPointCloud(radius, cfg.Geometry.CloudPoints, cfg.Geometry.CloudSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("build point cloud: %w", err)
	}

	engine, err := blob.NewEngine(blob.Options{
		Presets:            store,
		Router:             router,
		Field:              deform.NewField(deform.NewNoise(cfg.Engine.NoiseSeed)),
		Mesh:               mesh,
		Cloud:              cloud,
		TransitionDuration: cfg.Engine.TransitionDuration,
		Easing:             easing,
		ColorSpace:         space,
		NeutralPreset:      cfg.Engine.NeutralPreset,
		Workers:            cfg.Engine.Workers,
		QueueSize:          cfg.Engine.QueueSize,
		Clock:              clockwork.NewRealClock(),
		Bus:                eventBus,
		Logger:             logger.Component("engine"),
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, store, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/cortexblob/internal/blob"
	"github.com/normanking/cortexblob/internal/bus"
	"github.com/normanking/cortexblob/internal/logging"
	"github.com/normanking/cortexblob/internal/server"
)

func newRunCmd(loadConfig configLoader) *cobra.Command {
	var initial string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the frame loop and the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			defer logger.Close()

			eventBus := bus.NewEventBus()
			defer eventBus.Clear()
			recordEvents(eventBus, logger)

			engine, store, err := buildEngine(cfg, logger, eventBus)
			if err != nil {
				logger.Error("main", "Failed to start engine", err, nil)
				return err
			}
			if initial != "" {
				engine.ApplyPreset(initial)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)

			var persister *blob.Persister
			if cfg.Presets.File != "" && cfg.Presets.Persist {
				persister = blob.NewPersister(cfg.Presets.File, store, logger.Component("persister"))
				g.Go(func() error {
					persister.Run(ctx)
					return nil
				})
			}

			if cfg.Presets.File != "" && cfg.Presets.Watch {
				watcher, err := blob.NewPresetWatcher(cfg.Presets.File, engine, logger.Component("preset-watcher"))
				if err != nil {
					logger.Warn("main", "Preset watcher disabled", map[string]any{"error": err.Error()})
				} else {
					if persister != nil {
						watcher.SkipOwnWrites(persister)
					}
					defer watcher.Close()
				}
			}

			var onFrame func(blob.Frame)
			if cfg.Server.Enabled {
				srv := server.New(cfg.Server, engine, logger)
				onFrame = srv.OnFrame
				g.Go(func() error {
					return srv.Start(ctx)
				})
			}

			logger.Info("main", "Engine running", map[string]any{
				"fps":     cfg.Engine.FPS,
				"presets": store.Len(),
				"neutral": cfg.Engine.NeutralPreset,
				"logFile": logger.GetLogPath(),
			})

			g.Go(func() error {
				return engine.Run(ctx, cfg.FrameInterval(), onFrame)
			})

			if err := g.Wait(); err != nil {
				logger.Error("main", "Stopped with error", err, nil)
				return err
			}
			logger.Info("main", "Shutting down", nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&initial, "preset", "", "preset to ease into after startup")
	return cmd
}

// recordEvents copies the events an operator cares about into the log
// history served by the API.
func recordEvents(eventBus *bus.EventBus, logger *logging.Logger) {
	eventBus.Subscribe(bus.EventTypePresetMissing, func(e bus.Event) {
		logger.Warn("engine", "Unknown preset requested", e.Data)
	})
	eventBus.SubscribeMultiple([]bus.EventType{
		bus.EventTypeSessionStarted,
		bus.EventTypeSessionEnded,
		bus.EventTypePresetsLoaded,
		bus.EventTypePresetRemoved,
	}, func(e bus.Event) {
		logger.Info("engine", string(e.Type), e.Data)
	})
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexblob/internal/bus"
)

func newSnapshotCmd(loadConfig configLoader) *cobra.Command {
	var (
		preset string
		at     time.Duration
		out    string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render one preset at a point in time to a GLB file",
		Long: `Jump straight to a preset, displace both surfaces at the given animation
time and write them as a binary glTF scene. The visible surface follows the
preset's point mode.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Presets.Persist = false

			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer logger.Close()

			engine, _, err := buildEngine(cfg, logger, bus.NewEventBus())
			if err != nil {
				return err
			}
			if preset == "" {
				preset = cfg.Engine.NeutralPreset
			}
			if err := engine.Jump(preset); err != nil {
				return err
			}

			frame, err := engine.Step(cmd.Context(), at.Seconds())
			if err != nil {
				return err
			}
			if err := engine.ExportGLB(out); err != nil {
				return fmt.Errorf("export %s: %w", out, err)
			}

			lo, hi := engine.Bounds()
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, t=%.3fs, %s)\n", out, frame.Preset, frame.Time, frame.Visible)
			fmt.Fprintf(cmd.OutOrStdout(), "bounds [%.3f %.3f %.3f] .. [%.3f %.3f %.3f]\n",
				lo[0], lo[1], lo[2], hi[0], hi[1], hi[2])
			return nil
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "preset to render (default the neutral preset)")
	cmd.Flags().DurationVarP(&at, "time", "t", time.Second, "animation time")
	cmd.Flags().StringVarP(&out, "out", "o", "blob.glb", "output file")
	return cmd
}

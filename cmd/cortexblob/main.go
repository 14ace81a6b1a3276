// Package main provides the cortexblob command line entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexblob/internal/config"
)

// Version information (set at build time)
var version = "dev"

// configLoader reads the config named by the --config flag once flags are
// parsed.
type configLoader func() (*config.Config, error)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "cortexblob",
		Short: "Emotion-driven deforming blob engine",
		Long: `cortexblob renders an emotional state as a deforming sphere.

Presets describe one visual state each. Sentiment labels are routed onto
presets, the live state eases between them, and sessions record how long
each emotion was shown.`,
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.cortexblob/config.yaml)")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(
		newRunCmd(loadConfig),
		newPresetsCmd(loadConfig),
		newSnapshotCmd(loadConfig),
		newConfigCmd(loadConfig),
	)
	return rootCmd
}

package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexblob/internal/emotion"
	"github.com/normanking/cortexblob/internal/logging"
)

func newPresetsCmd(loadConfig configLoader) *cobra.Command {
	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "Inspect the preset table and sentiment routing",
	}

	// list command - print every preset in table order
	var fields []string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List presets in table order",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range fields {
				if !slices.Contains(emotion.NumericFieldNames(), name) {
					return fmt.Errorf("unknown field %q (numeric fields: %s)",
						name, strings.Join(emotion.NumericFieldNames(), ", "))
				}
			}

			presets, err := readPresets(loadConfig)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := "NAME\tMODIFIER\tCOLOR\tPOINTS"
			for _, name := range fields {
				header += "\t" + strings.ToUpper(name)
			}
			fmt.Fprintln(w, header)

			for _, p := range presets {
				row := fmt.Sprintf("%s\t%s\t%s\t%t", p.Name, p.Vector.Modifier, p.Vector.Color.Hex(), p.Vector.PointMode)
				for _, name := range fields {
					val, _ := p.Vector.Numeric(name)
					row += fmt.Sprintf("\t%.3g", val)
				}
				fmt.Fprintln(w, row)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringSliceVar(&fields, "field", []string{"amplitude"}, "numeric fields to show")

	// export command - write the table as JSON
	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the preset table as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			presets, err := readPresets(loadConfig)
			if err != nil {
				return err
			}
			if out != "" {
				if err := emotion.SavePresetFile(out, presets); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d presets to %s\n", len(presets), out)
				return nil
			}

			data, err := json.MarshalIndent(presets, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	// route command - show where sentiment labels go
	routeCmd := &cobra.Command{
		Use:   "route [label...]",
		Short: "Show which preset each sentiment label routes to",
		Long:  "Resolve the given labels, or print the whole routing table when none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			router, err := loadRouter(cfg)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				for _, route := range router.Routes() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", route.Preset, strings.Join(route.Synonyms, ", "))
				}
				return nil
			}

			for _, label := range args {
				preset, err := router.Resolve(label)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t-\n", label)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", label, preset)
			}
			return nil
		},
	}

	presetsCmd.AddCommand(listCmd, exportCmd, routeCmd)
	return presetsCmd
}

// readPresets loads the configured table without writing anything back.
func readPresets(loadConfig configLoader) (emotion.Presets, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Presets.Persist = false

	logger, err := logging.New(&logging.Config{Level: "error"})
	if err != nil {
		return nil, err
	}
	return loadPresets(cfg, logger)
}

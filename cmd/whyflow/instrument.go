package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/viant/whyflow/engine"
)

var instrumentCmd = &cobra.Command{
	Use:   "instrument",
	Short: "Write a traced copy of the project",
	Long:  `Instrument every JavaScript and TypeScript source into <output>/instrumented. Run the copy to append trace events to the trace log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := engine.New(cfg, engine.WithLogger(logger))
		if err != nil {
			return err
		}
		report, err := e.Instrument(cmd.Context())
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("%s %d files, copied %d\n", green("Instrumented"), len(report.Instrumented), len(report.Copied))
		for _, failure := range report.Errors {
			fmt.Printf("  %s %v\n", red("✗"), failure)
		}
		fmt.Printf("Output: %s\n", filepath.Join(cfg.OutputDir(), engine.InstrumentedDir))
		fmt.Printf("Trace log: %s\n", cfg.TraceLog())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(instrumentCmd)
}

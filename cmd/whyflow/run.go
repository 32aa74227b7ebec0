package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/viant/whyflow/instrumenter"
	"github.com/viant/whyflow/jsrun"
	"github.com/viant/whyflow/trace"
)

var runCall string

var runCmd = &cobra.Command{
	Use:   "run <script.js>",
	Short: "Instrument and execute a plain script in the embedded runtime",
	Long:  `Instrument a script in memory and evaluate it in the embedded runtime, appending its trace to the trace log. Optionally call a global function afterwards.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		location, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		src, err := os.ReadFile(location)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(cfg.Project.Root, location)
		if err != nil {
			rel = filepath.Base(location)
		}
		rel = filepath.ToSlash(rel)
		instrumented, err := instrumenter.New(instrumenter.WithLogPath(cfg.TraceLog()), instrumenter.WithLogger(logger)).Instrument(ctx, rel, src)
		if err != nil {
			return err
		}
		writer := trace.NewWriter(cfg.TraceLog())
		defer writer.Close()
		runner := jsrun.New(trace.NewContext(trace.WithWriter(writer)), jsrun.WithLogger(logger))
		result, err := runner.Run(ctx, rel, instrumented)
		if err == nil && runCall != "" {
			result, err = runner.Call(ctx, runCall)
		}
		if err != nil {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("FAIL"), err)
			fmt.Printf("Trace log: %s\n", writer.Path())
			return nil
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %v\n", green("OK"), result)
		fmt.Printf("Trace log: %s\n", writer.Path())
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runCall, "call", "", "Global function to call after evaluation")
	rootCmd.AddCommand(runCmd)
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/viant/whyflow/engine"
)

var serveMode string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Map the project, observe execution and broadcast live events",
	Long: `Build the map, start the broadcast hub and observe the project in one mode:
instrument follows the trace log of the instrumented copy and explains failures,
attach connects to a process started with --inspect and samples coverage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveMode != "" {
			_ = os.Setenv("WHYFLOW_MODE", serveMode)
		}
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := engine.New(cfg, engine.WithLogger(logger))
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err = e.Start(ctx); err != nil {
			return err
		}
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("%s mode=%s hub=ws://%s\n", cyan("whyflow serving"), cfg.Mode, e.Addr())
		<-ctx.Done()
		e.Stop()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveMode, "mode", "", "Observation mode: instrument or attach")
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/viant/whyflow/config"
)

var (
	configPath string
	rootDir    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "whyflow",
	Short:         "Map a JavaScript project's call graph and explain why a run diverged from it",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Project root (overrides project.root)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig reads the configuration, applies command line overrides and installs the logger
func loadConfig() (*config.Config, *slog.Logger, error) {
	if rootDir != "" {
		_ = os.Setenv("WHYFLOW_PROJECT_ROOT", rootDir)
	}
	if logLevel != "" {
		_ = os.Setenv("WHYFLOW_LOG_LEVEL", logLevel)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	yellow := color.New(color.FgYellow).SprintFunc()
	for _, warning := range cfg.Validate() {
		fmt.Fprintf(os.Stderr, "%s %s\n", yellow("Warning:"), warning)
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}

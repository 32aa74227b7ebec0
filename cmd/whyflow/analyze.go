package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/viant/whyflow/engine"
	"gopkg.in/yaml.v3"
)

var analyzeYAML bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Build the static call graph and write graph.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := engine.New(cfg, engine.WithLogger(logger))
		if err != nil {
			return err
		}
		projectMap, err := e.Build(cmd.Context())
		if err != nil {
			return err
		}
		if analyzeYAML {
			encoder := yaml.NewEncoder(os.Stdout)
			encoder.SetIndent(2)
			defer encoder.Close()
			return encoder.Encode(projectMap)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %d functions, %d calls\n", green("Mapped"), len(projectMap.Nodes), len(projectMap.Edges))
		fmt.Printf("Graph written to %s\n", e.MapURL())
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeYAML, "yaml", false, "Print the map as YAML")
	rootCmd.AddCommand(analyzeCmd)
}

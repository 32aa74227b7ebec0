package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"github.com/viant/whyflow/correlator"
	"github.com/viant/whyflow/inspector/graph"
	"github.com/viant/whyflow/trace"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the mapped graph, the trace log and the last explanation",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		fs := afs.New()
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== WhyFlow Status ==="))

		fmt.Printf("%s\n", yellow("Static map:"))
		projectMap, err := graph.ReadMap(ctx, fs, filepath.Join(cfg.OutputDir(), graph.MapFile))
		if err != nil {
			return err
		}
		if projectMap.Empty() {
			fmt.Printf("  %s\n", gray("nothing mapped yet, run whyflow analyze"))
		} else {
			fmt.Printf("  %s %d functions in %d files, %d calls\n", green("●"), len(projectMap.Nodes), len(projectMap.Files()), len(projectMap.Edges))
		}

		fmt.Printf("%s\n", yellow("Trace log:"))
		events, err := trace.NewFollower(cfg.TraceLog()).Poll()
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Printf("  %s\n", gray("nothing observed yet"))
		} else {
			stack := trace.NewCallStack()
			failures := 0
			for _, event := range events {
				if event.Status == trace.StatusFail {
					failures++
				}
				if stack.Apply(event) != nil {
					stack = trace.NewCallStack()
				}
			}
			fmt.Printf("  %s %d events, %d failures, %d observed calls\n", green("●"), len(events), failures, len(stack.Edges()))
			last := events[len(events)-1]
			marker := green(last.Status)
			if last.Status == trace.StatusFail {
				marker = red(last.Status)
			}
			fmt.Printf("  last: %s %s\n", marker, last.ID)
		}

		fmt.Printf("%s\n", yellow("Last explanation:"))
		artifactURL := filepath.Join(cfg.OutputDir(), correlator.ArtifactFile)
		if ok, _ := fs.Exists(ctx, artifactURL); !ok {
			fmt.Printf("  %s\n\n", gray("no failure explained yet"))
			return nil
		}
		explanation, err := correlator.ReadExplanation(ctx, fs, artifactURL)
		if err != nil {
			return err
		}
		fmt.Printf("  %s %s\n  %s\n\n", red("✗"), explanation.ID, explanation.Explanation)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

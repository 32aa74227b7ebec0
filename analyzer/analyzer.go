package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/whyflow/inspector/graph"
	"github.com/viant/whyflow/inspector/javascript"
)

// NoDescription is recorded when a describer could not produce a description
const NoDescription = "No description available."

// Analyzer builds the static project map: one node per function-like declaration
// and a best effort calls edge per call site
type Analyzer struct {
	fs          afs.Service
	parser      *javascript.Parser
	match       MatcherFn
	excluded    map[string]bool // directories relative to the root
	resolver    Resolver
	describer   Describer
	exporter    Exporter
	concurrency int
	project     string
	logger      *slog.Logger

	mux         sync.Mutex
	diagnostics []*AnalysisError
}

// Analyze walks root and returns the project map. Files failing to parse are skipped
// and reported by Diagnostics.
func (a *Analyzer) Analyze(ctx context.Context, root string) (*graph.ProjectMap, error) {
	root = NormalizeRoot(root)
	a.resetDiagnostics()
	files, err := a.sourceFiles(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources under %s: %w", root, err)
	}
	sources, err := a.parseAll(ctx, root, files)
	if err != nil {
		return nil, err
	}
	name := a.project
	if name == "" {
		name = path.Base(root)
	}
	project := graph.NewProjectMap(name)
	for _, source := range sources {
		if source != nil {
			a.collect(ctx, project, source)
		}
	}
	for _, source := range sources {
		if source != nil {
			a.link(project, source)
		}
	}
	a.logger.Debug("analyzed project", "root", root, "files", len(files), "nodes", len(project.Nodes), "edges", len(project.Edges), "skipped", len(a.Diagnostics()))
	if a.exporter != nil {
		if err := a.exporter.Export(ctx, project); err != nil {
			return project, fmt.Errorf("failed to export project map: %w", err)
		}
	}
	return project, nil
}

// Diagnostics returns file scoped errors of the last analysis
func (a *Analyzer) Diagnostics() []*AnalysisError {
	a.mux.Lock()
	defer a.mux.Unlock()
	return append([]*AnalysisError(nil), a.diagnostics...)
}

func (a *Analyzer) resetDiagnostics() {
	a.mux.Lock()
	a.diagnostics = nil
	a.mux.Unlock()
}

func (a *Analyzer) report(file string, err error) {
	a.logger.Warn("skipping source", "file", file, "error", err)
	a.mux.Lock()
	a.diagnostics = append(a.diagnostics, &AnalysisError{File: file, Err: err})
	a.mux.Unlock()
}

// New creates an analyzer
func New(options ...Option) *Analyzer {
	ret := &Analyzer{
		fs:          afs.New(),
		parser:      javascript.NewParser(),
		match:       SourceFiles,
		excluded:    map[string]bool{},
		resolver:    NameResolver{},
		concurrency: runtime.NumCPU(),
		logger:      slog.Default(),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

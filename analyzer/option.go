package analyzer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/whyflow/inspector/javascript"
)

// Option configures an Analyzer
type Option func(*Analyzer)

// MatcherFn decides whether a walked file or directory takes part in the analysis
type MatcherFn func(info os.FileInfo) bool

// Describer produces a one sentence description of a function
type Describer interface {
	Describe(ctx context.Context, name, code string) (string, error)
}

// skipped directories: dependencies, build output and tracer artifacts
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".next":        true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
	"whyflow-data": true,
}

// SourceFiles matches JavaScript and TypeScript sources and skips dependency and build directories
func SourceFiles(info os.FileInfo) bool {
	if info.IsDir() {
		return !skipDirs[info.Name()]
	}
	name := info.Name()
	if strings.HasSuffix(name, ".min.js") {
		return false
	}
	return javascript.IsSource(name)
}

// WithMatcher sets the file matcher
func WithMatcher(matcher MatcherFn) Option {
	return func(a *Analyzer) {
		a.match = matcher
	}
}

// WithExclusion skips directories given relative to the analyzed root
func WithExclusion(dirs ...string) Option {
	return func(a *Analyzer) {
		for _, dir := range dirs {
			dir = strings.Trim(filepath.ToSlash(filepath.Clean(dir)), "/")
			if dir != "" && dir != "." && !strings.HasPrefix(dir, "..") {
				a.excluded[dir] = true
			}
		}
	}
}

// WithResolver replaces the name based call resolver
func WithResolver(resolver Resolver) Option {
	return func(a *Analyzer) {
		a.resolver = resolver
	}
}

// WithDescriber attaches generated descriptions to nodes lacking a doc comment
func WithDescriber(describer Describer) Option {
	return func(a *Analyzer) {
		a.describer = describer
	}
}

// WithConcurrency limits the number of files parsed in parallel
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithProject sets the project name recorded in the map
func WithProject(name string) Option {
	return func(a *Analyzer) {
		a.project = name
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithExporter registers an Exporter receiving the map after each analysis
func WithExporter(exporter Exporter) Option {
	return func(a *Analyzer) {
		a.exporter = exporter
	}
}

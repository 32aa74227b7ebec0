package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/whyflow/analyzer"
	"github.com/viant/whyflow/config"
	"github.com/viant/whyflow/correlator"
	"github.com/viant/whyflow/explain"
	"github.com/viant/whyflow/hub"
	"github.com/viant/whyflow/inspector/graph"
	"github.com/viant/whyflow/inspector/repository"
	"github.com/viant/whyflow/instrumenter"
	"github.com/viant/whyflow/trace"
	"github.com/viant/whyflow/watcher"
)

// InstrumentedDir is the output sub directory holding the instrumented copy
const InstrumentedDir = "instrumented"

// Option configures an Engine
type Option func(e *Engine)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithExplainer sets the explanation service; it is also used as describer when it implements one
func WithExplainer(explainer explain.Explainer) Option {
	return func(e *Engine) {
		e.explainer = explainer
	}
}

// WithObserver replaces the observer selected by mode
func WithObserver(observer trace.Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// Engine wires analysis, observation, broadcast and correlation for one project
type Engine struct {
	config       *config.Config
	fs           afs.Service
	analyzer     *analyzer.Analyzer
	exporter     analyzer.Exporter
	instrumenter *instrumenter.Instrumenter
	hub          *hub.Hub
	explainer    explain.Explainer
	observer     trace.Observer
	correlator   *correlator.Correlator
	logger       *slog.Logger

	mux         sync.Mutex
	fingerprint uint64
	addr        string
	cancel      context.CancelFunc
	done        chan struct{}
	stopped     bool
}

// Hub returns the broadcast hub
func (e *Engine) Hub() *hub.Hub {
	return e.hub
}

// Addr returns the bound hub address once started
func (e *Engine) Addr() string {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.addr
}

// Correlator returns the failure correlator, nil in attach mode
func (e *Engine) Correlator() *correlator.Correlator {
	return e.correlator
}

// MapURL returns the static map artifact location
func (e *Engine) MapURL() string {
	return filepath.Join(e.config.OutputDir(), graph.MapFile)
}

// Build analyzes the project, writes the map artifact and publishes the map to the hub
func (e *Engine) Build(ctx context.Context) (*graph.ProjectMap, error) {
	fingerprint, err := e.analyzer.Fingerprint(ctx, e.config.Project.Root)
	if err != nil {
		return nil, err
	}
	projectMap, err := e.analyzer.Analyze(ctx, e.config.Project.Root)
	if err != nil {
		return nil, err
	}
	if err = e.exporter.Export(ctx, projectMap); err != nil {
		return nil, err
	}
	e.hub.SetProjectMap(projectMap)
	e.mux.Lock()
	e.fingerprint = fingerprint
	e.mux.Unlock()
	e.logger.Info("project mapped", "nodes", len(projectMap.Nodes), "edges", len(projectMap.Edges), "diagnostics", len(e.analyzer.Diagnostics()))
	return projectMap, nil
}

// Refresh re-analyzes when sources changed and merges the result into the published map
func (e *Engine) Refresh(ctx context.Context) (bool, error) {
	fingerprint, err := e.analyzer.Fingerprint(ctx, e.config.Project.Root)
	if err != nil {
		return false, err
	}
	e.mux.Lock()
	changed := fingerprint != e.fingerprint
	e.mux.Unlock()
	if !changed {
		return false, nil
	}
	projectMap, err := e.analyzer.Analyze(ctx, e.config.Project.Root)
	if err != nil {
		return false, err
	}
	merged := e.hub.ProjectMap().Merge(projectMap)
	if err = e.exporter.Export(ctx, merged); err != nil {
		return false, err
	}
	e.hub.SetProjectMap(merged)
	e.mux.Lock()
	e.fingerprint = fingerprint
	e.mux.Unlock()
	e.logger.Info("project map refreshed", "nodes", len(merged.Nodes), "edges", len(merged.Edges))
	return true, nil
}

// Instrument writes the instrumented copy of the project
func (e *Engine) Instrument(ctx context.Context) (*instrumenter.Report, error) {
	outDir := filepath.Join(e.config.OutputDir(), InstrumentedDir)
	report, err := e.instrumenter.InstrumentProject(ctx, e.config.Project.Root, outDir)
	if err != nil {
		return nil, err
	}
	e.logger.Info("project instrumented", "output", outDir, "instrumented", len(report.Instrumented), "copied", len(report.Copied), "errors", len(report.Errors))
	return report, nil
}

// Start builds the map, binds the hub and starts the observer of the configured mode.
// Only a hub bind failure or an unusable configuration is fatal; observer failures are logged.
func (e *Engine) Start(ctx context.Context) error {
	e.mux.Lock()
	if e.done != nil {
		e.mux.Unlock()
		return fmt.Errorf("engine already started")
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.mux.Unlock()
	go e.refreshLoop(ctx, e.done)

	if _, err := e.Build(ctx); err != nil {
		e.logger.Error("failed to map project", "root", e.config.Project.Root, "error", err)
	}
	addr, err := e.hub.Start(ctx, e.config.Hub.Addr)
	if err != nil {
		e.Stop()
		return err
	}
	e.mux.Lock()
	e.addr = addr
	e.mux.Unlock()

	switch e.config.Mode {
	case config.ModeInstrument:
		if e.observer == nil {
			if _, err = e.Instrument(ctx); err != nil {
				e.logger.Error("failed to instrument project", "error", err)
			}
			follower := trace.NewFollower(e.config.TraceLog(), trace.WithInterval(e.config.Trace.PollInterval), trace.WithLogger(e.logger), trace.WithTail())
			follower.Subscribe(e.correlator.Handle)
			e.observer = follower
		}
		if err = e.correlator.Start(ctx); err != nil {
			e.Stop()
			return err
		}
	case config.ModeAttach:
		if e.observer == nil {
			e.observer = watcher.New(&e.config.Watcher, watcher.WithProjectMap(e.hub.ProjectMap), watcher.WithLogger(e.logger))
		}
	default:
		e.Stop()
		return fmt.Errorf("unsupported mode %q", e.config.Mode)
	}
	if err = e.observer.Start(ctx, e.hub.Publish); err != nil {
		var attachErr *watcher.AttachError
		if errors.As(err, &attachErr) {
			e.logger.Error("live watcher stopped", "endpoint", attachErr.Endpoint, "error", attachErr.Err)
		} else {
			e.logger.Error("observer failed to start", "error", err)
		}
	}
	return nil
}

func (e *Engine) refreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	interval := e.config.Analyzer.RefreshInterval
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := e.Refresh(ctx); err != nil {
			e.logger.Warn("failed to refresh project map", "error", err)
		}
	}
}

// Stop stops the observer, the correlator and the hub; safe to call multiple times
func (e *Engine) Stop() {
	e.mux.Lock()
	if e.stopped {
		e.mux.Unlock()
		return
	}
	e.stopped = true
	cancel := e.cancel
	e.mux.Unlock()
	if e.observer != nil {
		e.observer.Stop()
	}
	if e.correlator != nil {
		e.correlator.Stop()
	}
	if err := e.hub.Close(); err != nil {
		e.logger.Warn("failed to close hub", "error", err)
	}
	if cancel != nil {
		cancel()
		<-e.done
	}
}

// outputRel returns the output directory relative to the project root, or empty when it lies outside
func outputRel(cfg *config.Config) string {
	rel, err := filepath.Rel(cfg.Project.Root, cfg.OutputDir())
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

// New creates an engine for cfg
func New(cfg *config.Config, options ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config was nil")
	}
	ret := &Engine{config: cfg, fs: afs.New(), logger: slog.Default()}
	for _, opt := range options {
		opt(ret)
	}
	if ret.explainer == nil && cfg.ExplainEnabled() {
		client, err := newClient(cfg.LLM)
		if err != nil {
			return nil, err
		}
		ret.explainer = client
	}
	project := filepath.Base(cfg.Project.Root)
	if info, err := repository.New().DetectProject(context.Background(), cfg.Project.Root); err == nil {
		project = info.Name
	}
	analyzerOptions := []analyzer.Option{
		analyzer.WithProject(project),
		analyzer.WithConcurrency(cfg.Analyzer.Concurrency),
		analyzer.WithLogger(ret.logger),
	}
	if output := outputRel(cfg); output != "" {
		analyzerOptions = append(analyzerOptions, analyzer.WithExclusion(output))
		noise := cfg.Watcher.Noise
		if noise == nil {
			noise = watcher.DefaultNoise
		}
		if !slices.Contains(noise, output) {
			cfg.Watcher.Noise = append(slices.Clone(noise), output)
		}
	}
	if describer, ok := ret.explainer.(analyzer.Describer); ok && cfg.Analyzer.Describe {
		analyzerOptions = append(analyzerOptions, analyzer.WithDescriber(describer))
	}
	ret.analyzer = analyzer.New(analyzerOptions...)
	ret.exporter = analyzer.NewFileExporter(ret.fs, ret.MapURL())
	ret.instrumenter = instrumenter.New(instrumenter.WithLogPath(cfg.TraceLog()), instrumenter.WithLogger(ret.logger))
	ret.hub = hub.New(hub.WithSettleDelay(cfg.Hub.SettleDelay), hub.WithLogger(ret.logger))
	if cfg.Mode == config.ModeInstrument {
		ret.correlator = correlator.New(ret.hub.ProjectMap, ret.explainer,
			filepath.Join(cfg.OutputDir(), correlator.ArtifactFile),
			correlator.WithFs(ret.fs),
			correlator.WithLogger(ret.logger),
			correlator.WithTimeout(cfg.LLM.Timeout),
			correlator.WithRate(cfg.LLM.Interval, 1))
	}
	return ret, nil
}

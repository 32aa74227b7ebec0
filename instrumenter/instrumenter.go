package instrumenter

import (
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/whyflow/analyzer"
	"github.com/viant/whyflow/inspector/javascript"
)

// DefaultLogPath is the trace log used when WHYFLOW_TRACE_LOG is not set in the traced process
const DefaultLogPath = "whyflow-data/trace.log"

// Sink is the single entry point instrumented code reports through
const Sink = "__whyflow_trace__"

// Instrumenter rewrites sources so that every function-like body reports START, END and FAIL events
type Instrumenter struct {
	fs      afs.Service
	parser  *javascript.Parser
	match   analyzer.MatcherFn
	logPath string
	logger  *slog.Logger
}

// Option configures an Instrumenter
type Option func(*Instrumenter)

// WithLogPath sets the default trace log path baked into the sink prelude
func WithLogPath(path string) Option {
	return func(i *Instrumenter) {
		if path != "" {
			i.logPath = path
		}
	}
}

// WithMatcher sets the project walk matcher
func WithMatcher(matcher analyzer.MatcherFn) Option {
	return func(i *Instrumenter) {
		i.match = matcher
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(i *Instrumenter) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates an instrumenter
func New(options ...Option) *Instrumenter {
	ret := &Instrumenter{
		fs:      afs.New(),
		parser:  javascript.NewParser(),
		match:   analyzer.SourceFiles,
		logPath: DefaultLogPath,
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

package correlator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/whyflow/explain"
	"github.com/viant/whyflow/inspector/graph"
	"github.com/viant/whyflow/trace"
	"golang.org/x/time/rate"
)

// ArtifactFile is the file name of the explanation artifact
const ArtifactFile = "explanation.json"

// maxTraceEvents bounds the runtime trace passed to the explainer
const maxTraceEvents = 20

// Option represents correlator option
type Option func(c *Correlator)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Correlator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the per explanation timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Correlator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRate limits explanation requests
func WithRate(interval time.Duration, burst int) Option {
	return func(c *Correlator) {
		if interval > 0 {
			c.limiter = rate.NewLimiter(rate.Every(interval), max(burst, 1))
		}
	}
}

// WithFs sets the storage service used to write the artifact
func WithFs(fs afs.Service) Option {
	return func(c *Correlator) {
		c.fs = fs
	}
}

// WithListener registers a callback invoked with each completed report
func WithListener(fn func(report *Report)) Option {
	return func(c *Correlator) {
		c.listeners = append(c.listeners, fn)
	}
}

// Correlator turns failures observed in the trace log into explanations
type Correlator struct {
	projectMap func() *graph.ProjectMap
	explainer  explain.Explainer
	fs         afs.Service
	URL        string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
	listeners  []func(report *Report)

	mux     sync.Mutex
	stack   *trace.CallStack
	run     []*trace.Event
	last    *Report
	pending chan *job
	cancel  context.CancelFunc
	done    chan struct{}
}

type job struct {
	failure *trace.Event
	run     []*trace.Event
}

// Handle consumes a batch of trace events; a batch whose last record is FAIL schedules a correlation
func (c *Correlator) Handle(events []*trace.Event) {
	if len(events) == 0 {
		return
	}
	c.mux.Lock()
	for _, event := range events {
		c.apply(event)
	}
	last := events[len(events)-1]
	var scheduled *job
	if last.Status == trace.StatusFail {
		scheduled = &job{failure: last, run: append([]*trace.Event(nil), c.run...)}
	}
	c.mux.Unlock()
	if scheduled != nil {
		c.schedule(scheduled)
	}
}

// apply tracks the current top level run; a START on an empty stack opens a new run
func (c *Correlator) apply(event *trace.Event) {
	if event.Status == trace.StatusStart && c.stack.Balanced() {
		c.run = nil
	}
	c.run = append(c.run, event)
	if err := c.stack.Apply(event); err != nil {
		c.logger.Warn("trace out of order, resetting run", "id", event.ID, "error", err)
		c.stack = trace.NewCallStack()
	}
}

// schedule replaces any pending job with the latest one
func (c *Correlator) schedule(j *job) {
	for {
		select {
		case c.pending <- j:
			return
		default:
		}
		select {
		case <-c.pending:
		default:
		}
	}
}

// Start starts the explanation worker
func (c *Correlator) Start(ctx context.Context) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("correlator already started")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.work(ctx, c.done)
	return nil
}

func (c *Correlator) work(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-c.pending:
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return
				}
			}
			if _, err := c.Correlate(ctx, j.failure, j.run); err != nil {
				c.logger.Error("failed to correlate failure", "id", j.failure.ID, "error", err)
			}
		}
	}
}

// Stop stops the worker; it is safe to call more than once
func (c *Correlator) Stop() {
	c.mux.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mux.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Correlate compares the run ending in failure with the static map, explains it and writes the artifact
func (c *Correlator) Correlate(ctx context.Context, failure *trace.Event, run []*trace.Event) (*Report, error) {
	projectMap := c.projectMap()
	if projectMap == nil {
		projectMap = graph.NewProjectMap("")
	}
	start := failure.ID
	if len(run) > 0 {
		start = run[0].ID
	}
	var actual []string
	for _, event := range run {
		if event.Status == trace.StatusStart {
			actual = append(actual, event.ID)
		}
	}
	comparison := Compare(projectMap, start, actual, failure.ID)
	report := &Report{
		ID:         failure.ID,
		Error:      failure.Error,
		Node:       projectMap.Node(failure.ID),
		Comparison: comparison,
		Model:      comparison.Model(projectMap),
		CreatedAt:  time.Now().UTC(),
	}
	staticContext, runtimeTrace, err := c.prompt(report, failure, run)
	if err != nil {
		return nil, err
	}
	explainCtx, cancel := context.WithTimeout(ctx, c.timeout)
	report.Explanation, _ = c.explainer.Explain(explainCtx, staticContext, runtimeTrace)
	cancel()
	if err = c.write(ctx, report); err != nil {
		return report, err
	}
	c.mux.Lock()
	c.last = report
	c.mux.Unlock()
	for _, listener := range c.listeners {
		listener(report)
	}
	c.logger.Info("failure explained", "id", report.ID, "missing", len(comparison.Missing), "unexpected", len(comparison.Unexpected))
	return report, nil
}

func (c *Correlator) prompt(report *Report, failure *trace.Event, run []*trace.Event) (string, string, error) {
	static, err := json.MarshalIndent(struct {
		Node  *graph.Node       `json:"node"`
		Model *ExplanationModel `json:"model"`
	}{report.Node, report.Model}, "", "  ")
	if err != nil {
		return "", "", err
	}
	events := run
	if len(events) == 0 {
		events = []*trace.Event{failure}
	}
	if len(events) > maxTraceEvents {
		events = events[len(events)-maxTraceEvents:]
	}
	runtime, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", "", err
	}
	return string(static), string(runtime), nil
}

// Last returns the most recent report
func (c *Correlator) Last() *Report {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.last
}

// New creates a correlator writing explanations to URL
func New(projectMap func() *graph.ProjectMap, explainer explain.Explainer, URL string, options ...Option) *Correlator {
	ret := &Correlator{
		projectMap: projectMap,
		URL:        URL,
		timeout:    30 * time.Second,
		logger:     slog.Default(),
		stack:      trace.NewCallStack(),
		pending:    make(chan *job, 1),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	if ret.projectMap == nil {
		ret.projectMap = func() *graph.ProjectMap { return nil }
	}
	ret.explainer = explain.WithFallback(explainer, ret.logger)
	return ret
}

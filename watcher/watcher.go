package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/viant/afs"
	"github.com/viant/whyflow/inspector/graph"
	"github.com/viant/whyflow/trace"
)

// Watcher attaches to a running process over its debugger protocol and synthesizes CALL
// events from precise coverage counters, without modifying the program
type Watcher struct {
	config     *Config
	fs         afs.Service
	client     *http.Client
	dialer     *websocket.Dialer
	projectMap func() *graph.ProjectMap
	logger     *slog.Logger
	now        func() time.Time

	nextID   atomic.Int64
	mux      sync.Mutex
	conn     *websocket.Conn
	cancel   context.CancelFunc
	haltOnce sync.Once
	wg       sync.WaitGroup
	done     chan struct{}
	lines    map[string][]int
	linesMap *graph.ProjectMap // map the cached lines were read against
}

// Option configures a Watcher
type Option func(*Watcher)

// WithProjectMap sets the provider of the current static map used to resolve node ids
func WithProjectMap(provider func() *graph.ProjectMap) Option {
	return func(w *Watcher) {
		w.projectMap = provider
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithHTTPClient sets the client used for target discovery
func WithHTTPClient(client *http.Client) Option {
	return func(w *Watcher) {
		w.client = client
	}
}

// Start attaches to the first non self target and starts coverage polling. Discovery and
// connection failures are returned as AttachError; there is no retry.
func (w *Watcher) Start(ctx context.Context, emit func(trace.LiveEvent)) error {
	w.mux.Lock()
	if w.done != nil {
		w.mux.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.done = make(chan struct{})
	w.mux.Unlock()

	endpoint := fmt.Sprintf("http://%s:%d/json/list", w.config.Host, w.config.Port)
	target, err := w.resolveTarget(ctx, endpoint)
	if err != nil {
		w.halt()
		return &AttachError{Endpoint: endpoint, Err: err}
	}
	conn, _, err := w.dialer.DialContext(ctx, target.WebSocketDebuggerURL, nil)
	if err != nil {
		w.halt()
		return &AttachError{Endpoint: target.WebSocketDebuggerURL, Err: err}
	}
	ctx, cancel := context.WithCancel(ctx)
	w.mux.Lock()
	w.conn, w.cancel = conn, cancel
	w.mux.Unlock()

	handshake := []*Request{
		{Method: MethodProfilerEnable},
		{Method: MethodDebuggerEnable},
		{Method: MethodDebuggerResume},
		{Method: MethodStartCoverage, Params: startCoverageParams},
	}
	for _, request := range handshake {
		if err = w.send(request); err != nil {
			w.halt()
			return &AttachError{Endpoint: target.WebSocketDebuggerURL, Err: err}
		}
	}
	w.logger.Info("attached to target", "title", target.Title, "url", target.URL, "root", w.config.Root)
	w.wg.Add(2)
	go w.readLoop(ctx, conn, emit)
	go w.pollLoop(ctx)
	return nil
}

// Done is closed once the watcher stops
func (w *Watcher) Done() <-chan struct{} {
	w.mux.Lock()
	defer w.mux.Unlock()
	if w.done == nil {
		w.done = make(chan struct{})
	}
	return w.done
}

// Stop detaches from the target; safe to call multiple times
func (w *Watcher) Stop() {
	w.halt()
	w.wg.Wait()
}

func (w *Watcher) halt() {
	w.haltOnce.Do(func() {
		w.mux.Lock()
		defer w.mux.Unlock()
		if w.cancel != nil {
			w.cancel()
		}
		if w.conn != nil {
			_ = w.conn.Close()
		}
		if w.done == nil {
			w.done = make(chan struct{})
		}
		close(w.done)
	})
}

func (w *Watcher) resolveTarget(ctx context.Context, endpoint string) (*Target, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	response, err := w.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", response.Status)
	}
	var targets []*Target
	if err = json.NewDecoder(response.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("invalid target list: %w", err)
	}
	for _, target := range targets {
		if target.WebSocketDebuggerURL == "" || w.isSelf(target) {
			continue
		}
		return target, nil
	}
	return nil, fmt.Errorf("no debuggable target among %d", len(targets))
}

func (w *Watcher) isSelf(target *Target) bool {
	marker := w.config.SelfMarker
	return marker != "" && (containsFold(target.URL, marker) || containsFold(target.Title, marker))
}

func (w *Watcher) send(request *Request) error {
	request.ID = w.nextID.Add(1)
	data, err := json.Marshal(request)
	if err != nil {
		return err
	}
	w.mux.Lock()
	conn := w.conn
	w.mux.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (w *Watcher) pollLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := w.send(&Request{Method: MethodTakePreciseCoverage}); err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("coverage request failed, detaching", "error", err)
				w.halt()
			}
			return
		}
	}
}

func (w *Watcher) readLoop(ctx context.Context, conn *websocket.Conn, emit func(trace.LiveEvent)) {
	defer w.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("control connection lost, detaching", "error", err)
				w.halt()
			}
			return
		}
		w.handle(data, emit)
	}
}

func (w *Watcher) handle(data []byte, emit func(trace.LiveEvent)) {
	response := &Response{}
	if err := json.Unmarshal(data, response); err != nil {
		w.logger.Debug("ignoring message", "error", &trace.ProtocolError{Channel: "control", Err: err})
		return
	}
	if response.Error != nil {
		w.logger.Warn("control command failed", "id", response.ID, "code", response.Error.Code, "message", response.Error.Message)
		return
	}
	if len(response.Result) == 0 || response.Method != "" {
		return
	}
	snapshot := &CoverageSnapshot{}
	if err := json.Unmarshal(response.Result, snapshot); err != nil {
		w.logger.Debug("ignoring message", "error", &trace.ProtocolError{Channel: "control", Err: err})
		return
	}
	if snapshot.Result == nil {
		return
	}
	for _, event := range w.Events(snapshot) {
		if emit != nil {
			emit(event)
		}
	}
}

// Events converts a coverage snapshot into one CALL per executed project function
func (w *Watcher) Events(snapshot *CoverageSnapshot) []trace.LiveEvent {
	var result []trace.LiveEvent
	w.resetLines()
	seen := map[string]bool{}
	timestamp := w.now().UnixMilli()
	for i := range snapshot.Result {
		script := &snapshot.Result[i]
		rel, ok := w.ScriptPath(script.URL)
		if !ok {
			continue
		}
		for j := range script.Functions {
			fn := &script.Functions[j]
			if !Executed(fn) {
				continue
			}
			id := w.nodeID(rel, fn)
			if seen[id] {
				continue
			}
			seen[id] = true
			result = append(result, trace.LiveEvent{
				Type:      trace.TypeCall,
				NodeID:    id,
				Timestamp: timestamp,
				Metadata:  map[string]interface{}{"hits": fn.Hits()},
			})
		}
	}
	return result
}

// New creates a watcher
func New(config *Config, options ...Option) *Watcher {
	if config == nil {
		config = &Config{}
	}
	config.Init()
	ret := &Watcher{
		config: config,
		fs:     afs.New(),
		client: &http.Client{Timeout: 5 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger: slog.Default(),
		now:    time.Now,
		lines:  map[string][]int{},
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

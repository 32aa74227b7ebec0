package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/viant/whyflow/inspector/graph"
	"github.com/viant/whyflow/trace"
)

// Message types
const (
	TypeInitMap    = "INIT_MAP"
	TypeRequestMap = "REQUEST_MAP"
)

// StateEmpty marks a map with no nodes: nothing has been observed yet
const StateEmpty = "EMPTY"

// DefaultSettleDelay is the delay between an observer connecting and the initial map push
const DefaultSettleDelay = 300 * time.Millisecond

// Envelope is the broadcast channel message
type Envelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	State string      `json:"state,omitempty"`
}

// Hub holds the current project map and forwards live events to connected observers.
// It keeps no event history: late joiners receive the map only.
type Hub struct {
	projectMap  atomic.Pointer[graph.ProjectMap]
	upgrader    websocket.Upgrader
	settleDelay time.Duration
	writeWait   time.Duration
	logger      *slog.Logger

	mux       sync.RWMutex
	observers map[string]*observer
	server    *http.Server
	closed    bool
}

// Option configures a Hub
type Option func(*Hub)

// WithSettleDelay sets the initial map push delay
func WithSettleDelay(delay time.Duration) Option {
	return func(h *Hub) {
		if delay >= 0 {
			h.settleDelay = delay
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// SetProjectMap replaces the current map; readers never observe a partial update
func (h *Hub) SetProjectMap(m *graph.ProjectMap) {
	h.projectMap.Store(m)
}

// ProjectMap returns the current map
func (h *Hub) ProjectMap() *graph.ProjectMap {
	return h.projectMap.Load()
}

// Observers returns the number of connected observers
func (h *Hub) Observers() int {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return len(h.observers)
}

// ServeHTTP upgrades the request to a broadcast channel
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	o := &observer{id: uuid.New().String(), conn: conn, writeWait: h.writeWait}
	h.mux.Lock()
	if h.closed {
		h.mux.Unlock()
		_ = conn.Close()
		return
	}
	h.observers[o.id] = o
	h.mux.Unlock()
	h.logger.Info("observer connected", "observer", o.id, "remote", r.RemoteAddr)
	o.mux.Lock()
	o.timer = time.AfterFunc(h.settleDelay, func() {
		h.sendMap(o)
	})
	o.mux.Unlock()
	go h.readLoop(o)
}

func (h *Hub) readLoop(o *observer) {
	defer h.remove(o)
	for {
		_, data, err := o.conn.ReadMessage()
		if err != nil {
			return
		}
		message := &Envelope{}
		if err = json.Unmarshal(data, message); err != nil {
			h.logger.Debug("ignoring message", "observer", o.id, "error", &trace.ProtocolError{Channel: "broadcast", Err: err})
			continue
		}
		switch message.Type {
		case TypeRequestMap:
			h.sendMap(o)
		default:
			h.logger.Debug("ignoring message", "observer", o.id, "type", message.Type)
		}
	}
}

// MapMessage returns the INIT_MAP envelope of the current map
func (h *Hub) MapMessage() *Envelope {
	m := h.ProjectMap()
	if m == nil {
		m = graph.NewProjectMap("")
	}
	ret := &Envelope{Type: TypeInitMap, Data: m}
	if m.Empty() {
		ret.State = StateEmpty
	}
	return ret
}

func (h *Hub) sendMap(o *observer) {
	if err := o.send(h.MapMessage()); err != nil {
		h.logger.Debug("dropping observer", "observer", o.id, "error", err)
		h.remove(o)
	}
}

// Publish forwards a CALL or RETURN event to every observer; a failed write drops only that observer
func (h *Hub) Publish(event trace.LiveEvent) {
	message := &Envelope{Type: event.Type, Data: event}
	h.mux.RLock()
	observers := make([]*observer, 0, len(h.observers))
	for _, o := range h.observers {
		observers = append(observers, o)
	}
	h.mux.RUnlock()
	for _, o := range observers {
		if err := o.send(message); err != nil {
			h.logger.Debug("dropping observer", "observer", o.id, "error", err)
			h.remove(o)
		}
	}
}

func (h *Hub) remove(o *observer) {
	h.mux.Lock()
	_, ok := h.observers[o.id]
	delete(h.observers, o.id)
	h.mux.Unlock()
	if ok {
		o.close()
		h.logger.Info("observer disconnected", "observer", o.id)
	}
}

// Start binds addr and serves the broadcast channel in background; failing to bind is returned.
// It returns the bound address.
func (h *Hub) Start(ctx context.Context, addr string) (string, error) {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to bind hub on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", h)
	mux.HandleFunc("/map", h.serveMap)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	h.mux.Lock()
	h.server = server
	h.mux.Unlock()
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("hub stopped", "error", err)
		}
	}()
	h.logger.Info("hub listening", "address", listener.Addr().String())
	return listener.Addr().String(), nil
}

// serveMap returns the current map envelope over plain HTTP
func (h *Hub) serveMap(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.MapMessage())
}

// Close disconnects all observers and stops the server; safe to call multiple times
func (h *Hub) Close() error {
	h.mux.Lock()
	if h.closed {
		h.mux.Unlock()
		return nil
	}
	h.closed = true
	observers := h.observers
	h.observers = map[string]*observer{}
	server := h.server
	h.mux.Unlock()
	for _, o := range observers {
		o.close()
	}
	if server != nil {
		return server.Close()
	}
	return nil
}

// New creates a hub
func New(options ...Option) *Hub {
	ret := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		settleDelay: DefaultSettleDelay,
		writeWait:   5 * time.Second,
		logger:      slog.Default(),
		observers:   map[string]*observer{},
	}
	ret.SetProjectMap(graph.NewProjectMap(""))
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/whyflow/inspector/graph"
	"github.com/viant/whyflow/trace"
)

const appSource = `const x = 1
function handler(req) {
  return idle()
}
function idle() {}
`

const utilSource = `

export function format(v) { return v }
`

func projectRoot(t *testing.T) string {
	t.Helper()
	root, err := os.MkdirTemp("", "project")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(root) })
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.js"), []byte(appSource), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "util.js"), []byte(utilSource), 0644))
	return filepath.ToSlash(root)
}

func fn(name string, offset, count int) FunctionCoverage {
	return FunctionCoverage{FunctionName: name, Ranges: []CoverageRange{{StartOffset: offset, EndOffset: offset + 10, Count: count}}}
}

func snapshot(root string) *CoverageSnapshot {
	return &CoverageSnapshot{Result: []ScriptCoverage{
		{URL: "file://" + root + "/src/app.js", Functions: []FunctionCoverage{
			fn("", 0, 1),
			fn("handler", strings.Index(appSource, "function handler"), 2),
			fn("idle", strings.Index(appSource, "function idle"), 0),
			fn("__webpack_require__", 0, 5),
			fn("anonymous", 0, 1),
			fn("handler", strings.Index(appSource, "function handler"), 2),
		}},
		{URL: root + "/node_modules/lib/index.js", Functions: []FunctionCoverage{fn("helper", 0, 3)}},
		{URL: root + "/.next/server/app.js", Functions: []FunctionCoverage{fn("render", 0, 3)}},
		{URL: "node:internal/modules/cjs/loader", Functions: []FunctionCoverage{fn("load", 0, 9)}},
		{URL: "/elsewhere/app.js", Functions: []FunctionCoverage{fn("main", 0, 1)}},
		{URL: "file://" + strings.ReplaceAll(root+"/src/util.js", "/", "_"), Functions: []FunctionCoverage{
			fn("format", strings.Index(utilSource, "export function format"), 4),
		}},
	}}
}

func staticMap() *graph.ProjectMap {
	m := graph.NewProjectMap("test")
	m.AddNode(&graph.Node{ID: "src/app.js:handler:2", Name: "handler", File: "src/app.js", Line: 2})
	m.AddNode(&graph.Node{ID: "src/app.js:idle:5", Name: "idle", File: "src/app.js", Line: 5})
	return m
}

func TestWatcher_ScriptPath(t *testing.T) {
	root := "/home/dev/My App"
	w := New(&Config{Root: root})
	tests := []struct {
		location string
		expected string
		ok       bool
	}{
		{location: "file:///home/dev/My%20App/src/index.js", expected: "src/index.js", ok: true},
		{location: "/home/dev/My App/lib/a.ts", expected: "lib/a.ts", ok: true},
		{location: "file:///HOME/dev/my app/src/index.js", expected: "src/index.js", ok: true},
		{location: "/home/dev/My App/node_modules/react/index.js"},
		{location: "/home/dev/My App/.next/server/chunks/1.js"},
		{location: "/home/dev/My App/src/middleware.js"},
		{location: "/home/dev/My App/whyflow-data/instrumented/a.js"},
		{location: "/home/dev/Other/src/index.js"},
		{location: "/home/dev/My App"},
		{location: "node:internal/main"},
		{location: "webpack-internal:///./src/index.js"},
		{location: ""},
	}
	for _, tc := range tests {
		t.Run(tc.location, func(t *testing.T) {
			actual, ok := w.ScriptPath(tc.location)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestExecuted(t *testing.T) {
	tests := []struct {
		fn       FunctionCoverage
		expected bool
	}{
		{fn: fn("main", 0, 1), expected: true},
		{fn: fn("main", 0, 0)},
		{fn: fn("", 0, 3)},
		{fn: fn("anonymous", 0, 3)},
		{fn: fn("__next_require", 0, 3)},
		{fn: FunctionCoverage{FunctionName: "main"}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, Executed(&tc.fn), tc.fn.FunctionName)
	}
}

func TestWatcher_Events(t *testing.T) {
	root := projectRoot(t)
	w := New(&Config{Root: root}, WithProjectMap(staticMap))
	events := w.Events(snapshot(root))
	var ids []string
	for _, event := range events {
		assert.Equal(t, trace.TypeCall, event.Type)
		ids = append(ids, event.NodeID)
	}
	assert.Equal(t, []string{"src/app.js:handler:2", "src/util.js:format:3"}, ids)
	assert.Equal(t, 2, events[0].Metadata["hits"])
	assert.Equal(t, 4, events[1].Metadata["hits"])
}

// inspector fakes the debugger introspection and control endpoints
type inspector struct {
	root     string
	mux      sync.Mutex
	methods  []string
	server   *httptest.Server
	upgrader websocket.Upgrader
}

func (i *inspector) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		wsURL := "ws" + strings.TrimPrefix(i.server.URL, "http") + "/ws"
		_ = json.NewEncoder(w).Encode([]*Target{
			{ID: "1", Title: "whyflow-engine", URL: "file:///opt/whyflow-engine/main.js", WebSocketDebuggerURL: wsURL + "/self"},
			{ID: "2", Title: "next-server", URL: "file://" + i.root + "/server.js", WebSocketDebuggerURL: wsURL},
		})
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := i.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			request := &Request{}
			if err = json.Unmarshal(data, request); err != nil {
				return
			}
			i.mux.Lock()
			i.methods = append(i.methods, request.Method)
			i.mux.Unlock()
			var result interface{} = map[string]interface{}{}
			if request.Method == MethodTakePreciseCoverage {
				result = snapshot(i.root)
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
			_ = conn.WriteJSON(map[string]interface{}{"id": request.ID, "result": result})
		}
	})
	return mux
}

func (i *inspector) calls() []string {
	i.mux.Lock()
	defer i.mux.Unlock()
	return append([]string(nil), i.methods...)
}

func TestWatcher_Start(t *testing.T) {
	root := projectRoot(t)
	fake := &inspector{root: root}
	fake.server = httptest.NewServer(fake.handler())
	defer fake.server.Close()
	address := strings.TrimPrefix(fake.server.URL, "http://")
	host, portText, _ := strings.Cut(address, ":")
	port, err := strconv.Atoi(portText)
	require.NoError(t, err)

	w := New(&Config{Host: host, Port: port, Root: root, PollInterval: 20 * time.Millisecond}, WithProjectMap(staticMap))
	var mux sync.Mutex
	var events []trace.LiveEvent
	require.NoError(t, w.Start(context.Background(), func(event trace.LiveEvent) {
		mux.Lock()
		events = append(events, event)
		mux.Unlock()
	}))
	assert.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return len(events) >= 4
	}, 3*time.Second, 10*time.Millisecond)
	w.Stop()
	w.Stop()
	<-w.Done()

	calls := fake.calls()
	require.GreaterOrEqual(t, len(calls), 5)
	assert.Equal(t, []string{MethodProfilerEnable, MethodDebuggerEnable, MethodDebuggerResume, MethodStartCoverage, MethodTakePreciseCoverage}, calls[:5])

	mux.Lock()
	defer mux.Unlock()
	for _, event := range events {
		assert.Contains(t, []string{"src/app.js:handler:2", "src/util.js:format:3"}, event.NodeID)
	}
}

func TestWatcher_StartAttachError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]*Target{{Title: "whyflow-engine", WebSocketDebuggerURL: "ws://127.0.0.1:1/self"}})
	}))
	address := strings.TrimPrefix(server.URL, "http://")
	host, portText, _ := strings.Cut(address, ":")
	port, _ := strconv.Atoi(portText)

	w := New(&Config{Host: host, Port: port, Root: "/tmp/app"})
	err := w.Start(context.Background(), nil)
	var attachErr *AttachError
	require.True(t, errors.As(err, &attachErr))
	assert.Contains(t, attachErr.Error(), "no debuggable target")
	w.Stop()

	server.Close()
	w = New(&Config{Host: host, Port: port, Root: "/tmp/app"})
	err = w.Start(context.Background(), nil)
	require.True(t, errors.As(err, &attachErr))
	w.Stop()
	select {
	case <-w.Done():
	default:
		t.Fatal("watcher not stopped")
	}
}

func TestWatcher_ResolveTarget(t *testing.T) {
	tests := []struct {
		name     string
		marker   string
		targets  []*Target
		expected string
	}{
		{
			name: "user project path containing the tool name",
			targets: []*Target{
				{ID: "1", Title: "whyflow-engine", URL: "file:///opt/whyflow-engine/main.js", WebSocketDebuggerURL: "ws://127.0.0.1:1/self"},
				{ID: "2", Title: "node", URL: "file:///home/dev/whyflow-demo/server.js", WebSocketDebuggerURL: "ws://127.0.0.1:1/app"},
			},
			expected: "2",
		},
		{
			name: "targets without a debugger url are skipped",
			targets: []*Target{
				{ID: "1", Title: "node", URL: "file:///home/dev/app/server.js"},
				{ID: "2", Title: "node", URL: "file:///home/dev/app/worker.js", WebSocketDebuggerURL: "ws://127.0.0.1:1/worker"},
			},
			expected: "2",
		},
		{
			name:   "custom marker",
			marker: "inspector-self",
			targets: []*Target{
				{ID: "1", Title: "inspector-self", WebSocketDebuggerURL: "ws://127.0.0.1:1/self"},
				{ID: "2", Title: "whyflow-engine", WebSocketDebuggerURL: "ws://127.0.0.1:1/other"},
			},
			expected: "2",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tc.targets)
			}))
			defer server.Close()
			w := New(&Config{Root: "/home/dev/app", SelfMarker: tc.marker})
			target, err := w.resolveTarget(context.Background(), server.URL+"/json/list")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, target.ID)
		})
	}
}

func TestLineBreaks(t *testing.T) {
	code := "// héllo 😀\nfunction a() {}\nfunction b() {}\n"
	breaks := lineBreaks(code)
	assert.Equal(t, []int{11, 27, 43}, breaks)
	assert.Equal(t, 2, sort.SearchInts(breaks, 12)+1)
}

func TestWatcher_LineOffsets(t *testing.T) {
	root := projectRoot(t)
	source := "// 😀😀 unicode banner ✓\nfunction first() {}\nfunction second() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "wide.js"), []byte(source), 0644))
	current := graph.NewProjectMap("test")
	w := New(&Config{Root: root}, WithProjectMap(func() *graph.ProjectMap { return current }))

	offset := len(utf16.Encode([]rune(source[:strings.Index(source, "function second")])))
	coverage := func() *CoverageSnapshot {
		return &CoverageSnapshot{Result: []ScriptCoverage{{URL: "file://" + root + "/src/wide.js", Functions: []FunctionCoverage{fn("second", offset, 1)}}}}
	}
	events := w.Events(coverage())
	require.Len(t, events, 1)
	assert.Equal(t, "src/wide.js:second:3", events[0].NodeID)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "wide.js"), []byte("\n\n"+source), 0644))
	events = w.Events(coverage())
	require.Len(t, events, 1)
	assert.Equal(t, "src/wide.js:second:3", events[0].NodeID)

	offset += 2
	current = graph.NewProjectMap("test")
	events = w.Events(coverage())
	require.Len(t, events, 1)
	assert.Equal(t, "src/wide.js:second:5", events[0].NodeID)
}

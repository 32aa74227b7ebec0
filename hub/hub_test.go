package hub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/whyflow/inspector/graph"
	"github.com/viant/whyflow/trace"
)

type received struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	State string          `json:"state"`
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) *received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	message := &received{}
	require.NoError(t, conn.ReadJSON(message))
	return message
}

func sampleMap() *graph.ProjectMap {
	m := graph.NewProjectMap("demo")
	m.AddNode(&graph.Node{ID: "index.js:add:1", Name: "add", File: "index.js", Line: 1})
	m.AddNode(&graph.Node{ID: "index.js:main:1", Name: "main", File: "index.js", Line: 1})
	m.AddEdge(&graph.Edge{Source: "index.js:main:1", Target: "index.js:add:1"})
	return m
}

func TestHub_InitMap(t *testing.T) {
	h := New(WithSettleDelay(10 * time.Millisecond))
	defer h.Close()
	h.SetProjectMap(sampleMap())
	server := httptest.NewServer(h)
	defer server.Close()

	conn := dial(t, server)
	message := read(t, conn)
	assert.Equal(t, TypeInitMap, message.Type)
	assert.Equal(t, "", message.State)
	actual := &graph.ProjectMap{}
	require.NoError(t, json.Unmarshal(message.Data, actual))
	assert.Len(t, actual.Nodes, 2)
	require.Len(t, actual.Edges, 1)
	assert.Equal(t, "index.js:main:1", actual.Edges[0].Source)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeRequestMap}))
	message = read(t, conn)
	assert.Equal(t, TypeInitMap, message.Type)
}

func TestHub_EmptyState(t *testing.T) {
	h := New(WithSettleDelay(0))
	defer h.Close()
	server := httptest.NewServer(h)
	defer server.Close()

	message := read(t, dial(t, server))
	assert.Equal(t, TypeInitMap, message.Type)
	assert.Equal(t, StateEmpty, message.State)
}

func TestHub_Publish(t *testing.T) {
	h := New(WithSettleDelay(0))
	defer h.Close()
	h.SetProjectMap(sampleMap())
	server := httptest.NewServer(h)
	defer server.Close()

	first := dial(t, server)
	second := dial(t, server)
	read(t, first)
	read(t, second)
	assert.Eventually(t, func() bool { return h.Observers() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, second.Close())
	assert.Eventually(t, func() bool { return h.Observers() == 1 }, 2*time.Second, 5*time.Millisecond)

	h.Publish(trace.LiveEvent{Type: trace.TypeCall, NodeID: "index.js:add:1", Timestamp: 7})
	h.Publish(trace.LiveEvent{Type: trace.TypeReturn, NodeID: "index.js:add:1", Timestamp: 8})

	message := read(t, first)
	assert.Equal(t, trace.TypeCall, message.Type)
	event := &trace.LiveEvent{}
	require.NoError(t, json.Unmarshal(message.Data, event))
	assert.Equal(t, "index.js:add:1", event.NodeID)
	assert.Equal(t, trace.TypeReturn, read(t, first).Type)
}

func TestHub_Start(t *testing.T) {
	h := New()
	addr, err := h.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)

	_, err = New().Start(context.Background(), addr)
	assert.Error(t, err)

	require.NoError(t, h.Close())
	assert.NoError(t, h.Close())
}

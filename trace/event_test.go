package trace

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		id      string
		file    string
		name    string
		line    int
		wantErr bool
	}{
		{id: "index.js:add:1", file: "index.js", name: "add", line: 1},
		{id: "src/lib/util.ts:anonymous:42", file: "src/lib/util.ts", name: "anonymous", line: 42},
		{id: "C:/work/app.js:main:7", file: "C:/work/app.js", name: "main", line: 7},
		{id: "index.js:add", wantErr: true},
		{id: "add", wantErr: true},
		{id: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			file, name, line, err := ParseID(tc.id)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.file, file)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.line, line)
		})
	}
}

func TestNewEvent(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	tests := []struct {
		name     string
		status   string
		data     interface{}
		expected *Event
	}{
		{
			name:     "start with args",
			status:   StatusStart,
			data:     []interface{}{1.0, "complex-param"},
			expected: &Event{Timestamp: 1700000000000, ID: "a.js:f:3", Name: "f", File: "a.js", Line: 3, Status: StatusStart, Args: []interface{}{1.0, "complex-param"}},
		},
		{
			name:     "end",
			status:   StatusEnd,
			expected: &Event{Timestamp: 1700000000000, ID: "a.js:f:3", Name: "f", File: "a.js", Line: 3, Status: StatusEnd},
		},
		{
			name:     "fail with error",
			status:   StatusFail,
			data:     errors.New("boom"),
			expected: &Event{Timestamp: 1700000000000, ID: "a.js:f:3", Name: "f", File: "a.js", Line: 3, Status: StatusFail, Error: "boom"},
		},
		{
			name:     "fail with error object",
			status:   StatusFail,
			data:     map[string]interface{}{"message": "boom"},
			expected: &Event{Timestamp: 1700000000000, ID: "a.js:f:3", Name: "f", File: "a.js", Line: 3, Status: StatusFail, Error: "boom"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := NewEvent("a.js:f:3", tc.status, tc.data, at)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
	_, err := NewEvent("a.js:f:3", "DONE", nil, at)
	assert.Error(t, err)
}

func TestEvent_Live(t *testing.T) {
	tests := []struct {
		status   string
		expected LiveEvent
	}{
		{status: StatusStart, expected: LiveEvent{Type: TypeCall, NodeID: "a.js:f:1", Timestamp: 5}},
		{status: StatusEnd, expected: LiveEvent{Type: TypeReturn, NodeID: "a.js:f:1", Timestamp: 5}},
		{status: StatusFail, expected: LiveEvent{Type: TypeReturn, NodeID: "a.js:f:1", Timestamp: 5, Metadata: map[string]interface{}{"status": StatusFail, "error": "x"}}},
	}
	for _, tc := range tests {
		event := &Event{ID: "a.js:f:1", Status: tc.status, Timestamp: 5, Error: "x"}
		if tc.status != StatusFail {
			event.Error = ""
		}
		assert.Equal(t, tc.expected, event.Live(), tc.status)
	}
}

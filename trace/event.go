package trace

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event statuses
const (
	StatusStart = "START"
	StatusEnd   = "END"
	StatusFail  = "FAIL"
)

// Live event types
const (
	TypeCall   = "CALL"
	TypeReturn = "RETURN"
)

// Event represents one lifecycle transition of a traced invocation, one JSON line in the trace log
type Event struct {
	Timestamp int64         `json:"timestamp"` // unix milliseconds
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	File      string        `json:"file"`
	Line      int           `json:"line"`
	Status    string        `json:"status"`
	Args      []interface{} `json:"args,omitempty"`
	Result    interface{}   `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Valid returns true if the event carries an id and a known status
func (e *Event) Valid() bool {
	if e == nil || e.ID == "" {
		return false
	}
	switch e.Status {
	case StatusStart, StatusEnd, StatusFail:
		return true
	}
	return false
}

// Live converts the event into a broadcast message: START becomes CALL, END and FAIL become RETURN
func (e *Event) Live() LiveEvent {
	ret := LiveEvent{Type: TypeReturn, NodeID: e.ID, Timestamp: e.Timestamp}
	if e.Status == StatusStart {
		ret.Type = TypeCall
	}
	if e.Status == StatusFail {
		ret.Metadata = map[string]interface{}{"status": StatusFail, "error": e.Error}
	}
	return ret
}

// LiveEvent is a transient message forwarded to hub observers
type LiveEvent struct {
	Type      string                 `json:"type"`
	NodeID    string                 `json:"nodeId"`
	Timestamp int64                  `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates an event for id; data carries the arguments for START, the result for END
// and the error for FAIL
func NewEvent(id, status string, data interface{}, at time.Time) (*Event, error) {
	file, name, line, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	ret := &Event{Timestamp: at.UnixMilli(), ID: id, Name: name, File: file, Line: line, Status: status}
	switch status {
	case StatusStart:
		switch actual := data.(type) {
		case nil:
		case []interface{}:
			ret.Args = actual
		default:
			ret.Args = []interface{}{actual}
		}
	case StatusEnd:
		ret.Result = data
	case StatusFail:
		ret.Error = errorMessage(data)
	default:
		return nil, fmt.Errorf("unsupported status %q", status)
	}
	return ret, nil
}

func errorMessage(data interface{}) string {
	switch actual := data.(type) {
	case nil:
		return ""
	case string:
		return actual
	case error:
		return actual.Error()
	case map[string]interface{}:
		if message, ok := actual["message"]; ok {
			return fmt.Sprint(message)
		}
	}
	return fmt.Sprint(data)
}

// ParseID splits a node id relativeFilePath:functionName:definitionLine; the file may itself contain ':'
func ParseID(id string) (file, name string, line int, err error) {
	lineIdx := strings.LastIndexByte(id, ':')
	if lineIdx == -1 {
		return "", "", 0, fmt.Errorf("invalid node id %q", id)
	}
	if line, err = strconv.Atoi(id[lineIdx+1:]); err != nil {
		return "", "", 0, fmt.Errorf("invalid node id %q: %w", id, err)
	}
	nameIdx := strings.LastIndexByte(id[:lineIdx], ':')
	if nameIdx == -1 {
		return "", "", 0, fmt.Errorf("invalid node id %q", id)
	}
	return id[:nameIdx], id[nameIdx+1 : lineIdx], line, nil
}

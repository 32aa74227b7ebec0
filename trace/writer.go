package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends events to the trace log, one JSON line per event. Writes are synchronous
// so log order matches emission order within a process.
type Writer struct {
	path string
	mux  sync.Mutex
	file *os.File
}

// Path returns the log location
func (w *Writer) Path() string {
	return w.path
}

// Write appends one event
func (w *Writer) Write(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode trace event %s: %w", event.ID, err)
	}
	data = append(data, '\n')
	w.mux.Lock()
	defer w.mux.Unlock()
	if w.file == nil {
		if err = os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
			return err
		}
		if w.file, err = os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err != nil {
			return fmt.Errorf("failed to open trace log %s: %w", w.path, err)
		}
	}
	_, err = w.file.Write(data)
	return err
}

// Close closes the log; a later Write reopens it
func (w *Writer) Close() error {
	w.mux.Lock()
	defer w.mux.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// NewWriter creates a writer appending to path
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultPollInterval is the default log size polling interval
const DefaultPollInterval = 2 * time.Second

// FollowerOption configures a Follower
type FollowerOption func(*Follower)

// WithInterval sets the polling interval
func WithInterval(interval time.Duration) FollowerOption {
	return func(f *Follower) {
		if interval > 0 {
			f.interval = interval
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) FollowerOption {
	return func(f *Follower) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTail skips records already present when the follower starts
func WithTail() FollowerOption {
	return func(f *Follower) {
		f.tail = true
	}
}

// Follower tails the append-only trace log by polling its size
type Follower struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
	tail     bool

	mux      sync.Mutex
	offset   int64
	partial  []byte
	handlers []func([]*Event)
	cancel   context.CancelFunc
	done     chan struct{}
}

// Path returns the followed log
func (f *Follower) Path() string {
	return f.path
}

// Subscribe registers a handler receiving each non-empty batch of new events
func (f *Follower) Subscribe(handler func(events []*Event)) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.handlers = append(f.handlers, handler)
}

// Poll returns events appended since the previous poll. A missing log yields no events;
// malformed lines are skipped; an incomplete trailing line is kept until completed.
func (f *Follower) Poll() ([]*Event, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	size := info.Size()
	if size < f.offset {
		f.logger.Debug("trace log truncated", "path", f.path, "size", size, "offset", f.offset)
		f.offset, f.partial = 0, nil
	}
	if size == f.offset {
		return nil, nil
	}
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	if _, err = file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, err
	}
	chunk, err := io.ReadAll(io.LimitReader(file, size-f.offset))
	if err != nil {
		return nil, fmt.Errorf("failed to read trace log %s: %w", f.path, err)
	}
	f.offset += int64(len(chunk))
	data := append(f.partial, chunk...)
	last := bytes.LastIndexByte(data, '\n')
	if last == -1 {
		f.partial = data
		return nil, nil
	}
	f.partial = append([]byte(nil), data[last+1:]...)
	return f.decode(data[:last]), nil
}

func (f *Follower) decode(data []byte) []*Event {
	var events []*Event
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		event := &Event{}
		if err := json.Unmarshal(line, event); err != nil || !event.Valid() {
			f.logger.Debug("skipping malformed trace record", "path", f.path, "record", string(line))
			continue
		}
		events = append(events, event)
	}
	return events
}

// Start polls the log in background and emits a LiveEvent per new record
func (f *Follower) Start(ctx context.Context, emit func(LiveEvent)) error {
	f.mux.Lock()
	if f.done != nil {
		f.mux.Unlock()
		return fmt.Errorf("follower of %s already started", f.path)
	}
	if f.tail {
		if info, err := os.Stat(f.path); err == nil {
			f.offset = info.Size()
		}
	}
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	f.mux.Unlock()
	go f.run(ctx, emit)
	return nil
}

func (f *Follower) run(ctx context.Context, emit func(LiveEvent)) {
	defer close(f.done)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		events, err := f.Poll()
		if err != nil {
			f.logger.Warn("failed to poll trace log", "path", f.path, "error", err)
			continue
		}
		if len(events) == 0 {
			continue
		}
		if emit != nil {
			for _, event := range events {
				emit(event.Live())
			}
		}
		f.mux.Lock()
		handlers := append([]func([]*Event){}, f.handlers...)
		f.mux.Unlock()
		for _, handler := range handlers {
			handler(events)
		}
	}
}

// Stop stops polling; safe to call multiple times
func (f *Follower) Stop() {
	f.mux.Lock()
	cancel, done := f.cancel, f.done
	f.cancel = nil
	f.mux.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// NewFollower creates a follower of the log at path
func NewFollower(path string, options ...FollowerOption) *Follower {
	ret := &Follower{path: path, interval: DefaultPollInterval, logger: slog.Default()}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

package trace

import (
	"fmt"
	"sync"
	"time"
)

// ContextOption configures a tracing Context
type ContextOption func(*Context)

// WithWriter appends every event to the trace log
func WithWriter(writer *Writer) ContextOption {
	return func(c *Context) {
		c.writer = writer
	}
}

// WithEmitter forwards every event as a LiveEvent
func WithEmitter(emit func(LiveEvent)) ContextOption {
	return func(c *Context) {
		c.emit = emit
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) ContextOption {
	return func(c *Context) {
		c.now = now
	}
}

// WithRecording keeps emitted events in memory
func WithRecording() ContextOption {
	return func(c *Context) {
		c.record = true
	}
}

// Context is the tracing context owned by the process running instrumented code.
// Instrumented functions reach it through a single entry point, Emit.
type Context struct {
	mux    sync.Mutex
	writer *Writer
	stack  *CallStack
	emit   func(LiveEvent)
	now    func() time.Time
	record bool
	events []*Event
}

// Emit records one lifecycle transition of the invocation identified by id.
// An unbalanced exit is still logged and reported as ErrUnbalanced.
func (c *Context) Emit(id, status string, data interface{}) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	event, err := NewEvent(id, status, data, c.now())
	if err != nil {
		return err
	}
	stackErr := c.stack.Apply(event)
	if c.writer != nil {
		if err = c.writer.Write(event); err != nil {
			return err
		}
	}
	if c.record {
		c.events = append(c.events, event)
	}
	if c.emit != nil {
		c.emit(event.Live())
	}
	if stackErr != nil {
		return fmt.Errorf("trace %s %s: %w", status, id, stackErr)
	}
	return nil
}

// Events returns recorded events
func (c *Context) Events() []*Event {
	c.mux.Lock()
	defer c.mux.Unlock()
	return append([]*Event(nil), c.events...)
}

// Stack returns the call stack
func (c *Context) Stack() *CallStack {
	return c.stack
}

// NewContext creates a tracing context
func NewContext(options ...ContextOption) *Context {
	ret := &Context{stack: NewCallStack(), now: time.Now}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

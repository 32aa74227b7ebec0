package jsrun

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/viant/whyflow/trace"
)

// SinkName is the global function instrumented code reports through
const SinkName = "__whyflow_trace__"

// Runner executes instrumented scripts in an embedded JavaScript runtime with the
// trace sink bound to a tracing context
type Runner struct {
	vm     *goja.Runtime
	trace  *trace.Context
	logger *slog.Logger
	mux    sync.Mutex
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger receiving console output
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Run evaluates a script; the context interrupts long running code
func (r *Runner) Run(ctx context.Context, name string, src []byte) (interface{}, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	stop := r.interruptOn(ctx)
	defer stop()
	value, err := r.vm.RunScript(name, string(src))
	if err != nil {
		return nil, scriptError(name, err)
	}
	return export(value), nil
}

// Call invokes a global function
func (r *Runner) Call(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	fn, ok := goja.AssertFunction(r.vm.Get(name))
	if !ok {
		return nil, fmt.Errorf("%s is not a function", name)
	}
	stop := r.interruptOn(ctx)
	defer stop()
	var values []goja.Value
	for _, arg := range args {
		values = append(values, r.vm.ToValue(arg))
	}
	value, err := fn(goja.Undefined(), values...)
	if err != nil {
		return nil, scriptError(name, err)
	}
	return export(value), nil
}

// Set binds a global value
func (r *Runner) Set(name string, value interface{}) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.vm.Set(name, value)
}

func (r *Runner) interruptOn(ctx context.Context) func() {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
		r.vm.ClearInterrupt()
	}
}

func (r *Runner) sink(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).String()
	status := call.Argument(1).String()
	arg := call.Argument(2)
	var data interface{}
	if status == trace.StatusFail {
		data = errorMessage(arg)
	} else if !goja.IsUndefined(arg) && !goja.IsNull(arg) {
		data = arg.Export()
	}
	if err := r.trace.Emit(id, status, data); err != nil {
		r.logger.Warn("trace event rejected", "id", id, "status", status, "error", err)
	}
	return goja.Undefined()
}

func (r *Runner) console(level slog.Level) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var parts []string
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		r.logger.Log(context.Background(), level, strings.Join(parts, " "), "source", "script")
		return goja.Undefined()
	}
}

func errorMessage(value goja.Value) string {
	if obj, ok := value.(*goja.Object); ok {
		if message := obj.Get("message"); message != nil && !goja.IsUndefined(message) {
			return message.String()
		}
	}
	return value.String()
}

func export(value goja.Value) interface{} {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil
	}
	return value.Export()
}

// ScriptError reports an exception or interruption raised by a script
type ScriptError struct {
	Script  string
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s: %s", e.Script, e.Message)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

func scriptError(name string, err error) error {
	ret := &ScriptError{Script: name, Message: err.Error(), Err: err}
	if exception, ok := err.(*goja.Exception); ok {
		ret.Message = errorMessage(exception.Value())
	}
	return ret
}

// New creates a runner reporting to tc
func New(tc *trace.Context, options ...Option) *Runner {
	ret := &Runner{vm: goja.New(), trace: tc, logger: slog.Default()}
	for _, opt := range options {
		opt(ret)
	}
	_ = ret.vm.Set(SinkName, ret.sink)
	console := ret.vm.NewObject()
	_ = console.Set("log", ret.console(slog.LevelInfo))
	_ = console.Set("info", ret.console(slog.LevelInfo))
	_ = console.Set("warn", ret.console(slog.LevelWarn))
	_ = console.Set("error", ret.console(slog.LevelError))
	_ = ret.vm.Set("console", console)
	return ret
}

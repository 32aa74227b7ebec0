package jsrun

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/whyflow/trace"
)

func TestRunner_Run(t *testing.T) {
	tc := trace.NewContext(trace.WithRecording())
	runner := New(tc)
	result, err := runner.Run(context.Background(), "inline.js", []byte(`
__whyflow_trace__("inline.js:main:1", "START", [1, "complex-param"]);
__whyflow_trace__("inline.js:main:1", "FAIL", new Error("boom"));
console.log("done");
40 + 2`))
	require.NoError(t, err)
	assert.EqualValues(t, 42, result)

	events := tc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, []interface{}{int64(1), "complex-param"}, events[0].Args)
	assert.Equal(t, "boom", events[1].Error)
	assert.True(t, tc.Stack().Balanced())
}

func TestRunner_Call(t *testing.T) {
	runner := New(trace.NewContext())
	_, err := runner.Run(context.Background(), "lib.js", []byte(`function greet(name) { return "hi " + name }
function fail() { throw new Error("boom") }`))
	require.NoError(t, err)

	result, err := runner.Call(context.Background(), "greet", "bob")
	require.NoError(t, err)
	assert.Equal(t, "hi bob", result)

	_, err = runner.Call(context.Background(), "fail")
	var scriptErr *ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Equal(t, "boom", scriptErr.Message)

	_, err = runner.Call(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRunner_Interrupt(t *testing.T) {
	runner := New(trace.NewContext())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := runner.Run(ctx, "loop.js", []byte(`for (;;) {}`))
	require.Error(t, err)

	result, err := runner.Run(context.Background(), "after.js", []byte(`1 + 1`))
	require.NoError(t, err)
	assert.EqualValues(t, 2, result)
}

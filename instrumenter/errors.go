package instrumenter

import "fmt"

// InstrumentationError reports a file that could not be rewritten; the file is left out of the run
type InstrumentationError struct {
	File string
	Err  error
}

func (e *InstrumentationError) Error() string {
	return fmt.Sprintf("instrumentation of %s failed: %v", e.File, e.Err)
}

func (e *InstrumentationError) Unwrap() error {
	return e.Err
}

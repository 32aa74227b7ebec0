package watcher

import "fmt"

// AttachError reports a failure to discover or connect to the target; the watcher stops
type AttachError struct {
	Endpoint string
	Err      error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("failed to attach to %s: %v", e.Endpoint, e.Err)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}

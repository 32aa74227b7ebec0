package analyzer

import "fmt"

// AnalysisError reports a file that could not be read or parsed; it never aborts a project analysis
type AnalysisError struct {
	File string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis of %s skipped: %v", e.File, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

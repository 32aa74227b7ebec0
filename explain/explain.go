package explain

import (
	"context"
	"fmt"
	"log/slog"
)

// Unavailable is returned in place of an explanation when the service fails
const Unavailable = "Explanation unavailable."

// Explainer turns static context and a runtime trace into a failure explanation
type Explainer interface {
	Explain(ctx context.Context, staticContext, runtimeTrace string) (string, error)
}

// Describer produces a one sentence description of a function
type Describer interface {
	Describe(ctx context.Context, name, code string) (string, error)
}

// ExplanationError reports an explanation service failure
type ExplanationError struct {
	Service string
	Err     error
}

func (e *ExplanationError) Error() string {
	return fmt.Sprintf("%s explanation failed: %v", e.Service, e.Err)
}

func (e *ExplanationError) Unwrap() error {
	return e.Err
}

type fallback struct {
	explainer Explainer
	logger    *slog.Logger
}

func (f *fallback) Explain(ctx context.Context, staticContext, runtimeTrace string) (string, error) {
	if f.explainer == nil {
		return Unavailable, nil
	}
	text, err := f.explainer.Explain(ctx, staticContext, runtimeTrace)
	if err != nil {
		f.logger.Warn("explanation unavailable", "error", err)
		return Unavailable, nil
	}
	if text == "" {
		return Unavailable, nil
	}
	return text, nil
}

// WithFallback wraps explainer so that failures degrade to Unavailable
func WithFallback(explainer Explainer, logger *slog.Logger) Explainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &fallback{explainer: explainer, logger: logger}
}

// Static returns a fixed text, or a fixed error
type Static struct {
	Text string
	Err  error
}

// Explain returns the fixed text
func (s *Static) Explain(ctx context.Context, staticContext, runtimeTrace string) (string, error) {
	if s.Err != nil {
		return "", &ExplanationError{Service: "static", Err: s.Err}
	}
	return s.Text, nil
}

// Describe returns the fixed text
func (s *Static) Describe(ctx context.Context, name, code string) (string, error) {
	if s.Err != nil {
		return "", &ExplanationError{Service: "static", Err: s.Err}
	}
	return s.Text, nil
}

package trace

import (
	"errors"
	"fmt"

	"github.com/viant/whyflow/inspector/graph"
)

// ErrUnbalanced reports an END or FAIL without a matching START
var ErrUnbalanced = errors.New("unbalanced trace")

// CallStack tracks active invocations of one process and derives caller to callee edges
type CallStack struct {
	frames []string
	edges  *graph.ProjectMap
}

// Push records entry into id
func (s *CallStack) Push(id string) {
	if top := s.Top(); top != "" {
		s.edges.AddEdge(&graph.Edge{Source: top, Target: id, Type: graph.EdgeCalls})
	}
	s.frames = append(s.frames, id)
}

// Pop records normal or exceptional exit from id, which must be the innermost active invocation
func (s *CallStack) Pop(id string) error {
	top := s.Top()
	if top != id {
		return fmt.Errorf("%w: exit from %s while %q is active", ErrUnbalanced, id, top)
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// Top returns the innermost active invocation
func (s *CallStack) Top() string {
	if len(s.frames) == 0 {
		return ""
	}
	return s.frames[len(s.frames)-1]
}

// Root returns the outermost active invocation
func (s *CallStack) Root() string {
	if len(s.frames) == 0 {
		return ""
	}
	return s.frames[0]
}

// Balanced returns true when no invocation is active
func (s *CallStack) Balanced() bool {
	return len(s.frames) == 0
}

// Edges returns the dynamically observed calls edges in discovery order
func (s *CallStack) Edges() []*graph.Edge {
	return s.edges.Edges
}

// Apply updates the stack with an event
func (s *CallStack) Apply(event *Event) error {
	switch event.Status {
	case StatusStart:
		s.Push(event.ID)
		return nil
	case StatusEnd, StatusFail:
		return s.Pop(event.ID)
	}
	return fmt.Errorf("unsupported status %q", event.Status)
}

// NewCallStack creates an empty stack
func NewCallStack() *CallStack {
	return &CallStack{edges: graph.NewProjectMap("")}
}

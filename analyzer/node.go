package analyzer

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/viant/whyflow/inspector/graph"
	"github.com/viant/whyflow/inspector/javascript"
)

// collect adds a node for every named function-like declaration of source
func (a *Analyzer) collect(ctx context.Context, project *graph.ProjectMap, source *javascript.SourceFile) {
	javascript.Walk(source.Root(), func(n *sitter.Node) bool {
		if !declares(n) {
			return true
		}
		name := javascript.FunctionName(n, source.Source)
		if name == javascript.Anonymous {
			return true
		}
		line := javascript.Line(n)
		node := &graph.Node{
			ID:   javascript.NodeID(source.Path, name, line),
			Name: name,
			File: source.Path,
			Line: line,
			Docs: javascript.LeadingComment(n, source.Source),
		}
		if node.Docs == "" && a.describer != nil {
			node.Docs = a.describe(ctx, name, n.Content(source.Source))
		}
		if !project.AddNode(node) {
			a.logger.Debug("duplicate node id", "id", node.ID)
		}
		return true
	})
}

// declares returns true for declarations, methods and function values bound to a variable,
// class field, object key or assignment target
func declares(n *sitter.Node) bool {
	switch n.Type() {
	case "function_declaration", "generator_function_declaration", "method_definition":
		return n.ChildByFieldName("name") != nil
	}
	if !javascript.IsFunctionValue(n) {
		return false
	}
	parent := n.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "variable_declarator", "field_definition", "public_field_definition", "pair":
		return same(parent.ChildByFieldName("value"), n)
	case "assignment_expression":
		return same(parent.ChildByFieldName("right"), n)
	}
	return false
}

func same(value, n *sitter.Node) bool {
	return value != nil && value.StartByte() == n.StartByte() && value.EndByte() == n.EndByte()
}

func (a *Analyzer) describe(ctx context.Context, name, code string) string {
	text, err := a.describer.Describe(ctx, name, code)
	if err != nil {
		a.logger.Debug("describer failed", "function", name, "error", err)
		return NoDescription
	}
	if text = strings.TrimSpace(text); text == "" {
		return NoDescription
	}
	return text
}

// link adds calls edges for every call expression whose nearest enclosing function is a known node
func (a *Analyzer) link(project *graph.ProjectMap, source *javascript.SourceFile) {
	javascript.Walk(source.Root(), func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		caller := javascript.EnclosingFunction(n)
		if caller == nil {
			return true
		}
		callerID := javascript.FunctionID(source.Path, caller, source.Source)
		if project.Node(callerID) == nil {
			return true
		}
		callee := javascript.CalleeName(n, source.Source)
		if callee == "" {
			return true
		}
		site := &CallSite{File: source.Path, Line: javascript.Line(n), Caller: callerID, Callee: callee}
		for _, target := range a.resolver.Resolve(project, site) {
			project.AddEdge(&graph.Edge{Source: callerID, Target: target.ID, Type: graph.EdgeCalls})
		}
		return true
	})
}

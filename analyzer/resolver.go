package analyzer

import "github.com/viant/whyflow/inspector/graph"

// CallSite describes one call expression found inside a known function
type CallSite struct {
	File   string // file containing the call
	Line   int    // line of the call
	Caller string // caller node id
	Callee string // textual callee name
}

// Resolver maps a call site to candidate target nodes
type Resolver interface {
	Resolve(project *graph.ProjectMap, site *CallSite) []*graph.Node
}

// NameResolver links a call to every node sharing the callee's bare name.
// It performs no import, alias or type resolution.
type NameResolver struct{}

// Resolve returns all nodes named like the callee
func (NameResolver) Resolve(project *graph.ProjectMap, site *CallSite) []*graph.Node {
	return project.NodesByName(site.Callee)
}

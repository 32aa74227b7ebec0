package graph

import (
	"encoding/json"
	"sort"
)

// ProjectMap represents the static snapshot of one analysis run.
// Once published it is treated as read-only; refreshes build a new map with Merge.
type ProjectMap struct {
	Project string  `json:"project,omitempty" yaml:"project,omitempty"`
	Nodes   []*Node `json:"nodes" yaml:"nodes"`
	Edges   []*Edge `json:"edges" yaml:"edges"`

	nodeMap map[string]int   // node id to position
	nameMap map[string][]int // bare name to positions
	edgeMap map[Edge]bool
}

// NewProjectMap creates an empty map
func NewProjectMap(project string) *ProjectMap {
	return &ProjectMap{
		Project: project,
		Nodes:   []*Node{},
		Edges:   []*Edge{},
		nodeMap: map[string]int{},
		nameMap: map[string][]int{},
		edgeMap: map[Edge]bool{},
	}
}

// Empty returns true when nothing has been mapped yet
func (p *ProjectMap) Empty() bool {
	return p == nil || len(p.Nodes) == 0
}

// AddNode adds a node unless one with the same id exists; it returns true when added
func (p *ProjectMap) AddNode(node *Node) bool {
	p.ensureIndex()
	if _, ok := p.nodeMap[node.ID]; ok {
		return false
	}
	p.Nodes = append(p.Nodes, node)
	idx := len(p.Nodes) - 1
	p.nodeMap[node.ID] = idx
	p.nameMap[node.Name] = append(p.nameMap[node.Name], idx)
	return true
}

// AddEdge adds an edge unless the same ordered pair and type exists
func (p *ProjectMap) AddEdge(edge *Edge) bool {
	p.ensureIndex()
	if edge.Type == "" {
		edge.Type = EdgeCalls
	}
	if p.edgeMap[*edge] {
		return false
	}
	p.edgeMap[*edge] = true
	p.Edges = append(p.Edges, edge)
	return true
}

// Node returns a node by id
func (p *ProjectMap) Node(id string) *Node {
	if p == nil {
		return nil
	}
	if p.nodeMap == nil {
		for _, node := range p.Nodes {
			if node.ID == id {
				return node
			}
		}
		return nil
	}
	if idx, ok := p.nodeMap[id]; ok && idx < len(p.Nodes) {
		return p.Nodes[idx]
	}
	return nil
}

// NodesByName returns every node sharing the bare name
func (p *ProjectMap) NodesByName(name string) []*Node {
	if p == nil {
		return nil
	}
	var result []*Node
	if p.nameMap == nil {
		for _, node := range p.Nodes {
			if node.Name == name {
				result = append(result, node)
			}
		}
		return result
	}
	for _, idx := range p.nameMap[name] {
		result = append(result, p.Nodes[idx])
	}
	return result
}

// NodeInFile returns the node declared in file with the given name closest to line;
// line <= 0 selects the first declaration
func (p *ProjectMap) NodeInFile(file, name string, line int) *Node {
	var best *Node
	for _, node := range p.NodesByName(name) {
		if node.File != file {
			continue
		}
		if best == nil || line > 0 && distance(node.Line, line) < distance(best.Line, line) {
			best = node
		}
	}
	return best
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// Callees returns the targets of outgoing call edges in edge order
func (p *ProjectMap) Callees(id string) []string {
	var result []string
	for _, edge := range p.Edges {
		if edge.Source == id && edge.Type == EdgeCalls {
			result = append(result, edge.Target)
		}
	}
	return result
}

// Merge returns a new map holding every node and edge of p followed by the unseen ones of other.
// Existing identities are never removed.
func (p *ProjectMap) Merge(other *ProjectMap) *ProjectMap {
	project := ""
	if p != nil {
		project = p.Project
	}
	if project == "" && other != nil {
		project = other.Project
	}
	merged := NewProjectMap(project)
	for _, m := range []*ProjectMap{p, other} {
		if m == nil {
			continue
		}
		for _, node := range m.Nodes {
			cloned := *node
			merged.AddNode(&cloned)
		}
		for _, edge := range m.Edges {
			cloned := *edge
			merged.AddEdge(&cloned)
		}
	}
	return merged
}

// Files returns the distinct files referenced by nodes, sorted
func (p *ProjectMap) Files() []string {
	seen := map[string]bool{}
	var files []string
	for _, node := range p.Nodes {
		if !seen[node.File] {
			seen[node.File] = true
			files = append(files, node.File)
		}
	}
	sort.Strings(files)
	return files
}

// UnmarshalJSON accepts both "edges" and "links" keys
func (p *ProjectMap) UnmarshalJSON(data []byte) error {
	var aux struct {
		Project string  `json:"project"`
		Nodes   []*Node `json:"nodes"`
		Edges   []*Edge `json:"edges"`
		Links   []*Edge `json:"links"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = *NewProjectMap(aux.Project)
	for _, node := range aux.Nodes {
		if node != nil {
			p.AddNode(node)
		}
	}
	for _, edge := range append(aux.Edges, aux.Links...) {
		if edge != nil {
			p.AddEdge(edge)
		}
	}
	return nil
}

func (p *ProjectMap) ensureIndex() {
	if p.nodeMap != nil {
		return
	}
	p.nodeMap = map[string]int{}
	p.nameMap = map[string][]int{}
	p.edgeMap = map[Edge]bool{}
	nodes, edges := p.Nodes, p.Edges
	p.Nodes, p.Edges = nil, nil
	for _, node := range nodes {
		p.AddNode(node)
	}
	for _, edge := range edges {
		p.AddEdge(edge)
	}
	if p.Nodes == nil {
		p.Nodes = []*Node{}
	}
	if p.Edges == nil {
		p.Edges = []*Edge{}
	}
}

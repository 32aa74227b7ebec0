package correlator

import (
	"github.com/viant/whyflow/inspector/graph"
)

// Hint types
const (
	HintMissing    = "missing"
	HintUnexpected = "unexpected"
)

// ComparisonResult relates an observed run to the execution expected from the static graph
type ComparisonResult struct {
	StartFn    string   `json:"startFn" yaml:"startFn"`
	Expected   []string `json:"expected" yaml:"expected"`
	Actual     []string `json:"actual" yaml:"actual"`
	Matched    []string `json:"matched" yaml:"matched"`
	Missing    []string `json:"missing" yaml:"missing"`
	Unexpected []string `json:"unexpected" yaml:"unexpected"`
	StopPoint  string   `json:"stopPoint,omitempty" yaml:"stopPoint,omitempty"`
}

// Facts are the comparison outcome passed to the explainer
type Facts struct {
	Matched    []string `json:"matched" yaml:"matched"`
	Missing    []string `json:"missing" yaml:"missing"`
	Unexpected []string `json:"unexpected" yaml:"unexpected"`
	StopPoint  string   `json:"stopPoint,omitempty" yaml:"stopPoint,omitempty"`
}

// Hint explains one divergence
type Hint struct {
	Type   string `json:"type" yaml:"type"`
	Fn     string `json:"fn" yaml:"fn"`
	Reason string `json:"reason" yaml:"reason"`
}

// ExplanationModel is the structured divergence description
type ExplanationModel struct {
	StartFn string `json:"startFn" yaml:"startFn"`
	Facts   Facts  `json:"facts" yaml:"facts"`
	Hints   []Hint `json:"hints" yaml:"hints"`
}

// Expected returns the nodes reachable from start over calls edges in depth first preorder
func Expected(m *graph.ProjectMap, start string) []string {
	var result []string
	visited := map[string]bool{}
	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		result = append(result, id)
		for _, callee := range m.Callees(id) {
			visit(callee)
		}
	}
	if start != "" {
		visit(start)
	}
	return result
}

// Compare compares the distinct nodes entered by a run with the expected execution from start.
// The stop point is the failed node when known, otherwise the last matched node with a missing callee.
func Compare(m *graph.ProjectMap, start string, actual []string, failed string) *ComparisonResult {
	ret := &ComparisonResult{
		StartFn:    start,
		Expected:   Expected(m, start),
		Actual:     distinct(actual),
		Matched:    []string{},
		Missing:    []string{},
		Unexpected: []string{},
	}
	observed := index(ret.Actual)
	expected := index(ret.Expected)
	for _, id := range ret.Expected {
		if observed[id] {
			ret.Matched = append(ret.Matched, id)
		} else {
			ret.Missing = append(ret.Missing, id)
		}
	}
	for _, id := range ret.Actual {
		if !expected[id] {
			ret.Unexpected = append(ret.Unexpected, id)
		}
	}
	ret.StopPoint = failed
	if ret.StopPoint == "" {
		missing := index(ret.Missing)
		for _, id := range ret.Matched {
			for _, callee := range m.Callees(id) {
				if missing[callee] {
					ret.StopPoint = id
					break
				}
			}
		}
	}
	return ret
}

// Model derives the explanation model with a hint per divergence
func (r *ComparisonResult) Model(m *graph.ProjectMap) *ExplanationModel {
	ret := &ExplanationModel{
		StartFn: r.StartFn,
		Facts:   Facts{Matched: r.Matched, Missing: r.Missing, Unexpected: r.Unexpected, StopPoint: r.StopPoint},
		Hints:   []Hint{},
	}
	observed := index(r.Actual)
	for _, id := range r.Missing {
		reason := "not reached from " + r.StartFn
		for _, caller := range callers(m, id) {
			if observed[caller] {
				reason = "expected call from " + caller + " did not happen"
				if caller == r.StopPoint {
					reason += "; execution stopped at " + caller
				}
				break
			}
		}
		ret.Hints = append(ret.Hints, Hint{Type: HintMissing, Fn: id, Reason: reason})
	}
	for _, id := range r.Unexpected {
		ret.Hints = append(ret.Hints, Hint{Type: HintUnexpected, Fn: id, Reason: "executed but not reachable from " + r.StartFn + " in the static graph"})
	}
	return ret
}

func callers(m *graph.ProjectMap, id string) []string {
	var result []string
	for _, edge := range m.Edges {
		if edge.Target == id && edge.Type == graph.EdgeCalls {
			result = append(result, edge.Source)
		}
	}
	return result
}

func distinct(ids []string) []string {
	result := []string{}
	seen := map[string]bool{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}

func index(ids []string) map[string]bool {
	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		result[id] = true
	}
	return result
}

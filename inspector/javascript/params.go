package javascript

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ComplexParam is the placeholder recorded for destructured, rest and default parameters
const ComplexParam = "complex-param"

// Param describes one formal parameter
type Param struct {
	Name   string // identifier for simple bindings, raw source otherwise
	Simple bool   // plain identifier binding without default value
}

// Params returns the formal parameters of a function-like node
func Params(fn *sitter.Node, src []byte) []Param {
	if single := fn.ChildByFieldName("parameter"); single != nil {
		return []Param{param(single, src)}
	}
	list := fn.ChildByFieldName("parameters")
	if list == nil {
		return nil
	}
	var result []Param
	for i := 0; i < int(list.NamedChildCount()); i++ {
		child := list.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		result = append(result, param(child, src))
	}
	return result
}

func param(n *sitter.Node, src []byte) Param {
	switch n.Type() {
	case "identifier":
		return Param{Name: n.Content(src), Simple: true}
	case "required_parameter", "optional_parameter":
		pattern := n.ChildByFieldName("pattern")
		if pattern != nil && pattern.Type() == "identifier" && n.ChildByFieldName("value") == nil {
			return Param{Name: pattern.Content(src), Simple: true}
		}
	}
	return Param{Name: strings.TrimSpace(n.Content(src))}
}

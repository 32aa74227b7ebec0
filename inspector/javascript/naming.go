package javascript

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Anonymous is the name used when a function has no declared identifier
const Anonymous = "anonymous"

// function-like node kinds across the javascript, typescript and tsx grammars
var functionKinds = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"function":                       true,
	"function_expression":            true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
}

// IsFunction returns true for function-like nodes
func IsFunction(n *sitter.Node) bool {
	return n != nil && functionKinds[n.Type()]
}

// IsFunctionValue returns true for function or arrow expressions used as a value
func IsFunctionValue(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "function", "function_expression", "generator_function", "arrow_function":
		return true
	}
	return false
}

// Line returns the 1-based line of the node start
func Line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// NodeID builds the canonical node id: relativeFilePath:functionName:definitionLine
func NodeID(relPath, name string, line int) string {
	if name == "" {
		name = Anonymous
	}
	return relPath + ":" + name + ":" + strconv.Itoa(line)
}

// FunctionID returns the canonical id of a function-like node
func FunctionID(relPath string, fn *sitter.Node, src []byte) string {
	return NodeID(relPath, FunctionName(fn, src), Line(fn))
}

// FunctionName resolves the declared name of a function-like node.
// Own identifiers win, then the binding the function is assigned to.
func FunctionName(fn *sitter.Node, src []byte) string {
	if name := ownName(fn, src); name != "" {
		return name
	}
	if name := bindingName(fn, src); name != "" {
		return name
	}
	return Anonymous
}

func ownName(fn *sitter.Node, src []byte) string {
	if fn.Type() == "arrow_function" {
		return ""
	}
	return propertyName(fn.ChildByFieldName("name"), src)
}

// bindingName returns the identifier a function value is bound to
func bindingName(fn *sitter.Node, src []byte) string {
	parent := fn.Parent()
	if parent == nil {
		return ""
	}
	switch parent.Type() {
	case "variable_declarator":
		if sameNode(parent.ChildByFieldName("value"), fn) {
			if name := parent.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				return name.Content(src)
			}
		}
	case "field_definition":
		if sameNode(parent.ChildByFieldName("value"), fn) {
			return propertyName(parent.ChildByFieldName("property"), src)
		}
	case "public_field_definition":
		if sameNode(parent.ChildByFieldName("value"), fn) {
			return propertyName(parent.ChildByFieldName("name"), src)
		}
	case "pair":
		if sameNode(parent.ChildByFieldName("value"), fn) {
			return propertyName(parent.ChildByFieldName("key"), src)
		}
	case "assignment_expression":
		if sameNode(parent.ChildByFieldName("right"), fn) {
			left := parent.ChildByFieldName("left")
			if left == nil {
				return ""
			}
			switch left.Type() {
			case "identifier":
				return left.Content(src)
			case "member_expression":
				return propertyName(left.ChildByFieldName("property"), src)
			}
		}
	}
	return ""
}

// propertyName returns the textual name of an identifier-like node; computed names resolve to ""
func propertyName(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier", "property_identifier", "private_property_identifier",
		"shorthand_property_identifier", "type_identifier", "number":
		return n.Content(src)
	case "string":
		return strings.Trim(n.Content(src), "'\"`")
	}
	return ""
}

// CalleeName resolves the textual callee of a call expression: a bare identifier
// or the property of a member access. Computed access and other callee shapes yield "".
func CalleeName(call *sitter.Node, src []byte) string {
	callee := call.ChildByFieldName("function")
	if callee == nil {
		return ""
	}
	switch callee.Type() {
	case "identifier":
		return callee.Content(src)
	case "member_expression":
		prop := callee.ChildByFieldName("property")
		if prop == nil {
			return ""
		}
		switch prop.Type() {
		case "property_identifier", "private_property_identifier":
			return prop.Content(src)
		}
	}
	return ""
}

// EnclosingFunction returns the nearest function-like ancestor of n, or nil at top level
func EnclosingFunction(n *sitter.Node) *sitter.Node {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		if IsFunction(cur) {
			return cur
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

package javascript

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// LeadingComment returns the text of a JSDoc block directly above a declaration
func LeadingComment(fn *sitter.Node, src []byte) string {
	anchor := declarationAnchor(fn)
	prev := anchor.PrevNamedSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	if int(prev.EndPoint().Row)+1 < int(anchor.StartPoint().Row) {
		return ""
	}
	text := prev.Content(src)
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	return cleanDoc(text)
}

// declarationAnchor returns the statement carrying the comment for fn
func declarationAnchor(fn *sitter.Node) *sitter.Node {
	anchor := fn
	if parent := fn.Parent(); parent != nil {
		switch parent.Type() {
		case "variable_declarator":
			if decl := parent.Parent(); decl != nil {
				anchor = decl
			}
		case "field_definition", "public_field_definition", "pair":
			anchor = parent
		}
	}
	if parent := anchor.Parent(); parent != nil && parent.Type() == "export_statement" {
		anchor = parent
	}
	return anchor
}

func cleanDoc(text string) string {
	text = strings.TrimSuffix(strings.TrimPrefix(text, "/**"), "*/")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		if strings.HasPrefix(line, "@") {
			break
		}
		if line == "" {
			if len(lines) > 0 {
				break
			}
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " ")
}

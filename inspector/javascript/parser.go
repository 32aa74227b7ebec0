package javascript

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Extensions lists source file extensions handled by the parser
var Extensions = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}

// SourceFile represents one parsed source file
type SourceFile struct {
	Path   string // path relative to the project root, slash separated
	Source []byte
	Tree   *sitter.Tree
}

// Root returns the program node
func (f *SourceFile) Root() *sitter.Node {
	return f.Tree.RootNode()
}

// Parser parses JavaScript and TypeScript sources with tree-sitter
type Parser struct{}

// NewParser creates a parser
func NewParser() *Parser {
	return &Parser{}
}

// IsSource returns true if the file extension is handled by the parser
func IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if strings.HasSuffix(path, ".d.ts") {
		return false
	}
	for _, candidate := range Extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Language returns the grammar for the supplied file name
func Language(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// Parse parses src; a tree containing syntax errors is reported as an error
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*SourceFile, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(Language(path))
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("failed to parse %s: empty tree", path)
	}
	if root.HasError() {
		return nil, fmt.Errorf("failed to parse %s: syntax error at line %d", path, firstErrorLine(root))
	}
	return &SourceFile{Path: filepath.ToSlash(path), Source: src, Tree: tree}, nil
}

func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return Line(n)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		return firstErrorLine(child)
	}
	return Line(n)
}

// Walk visits n and its descendants in document order; returning false skips the children
func Walk(n *sitter.Node, visit func(n *sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		Walk(n.NamedChild(i), visit)
	}
}

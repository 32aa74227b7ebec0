package instrumenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/viant/whyflow/inspector/javascript"
)

// insertion adds text at offset of the original source; nothing is ever removed
type insertion struct {
	offset  int
	depth   int
	closing bool
	text    string
}

// rank orders insertions sharing an offset: openings outermost first, then closings innermost first
func (i *insertion) rank() int {
	if i.closing {
		return 1<<20 - i.depth
	}
	return i.depth
}

// Instrument rewrites src; path is the project relative path used to build node ids.
// Every function-like body reports START on entry, END on normal completion and FAIL
// followed by a rethrow of the original value.
func (i *Instrumenter) Instrument(ctx context.Context, path string, src []byte) ([]byte, error) {
	source, err := i.parser.Parse(ctx, path, src)
	if err != nil {
		return nil, &InstrumentationError{File: path, Err: err}
	}
	r := &rewriter{path: source.Path, src: src}
	r.visit(source.Root(), 0)
	r.edits = append(r.edits, i.prelude(source))
	return apply(src, r.edits), nil
}

type rewriter struct {
	path  string
	src   []byte
	edits []*insertion
}

func (r *rewriter) visit(n *sitter.Node, depth int) {
	if javascript.IsFunction(n) {
		r.wrap(n, depth)
		depth++
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		r.visit(n.NamedChild(i), depth)
	}
}

func (r *rewriter) wrap(fn *sitter.Node, depth int) {
	body := fn.ChildByFieldName("body")
	if body == nil {
		return
	}
	id := literal(javascript.FunctionID(r.path, fn, r.src))
	start := fmt.Sprintf(`%s(%s,"START",[%s]); let __wf_ok = true; try {`, Sink, id, r.args(fn))
	guard := fmt.Sprintf(` catch (__wf_err) { __wf_ok = false; %s(%s,"FAIL",__wf_err); throw __wf_err; } finally { if (__wf_ok) %s(%s,"END"); }`, Sink, id, Sink, id)
	if body.Type() != "statement_block" {
		r.edits = append(r.edits,
			&insertion{offset: int(body.StartByte()), depth: depth, text: "{ " + start + " return ("},
			&insertion{offset: int(body.EndByte()), depth: depth, closing: true, text: "); }" + guard + " }"},
		)
		return
	}
	offset, directive := prologueEnd(body, int(body.StartByte())+1)
	if directive {
		start = ";" + start
	}
	r.edits = append(r.edits,
		&insertion{offset: offset, depth: depth, text: " " + start},
		&insertion{offset: int(body.EndByte()) - 1, depth: depth, closing: true, text: "}" + guard + " "},
	)
}

func (r *rewriter) args(fn *sitter.Node) string {
	var args []string
	for _, param := range javascript.Params(fn, r.src) {
		if param.Simple {
			args = append(args, param.Name)
			continue
		}
		args = append(args, literal(javascript.ComplexParam))
	}
	return strings.Join(args, ", ")
}

// prologueEnd returns the offset following the directive prologue ("use strict", "use client") of a
// program or statement block; offset is returned unchanged when there is no directive
func prologueEnd(block *sitter.Node, offset int) (int, bool) {
	directive := false
	for i := 0; i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		switch {
		case child.Type() == "comment", child.Type() == "hash_bang_line":
			continue
		case isDirective(child):
			offset = int(child.EndByte())
			directive = true
			continue
		}
		break
	}
	return offset, directive
}

func isDirective(n *sitter.Node) bool {
	return n.Type() == "expression_statement" && n.NamedChildCount() == 1 && n.NamedChild(0).Type() == "string"
}

func literal(text string) string {
	data, _ := json.Marshal(text)
	return string(data)
}

func apply(src []byte, edits []*insertion) []byte {
	sort.SliceStable(edits, func(a, b int) bool {
		if edits[a].offset != edits[b].offset {
			return edits[a].offset < edits[b].offset
		}
		return edits[a].rank() < edits[b].rank()
	})
	var buf bytes.Buffer
	prev := 0
	for _, edit := range edits {
		buf.Write(src[prev:edit.offset])
		buf.WriteString(edit.text)
		prev = edit.offset
	}
	buf.Write(src[prev:])
	return buf.Bytes()
}

package graph

// Edge types
const (
	EdgeCalls   = "calls"
	EdgeDefines = "defines" // reserved, not produced by the analyzer
	EdgeExports = "exports" // reserved, not produced by the analyzer
)

// Node represents one function-like declaration
type Node struct {
	ID   string `json:"id" yaml:"id"`                         // relativeFilePath:functionName:definitionLine
	Name string `json:"name" yaml:"name"`                     // bare function name
	File string `json:"file" yaml:"file"`                     // path relative to the project root
	Line int    `json:"line" yaml:"line"`                     // 1-based definition line
	Docs string `json:"docs,omitempty" yaml:"docs,omitempty"` // optional description
}

// Edge represents a directed relation between two nodes
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Type   string `json:"type" yaml:"type"`
}

package repository

// Project types
const (
	TypeJavaScript = "javascript"
	TypeTypeScript = "typescript"
	TypeGo         = "go"
	TypeGit        = "git"
	TypeUnknown    = "unknown"
)

// Project represents information about a detected project
type Project struct {
	Root         string // absolute path to the project root directory
	Type         string // project type derived from the marker found
	Name         string // name from package.json, go.mod or the directory
	RelativePath string // path from the project root to the inspected location
	Origin       string // git origin url, when known
}

package repository

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"golang.org/x/mod/modfile"
)

// Detector identifies project root folders and provides project-related information
type Detector struct {
	fs afs.Service
	// project root marker files in priority order
	markers []string
}

// New creates a new project detector instance
func New() *Detector {
	return &Detector{
		fs: afs.New(),
		markers: []string{
			"package.json",  // JavaScript/Node projects
			"tsconfig.json", // TypeScript projects without package.json
			"jsconfig.json",
			"go.mod",
			".git", // Generic VCS marker
		},
	}
}

// DetectProject identifies the project root for the given path and returns project info.
// When no marker is found the path itself (or its directory) is the root.
func (d *Detector) DetectProject(ctx context.Context, location string) (*Project, error) {
	absPath, err := filepath.Abs(location)
	if err != nil {
		return nil, err
	}
	startDir := absPath
	fileInfo, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if !fileInfo.IsDir() {
		startDir = filepath.Dir(absPath)
	}

	info := &Project{Type: TypeUnknown, Root: startDir}
	if rootPath, marker := d.findProjectRoot(startDir); rootPath != "" {
		info.Root = rootPath
		info.Type = projectType(rootPath, marker)
	}
	relPath, err := filepath.Rel(info.Root, absPath)
	if err != nil {
		relPath = filepath.Base(absPath)
	}
	info.RelativePath = filepath.ToSlash(relPath)
	info.Name = d.projectName(ctx, info.Root)
	if gitRoot := findGitRoot(info.Root); gitRoot != "" {
		info.Origin = extractGitOrigin(gitRoot)
	}
	return info, nil
}

// findProjectRoot searches up from startDir for project markers
func (d *Detector) findProjectRoot(startDir string) (string, string) {
	dir := startDir
	for {
		for _, marker := range d.markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, marker
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ""
}

// projectName prefers package.json, then go.mod, then the directory name
func (d *Detector) projectName(ctx context.Context, rootPath string) string {
	if name := d.packageName(ctx, filepath.Join(rootPath, "package.json")); name != "" {
		return name
	}
	if name := d.moduleName(ctx, filepath.Join(rootPath, "go.mod")); name != "" {
		return name
	}
	return filepath.Base(rootPath)
}

func (d *Detector) packageName(ctx context.Context, packageJSONPath string) string {
	content, err := d.fs.DownloadWithURL(ctx, packageJSONPath)
	if err != nil {
		return ""
	}
	pkg := struct {
		Name string `json:"name"`
	}{}
	if err = json.Unmarshal(content, &pkg); err != nil {
		return ""
	}
	return pkg.Name
}

func (d *Detector) moduleName(ctx context.Context, goModPath string) string {
	content, err := d.fs.DownloadWithURL(ctx, goModPath)
	if err != nil || len(content) == 0 {
		return ""
	}
	mod, err := modfile.ParseLax(goModPath, content, nil)
	if err != nil || mod.Module == nil {
		return ""
	}
	return mod.Module.Mod.Path
}

// findGitRoot finds the root of the git repository containing the given directory
func findGitRoot(startDir string) string {
	dir := startDir
	homeDir := os.Getenv("HOME")
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir || homeDir == parent {
			return ""
		}
		dir = parent
	}
}

// extractGitOrigin extracts the origin URL from git config
func extractGitOrigin(gitRoot string) string {
	data, err := os.ReadFile(filepath.Join(gitRoot, ".git", "config"))
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	foundRemote := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			foundRemote = strings.Contains(line, `[remote "origin"]`)
			continue
		}
		if foundRemote && strings.HasPrefix(line, "url = ") {
			return strings.TrimPrefix(line, "url = ")
		}
	}
	return ""
}

// projectType identifies the type of project based on the marker file
func projectType(rootPath, marker string) string {
	switch marker {
	case "package.json", "jsconfig.json":
		if _, err := os.Stat(filepath.Join(rootPath, "tsconfig.json")); err == nil {
			return TypeTypeScript
		}
		return TypeJavaScript
	case "tsconfig.json":
		return TypeTypeScript
	case "go.mod":
		return TypeGo
	case ".git":
		return TypeGit
	}
	return TypeUnknown
}

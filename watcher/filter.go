package watcher

import (
	"context"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	afsurl "github.com/viant/afs/url"
	"github.com/viant/whyflow/inspector/javascript"
)

// ScriptPath normalizes a reported script location and returns it relative to the project root.
// Scripts outside the root or matching a noise keyword are rejected.
func (w *Watcher) ScriptPath(location string) (string, bool) {
	if location == "" {
		return "", false
	}
	candidate := location
	if strings.HasPrefix(candidate, "file://") {
		candidate = strings.TrimPrefix(candidate, "file://")
	} else if strings.Contains(candidate, "://") || strings.HasPrefix(candidate, "node:") {
		return "", false
	}
	if unescaped, err := url.PathUnescape(candidate); err == nil {
		candidate = unescaped
	}
	candidate = filepath.ToSlash(candidate)
	if len(candidate) > 2 && candidate[0] == '/' && candidate[2] == ':' {
		candidate = candidate[1:]
	}
	rel, ok := w.relative(candidate)
	if !ok && strings.Contains(candidate, "_") {
		rel, ok = w.relative(strings.ReplaceAll(candidate, "_", "/"))
	}
	if !ok || w.noisy(rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) relative(candidate string) (string, bool) {
	root := w.config.Root
	if root == "" || len(candidate) <= len(root)+1 {
		return "", false
	}
	if !strings.EqualFold(candidate[:len(root)], root) || candidate[len(root)] != '/' {
		return "", false
	}
	return candidate[len(root)+1:], true
}

func (w *Watcher) noisy(rel string) bool {
	for _, keyword := range w.config.Noise {
		if keyword != "" && containsFold(rel, keyword) {
			return true
		}
	}
	return false
}

// Executed returns true for named user functions with a positive hit count in the snapshot
func Executed(fn *FunctionCoverage) bool {
	name := fn.FunctionName
	if fn.Hits() <= 0 || name == "" || name == javascript.Anonymous {
		return false
	}
	return !strings.HasPrefix(name, "__")
}

// nodeID resolves the function against the static map, falling back to the line of its start offset
func (w *Watcher) nodeID(rel string, fn *FunctionCoverage) string {
	line := w.line(rel, fn.Ranges[0].StartOffset)
	if w.projectMap != nil {
		if node := w.projectMap().NodeInFile(rel, fn.FunctionName, line); node != nil {
			return node.ID
		}
	}
	if line == 0 {
		line = 1
	}
	return javascript.NodeID(rel, fn.FunctionName, line)
}

// line returns the 1-based line of offset in the project file, or 0 when the file cannot be read.
// Coverage offsets count UTF-16 code units.
func (w *Watcher) line(rel string, offset int) int {
	breaks, ok := w.lines[rel]
	if !ok {
		breaks = nil
		if code, err := w.fs.DownloadWithURL(context.Background(), afsurl.Join(w.config.Root, rel)); err == nil {
			breaks = lineBreaks(string(code))
		}
		w.lines[rel] = breaks
	}
	if breaks == nil {
		return 0
	}
	return sort.SearchInts(breaks, offset) + 1
}

// lineBreaks returns the UTF-16 offsets of every newline in code
func lineBreaks(code string) []int {
	breaks := []int{}
	units := 0
	for _, r := range code {
		if r == '\n' {
			breaks = append(breaks, units)
		}
		units++
		if r > 0xFFFF {
			units++ // surrogate pair
		}
	}
	return breaks
}

// resetLines drops cached line breaks once the static map has been rebuilt
func (w *Watcher) resetLines() {
	if w.projectMap == nil {
		return
	}
	if current := w.projectMap(); current != w.linesMap {
		w.lines = map[string][]int{}
		w.linesMap = current
	}
}

func containsFold(text, keyword string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(keyword))
}

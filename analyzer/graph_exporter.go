package analyzer

import (
	"context"

	"github.com/viant/afs"
	"github.com/viant/whyflow/inspector/graph"
)

// Exporter receives the project map once an analysis completes
type Exporter interface {
	Export(ctx context.Context, project *graph.ProjectMap) error
}

// FileExporter writes the static map artifact after each analysis pass
type FileExporter struct {
	fs  afs.Service
	URL string
}

// Export writes the map as JSON
func (e *FileExporter) Export(ctx context.Context, project *graph.ProjectMap) error {
	return graph.WriteMap(ctx, e.fs, e.URL, project)
}

// NewFileExporter creates an exporter writing to URL
func NewFileExporter(fs afs.Service, URL string) *FileExporter {
	if fs == nil {
		fs = afs.New()
	}
	return &FileExporter{fs: fs, URL: URL}
}

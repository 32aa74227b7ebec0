package instrumenter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/whyflow/analyzer"
	"github.com/viant/whyflow/inspector/javascript"
)

// Report summarizes a project instrumentation
type Report struct {
	Instrumented []string                `yaml:"instrumented"`
	Copied       []string                `yaml:"copied"`
	Errors       []*InstrumentationError `yaml:"-"`
}

// InstrumentFile instruments root/rel into outDir/rel
func (i *Instrumenter) InstrumentFile(ctx context.Context, root, rel, outDir string) error {
	code, err := i.fs.DownloadWithURL(ctx, url.Join(root, rel))
	if err != nil {
		return &InstrumentationError{File: rel, Err: err}
	}
	instrumented, err := i.Instrument(ctx, rel, code)
	if err != nil {
		return err
	}
	if err = i.fs.Upload(ctx, url.Join(outDir, rel), 0644, bytes.NewReader(instrumented)); err != nil {
		return &InstrumentationError{File: rel, Err: err}
	}
	return nil
}

// InstrumentProject writes an instrumented copy of root into outDir. Sources are rewritten,
// other files are copied unchanged; a file failing instrumentation is copied unchanged
// and reported, never aborting the run.
func (i *Instrumenter) InstrumentProject(ctx context.Context, root, outDir string) (*Report, error) {
	root, outDir = analyzer.NormalizeRoot(root), analyzer.NormalizeRoot(outDir)
	outRel := ""
	if strings.HasPrefix(outDir, root+"/") {
		outRel = strings.TrimPrefix(outDir, root+"/")
	}
	var sources, others []string
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		rel := path.Join(parent, info.Name())
		if info.IsDir() {
			return i.match(info) && rel != outRel, nil
		}
		if javascript.IsSource(info.Name()) && i.match(info) {
			sources = append(sources, rel)
		} else {
			others = append(others, rel)
		}
		return true, nil
	}
	if err := i.fs.Walk(ctx, root, visitor); err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(sources)
	sort.Strings(others)
	report := &Report{}
	for _, rel := range sources {
		err := i.InstrumentFile(ctx, root, rel, outDir)
		if err == nil {
			report.Instrumented = append(report.Instrumented, rel)
			continue
		}
		var instrumentationErr *InstrumentationError
		if !errors.As(err, &instrumentationErr) {
			instrumentationErr = &InstrumentationError{File: rel, Err: err}
		}
		i.logger.Warn("copying source without instrumentation", "file", rel, "error", err)
		report.Errors = append(report.Errors, instrumentationErr)
		others = append(others, rel)
	}
	for _, rel := range others {
		if err := i.copy(ctx, root, rel, outDir); err != nil {
			return report, err
		}
		report.Copied = append(report.Copied, rel)
	}
	sort.Strings(report.Copied)
	i.logger.Info("instrumented project", "root", root, "out", outDir, "instrumented", len(report.Instrumented), "copied", len(report.Copied), "failed", len(report.Errors))
	return report, nil
}

func (i *Instrumenter) copy(ctx context.Context, root, rel, outDir string) error {
	code, err := i.fs.DownloadWithURL(ctx, url.Join(root, rel))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if err = i.fs.Upload(ctx, url.Join(outDir, rel), 0644, bytes.NewReader(code)); err != nil {
		return fmt.Errorf("failed to copy %s: %w", rel, err)
	}
	return nil
}

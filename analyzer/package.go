package analyzer

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/whyflow/inspector/graph"
	"github.com/viant/whyflow/inspector/javascript"
	"golang.org/x/sync/errgroup"
)

// sourceFiles walks root and returns matched files relative to root, sorted
func (a *Analyzer) sourceFiles(ctx context.Context, root string) ([]string, error) {
	var files []string
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if !a.match(info) {
			return false, nil
		}
		rel := path.Join(parent, info.Name())
		if info.IsDir() {
			return !a.excluded[rel], nil
		}
		files = append(files, rel)
		return true, nil
	}
	if err := a.fs.Walk(ctx, root, visitor); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// parseAll parses files in parallel; the result keeps the input order and holds nil for skipped files
func (a *Analyzer) parseAll(ctx context.Context, root string, files []string) ([]*javascript.SourceFile, error) {
	result := make([]*javascript.SourceFile, len(files))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(a.concurrency)
	for i, file := range files {
		group.Go(func() error {
			code, err := a.fs.DownloadWithURL(ctx, url.Join(root, file))
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.report(file, err)
				return nil
			}
			source, err := a.parser.Parse(ctx, file, code)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.report(file, err)
				return nil
			}
			result[i] = source
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// NormalizeRoot returns an absolute slash separated root for local paths; URLs are kept
func NormalizeRoot(root string) string {
	if strings.Contains(root, "://") {
		return strings.TrimRight(root, "/")
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.ToSlash(filepath.Clean(root))
}

// Fingerprint digests every matched source under root; an unchanged project yields the same value
func (a *Analyzer) Fingerprint(ctx context.Context, root string) (uint64, error) {
	root = NormalizeRoot(root)
	files, err := a.sourceFiles(ctx, root)
	if err != nil {
		return 0, err
	}
	fingerprint, err := graph.NewFingerprint()
	if err != nil {
		return 0, err
	}
	for _, file := range files {
		code, err := a.fs.DownloadWithURL(ctx, url.Join(root, file))
		if err != nil {
			continue
		}
		fingerprint.Add(file, code)
	}
	return fingerprint.Sum(), nil
}

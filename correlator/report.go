package correlator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/whyflow/inspector/graph"
	"gopkg.in/yaml.v3"
)

// Explanation is the persisted explanation artifact
type Explanation struct {
	ID          string `json:"id" yaml:"id"`
	Explanation string `json:"explanation" yaml:"explanation"`
}

// Report holds everything known about one explained failure
type Report struct {
	ID          string            `json:"id" yaml:"id"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
	Node        *graph.Node       `json:"node,omitempty" yaml:"node,omitempty"`
	Comparison  *ComparisonResult `json:"comparison" yaml:"comparison"`
	Model       *ExplanationModel `json:"model" yaml:"model"`
	Explanation string            `json:"explanation" yaml:"explanation"`
	CreatedAt   time.Time         `json:"createdAt" yaml:"createdAt"`
}

// Artifact returns the persisted form
func (r *Report) Artifact() *Explanation {
	return &Explanation{ID: r.ID, Explanation: r.Explanation}
}

// YAML renders the report for human consumption
func (r *Report) YAML() ([]byte, error) {
	buf := &bytes.Buffer{}
	encoder := yaml.NewEncoder(buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(r); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// write replaces the artifact; local files go through a temporary sibling renamed over the
// target so readers never see a partial file
func (c *Correlator) write(ctx context.Context, report *Report) error {
	data, err := json.MarshalIndent(report.Artifact(), "", "  ")
	if err != nil {
		return err
	}
	if url.Scheme(c.URL, file.Scheme) != file.Scheme {
		if err = c.fs.Upload(ctx, c.URL, 0644, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("failed to write %v: %w", c.URL, err)
		}
		return nil
	}
	tmp := c.URL + ".tmp"
	if err = c.fs.Upload(ctx, tmp, 0644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %v: %w", tmp, err)
	}
	if err = os.Rename(url.Path(tmp), url.Path(c.URL)); err != nil {
		return fmt.Errorf("failed to replace %v: %w", c.URL, err)
	}
	return nil
}

// ReadExplanation loads an explanation artifact
func ReadExplanation(ctx context.Context, fs afs.Service, URL string) (*Explanation, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, err
	}
	ret := &Explanation{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("invalid explanation %v: %w", URL, err)
	}
	return ret, nil
}

package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/afs"
)

// MapFile is the default static map artifact name
const MapFile = "graph.json"

// Encode renders the map as indented JSON; equal maps encode to identical bytes
func Encode(m *ProjectMap) ([]byte, error) {
	if m == nil {
		m = NewProjectMap("")
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteMap writes the static map artifact
func WriteMap(ctx context.Context, fs afs.Service, URL string, m *ProjectMap) error {
	data, err := Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode project map: %w", err)
	}
	if err = fs.Upload(ctx, URL, 0644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write project map %s: %w", URL, err)
	}
	return nil
}

// ReadMap reads the static map artifact; a missing artifact yields an empty map
func ReadMap(ctx context.Context, fs afs.Service, URL string) (*ProjectMap, error) {
	exists, err := fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check project map %s: %w", URL, err)
	}
	if !exists {
		return NewProjectMap(""), nil
	}
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read project map %s: %w", URL, err)
	}
	result := &ProjectMap{}
	if err = json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("invalid project map %s: %w", URL, err)
	}
	return result, nil
}

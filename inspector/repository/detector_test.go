package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestDetector_DetectProject(t *testing.T) {
	tests := []struct {
		description string
		files       map[string]string
		location    string
		expectType  string
		expectName  string
		expectRel   string
		expectRoot  string
		origin      string
	}{
		{
			description: "node project from nested file",
			files: map[string]string{
				"package.json":    `{"name": "checkout-app", "version": "1.0.0"}`,
				"src/lib/cart.js": "export function total() {}",
			},
			location:   "src/lib/cart.js",
			expectType: TypeJavaScript,
			expectName: "checkout-app",
			expectRel:  "src/lib/cart.js",
		},
		{
			description: "typescript project",
			files: map[string]string{
				"package.json":  `{"name": "@acme/api"}`,
				"tsconfig.json": `{}`,
				"src/index.ts":  "export const main = () => 1",
			},
			location:   "src",
			expectType: TypeTypeScript,
			expectName: "@acme/api",
			expectRel:  "src",
		},
		{
			description: "go module name",
			files: map[string]string{
				"go.mod":     "module github.com/acme/tool\n\ngo 1.22\n",
				"web/app.js": "function a() {}",
			},
			location:   "web/app.js",
			expectType: TypeGo,
			expectName: "github.com/acme/tool",
			expectRel:  "web/app.js",
		},
		{
			description: "git origin",
			files: map[string]string{
				".git/config":  "[core]\n\tbare = false\n[remote \"origin\"]\n\turl = git@github.com:acme/shop.git\n",
				"package.json": `{"name": "shop"}`,
			},
			location:   ".",
			expectType: TypeJavaScript,
			expectName: "shop",
			expectRel:  ".",
			origin:     "git@github.com:acme/shop.git",
		},
		{
			description: "invalid package.json falls back to directory",
			files: map[string]string{
				"package.json": `{"name": `,
			},
			location:   ".",
			expectType: TypeJavaScript,
			expectRel:  ".",
		},
	}
	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			root := t.TempDir()
			writeFiles(t, root, tc.files)
			project, err := New().DetectProject(context.Background(), filepath.Join(root, tc.location))
			require.NoError(t, err)
			assert.Equal(t, root, project.Root)
			assert.Equal(t, tc.expectType, project.Type)
			expectName := tc.expectName
			if expectName == "" {
				expectName = filepath.Base(root)
			}
			assert.Equal(t, expectName, project.Name)
			assert.Equal(t, tc.expectRel, project.RelativePath)
			assert.Equal(t, tc.origin, project.Origin)
		})
	}
}

func TestDetector_DetectProjectMissing(t *testing.T) {
	_, err := New().DetectProject(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

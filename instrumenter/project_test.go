package instrumenter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumenter_InstrumentProject(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"src/index.js":          "function main() { return 1 }\n",
		"src/broken.js":         "function (\n",
		"package.json":          `{"name":"demo"}`,
		"node_modules/dep/a.js": "function dep() {}\n",
		"vendor.min.js":         "function v(){}\n",
	}
	for name, content := range files {
		location := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(location), 0755))
		require.NoError(t, os.WriteFile(location, []byte(content), 0644))
	}
	outDir := filepath.Join(root, "whyflow-data", "instrumented")

	report, err := New().InstrumentProject(context.Background(), root, outDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/index.js"}, report.Instrumented)
	assert.Equal(t, []string{"package.json", "src/broken.js", "vendor.min.js"}, report.Copied)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "src/broken.js", report.Errors[0].File)

	instrumented, err := os.ReadFile(filepath.Join(outDir, "src", "index.js"))
	require.NoError(t, err)
	assert.Contains(t, string(instrumented), `__whyflow_trace__("src/index.js:main:1","START",[])`)
	copied, err := os.ReadFile(filepath.Join(outDir, "src", "broken.js"))
	require.NoError(t, err)
	assert.Equal(t, files["src/broken.js"], string(copied))
	_, err = os.Stat(filepath.Join(outDir, "node_modules"))
	assert.True(t, os.IsNotExist(err))

	again, err := New().InstrumentProject(context.Background(), root, outDir)
	require.NoError(t, err)
	assert.Equal(t, report.Instrumented, again.Instrumented)
}

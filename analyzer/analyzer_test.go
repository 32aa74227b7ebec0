package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/whyflow/inspector/graph"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		location := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(location), 0755))
		require.NoError(t, os.WriteFile(location, []byte(content), 0644))
	}
	return root
}

func nodeIDs(m *graph.ProjectMap) []string {
	var result []string
	for _, node := range m.Nodes {
		result = append(result, node.ID)
	}
	return result
}

func edgePairs(m *graph.ProjectMap) [][2]string {
	var result [][2]string
	for _, edge := range m.Edges {
		result = append(result, [2]string{edge.Source, edge.Target})
	}
	return result
}

func TestAnalyzer_Analyze(t *testing.T) {
	tests := []struct {
		name        string
		files       map[string]string
		nodes       []string
		edges       [][2]string
		diagnostics []string
	}{
		{
			name:  "add and main",
			files: map[string]string{"index.js": `function add(a,b){return a+b} function main(){return add(1,2)}`},
			nodes: []string{"index.js:add:1", "index.js:main:1"},
			edges: [][2]string{{"index.js:main:1", "index.js:add:1"}},
		},
		{
			name: "arrow functions and function expressions",
			files: map[string]string{"src/app.js": `const greet = (name) => format(name);
function format(v) { return v }
let run = function () { greet("x"); greet("y") }
`},
			nodes: []string{"src/app.js:greet:1", "src/app.js:format:2", "src/app.js:run:3"},
			edges: [][2]string{{"src/app.js:greet:1", "src/app.js:format:2"}, {"src/app.js:run:3", "src/app.js:greet:1"}},
		},
		{
			name: "methods and class fields",
			files: map[string]string{"service.js": `class Service {
  run() { return this.helper() }
  helper() { return 1 }
  handle = () => this.run();
}
`},
			nodes: []string{"service.js:run:2", "service.js:helper:3", "service.js:handle:4"},
			edges: [][2]string{{"service.js:run:2", "service.js:helper:3"}, {"service.js:handle:4", "service.js:run:2"}},
		},
		{
			name: "object keys and assignments",
			files: map[string]string{"handlers.js": `const routes = {
  list: function () { return load() },
  save: async (item) => { store(item) },
};
exports.load = function () { return [] }
module.exports.store = (item) => item
let reset
reset = () => routes.list()
`},
			nodes: []string{"handlers.js:list:2", "handlers.js:save:3", "handlers.js:load:5", "handlers.js:store:6", "handlers.js:reset:8"},
			edges: [][2]string{
				{"handlers.js:list:2", "handlers.js:load:5"},
				{"handlers.js:save:3", "handlers.js:store:6"},
				{"handlers.js:reset:8", "handlers.js:list:2"},
			},
		},
		{
			name: "fan out to every same named function",
			files: map[string]string{
				"lib/one.js": "function b() { return 1 }\n",
				"lib/two.js": "function b() { return 2 }\n",
				"main.js":    "function a() {\n  return b()\n}\n",
			},
			nodes: []string{"lib/one.js:b:1", "lib/two.js:b:1", "main.js:a:1"},
			edges: [][2]string{{"main.js:a:1", "lib/one.js:b:1"}, {"main.js:a:1", "lib/two.js:b:1"}},
		},
		{
			name:  "top level and computed calls produce no edge",
			files: map[string]string{"index.js": "function f() { obj[\"g\"]() }\nfunction g() {}\nf()\n"},
			nodes: []string{"index.js:f:1", "index.js:g:2"},
		},
		{
			name:  "duplicate calls produce a single edge",
			files: map[string]string{"index.js": "function f() { g(); g(); g() }\nfunction g() {}\n"},
			nodes: []string{"index.js:f:1", "index.js:g:2"},
			edges: [][2]string{{"index.js:f:1", "index.js:g:2"}},
		},
		{
			name: "typescript sources",
			files: map[string]string{"sum.ts": `export function sum(a: number, b: number): number {
  return total([a, b])
}
const total = (values: number[]): number => values.reduce((x, y) => x + y, 0)
`},
			nodes: []string{"sum.ts:sum:1", "sum.ts:total:4"},
			edges: [][2]string{{"sum.ts:sum:1", "sum.ts:total:4"}},
		},
		{
			name: "parse errors and dependency dirs are skipped",
			files: map[string]string{
				"broken.js":             "function (\n",
				"ok.js":                 "function ok() {}\n",
				"node_modules/dep.js":   "function dep() {}\n",
				"dist/bundle.js":        "function bundled() {}\n",
				"README.md":             "# readme\n",
				"types/index.d.ts":      "export declare function typed(): void\n",
				"whyflow-data/trace.js": "function traced() {}\n",
			},
			nodes:       []string{"ok.js:ok:1"},
			diagnostics: []string{"broken.js"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := writeProject(t, tc.files)
			a := New(WithProject("test"))
			actual, err := a.Analyze(context.Background(), root)
			require.NoError(t, err)
			assert.Equal(t, tc.nodes, nodeIDs(actual))
			assert.Equal(t, tc.edges, edgePairs(actual))
			var files []string
			for _, diagnostic := range a.Diagnostics() {
				files = append(files, diagnostic.File)
			}
			assert.Equal(t, tc.diagnostics, files)
		})
	}
}

func TestAnalyzer_Deterministic(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js":     "function a() { b(); c() }\n",
		"b/b.js":   "function b() { c() }\n",
		"c/c.js":   "const c = () => 1\n",
		"d/d/d.js": "class D { c() { return c() } }\n",
	})
	a := New(WithConcurrency(4))
	first, err := a.Analyze(context.Background(), root)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), root)
	require.NoError(t, err)
	firstJSON, err := graph.Encode(first)
	require.NoError(t, err)
	secondJSON, err := graph.Encode(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))

	ids := map[string]bool{}
	for _, node := range first.Nodes {
		assert.False(t, ids[node.ID], node.ID)
		ids[node.ID] = true
	}
	assert.Len(t, ids, 4)

	fp1, err := a.Fingerprint(context.Background(), root)
	require.NoError(t, err)
	fp2, err := a.Fingerprint(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.js"), []byte("function a() {}\n"), 0644))
	fp3, err := a.Fingerprint(context.Background(), root)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp3)
}

func TestAnalyzer_Exclusion(t *testing.T) {
	root := writeProject(t, map[string]string{
		"index.js":                       "function main() { add() }\nfunction add() {}\n",
		".whyflow/instrumented/index.js": "function main() { add() }\nfunction add() {}\n",
		"gen/out/index.js":               "function generated() {}\n",
		"src/.whyflow/keep.js":           "function kept() {}\n",
	})
	a := New(WithExclusion(".whyflow", "./gen/out/", "../outside", "."))
	actual, err := a.Analyze(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js:main:1", "index.js:add:2", "src/.whyflow/keep.js:kept:1"}, nodeIDs(actual))
	assert.Equal(t, [][2]string{{"index.js:main:1", "index.js:add:2"}}, edgePairs(actual))

	before, err := a.Fingerprint(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".whyflow", "instrumented", "index.js"), []byte("function other() {}\n"), 0644))
	after, err := a.Fingerprint(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

type describerFunc func(ctx context.Context, name, code string) (string, error)

func (f describerFunc) Describe(ctx context.Context, name, code string) (string, error) {
	return f(ctx, name, code)
}

func TestAnalyzer_Docs(t *testing.T) {
	root := writeProject(t, map[string]string{"index.js": `/**
 * Adds two numbers.
 * @param a first
 */
function add(a, b) { return a + b }

function sub(a, b) { return a - b }

function mul(a, b) { return a * b }
`})
	describer := describerFunc(func(ctx context.Context, name, code string) (string, error) {
		if name == "sub" {
			return "Subtracts b from a.", nil
		}
		return "", errors.New("unavailable")
	})
	actual, err := New(WithDescriber(describer)).Analyze(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, actual.Nodes, 3)
	assert.Equal(t, "Adds two numbers.", actual.Nodes[0].Docs)
	assert.Equal(t, "Subtracts b from a.", actual.Nodes[1].Docs)
	assert.Equal(t, NoDescription, actual.Nodes[2].Docs)

	plain, err := New().Analyze(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, "", plain.Nodes[1].Docs)
}

type recordingExporter struct {
	exported *graph.ProjectMap
}

func (r *recordingExporter) Export(ctx context.Context, project *graph.ProjectMap) error {
	r.exported = project
	return nil
}

func TestAnalyzer_Exporter(t *testing.T) {
	root := writeProject(t, map[string]string{"index.js": "function main() {}\n"})
	exporter := &recordingExporter{}
	actual, err := New(WithExporter(exporter)).Analyze(context.Background(), root)
	require.NoError(t, err)
	assert.Same(t, actual, exporter.exported)

	output := filepath.Join(t.TempDir(), graph.MapFile)
	_, err = New(WithExporter(NewFileExporter(nil, output))).Analyze(context.Background(), root)
	require.NoError(t, err)
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id": "index.js:main:1"`)
}

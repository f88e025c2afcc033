package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coreManifest = `module: core
extension_points:
  - path: /Workbench/Menus
    node_set:
      - name: Menu
        children:
          - name: Item
contributions:
  - path: /Workbench/Menus
    nodes:
      - node: Menu
        id: file
        children:
          - {node: Item, id: open, condition: "hasProject"}
`

const gitManifest = `module: git
dependencies: [core]
contributions:
  - path: /Workbench/Menus/file
    nodes:
      - {node: Item, id: commit, insert_before: open}
      - {node: Toolbar, id: nope}
`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core.yaml"), []byte(coreManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "git.yaml"), []byte(gitManifest), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestMergeJSON(t *testing.T) {
	dir := writeProject(t)

	out, errOut, err := execute(t, "merge", dir, "--format", "json", "--path", "/Workbench/Menus/file")
	require.NoError(t, err)

	var snap domain.NodeSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	require.Len(t, snap.Children, 2)
	assert.Equal(t, "commit", snap.Children[0].ID)
	assert.Equal(t, "open", snap.Children[1].ID)
	assert.Equal(t, "hasProject", snap.Children[1].Condition)

	assert.Contains(t, errOut, "1 errors, 0 warnings")
	assert.Contains(t, errOut, "Toolbar")
}

func TestMergeText(t *testing.T) {
	dir := writeProject(t)

	out, _, err := execute(t, "merge", dir, "--format", "text", "--path", "")
	require.NoError(t, err)
	assert.Contains(t, out, "└── Workbench")
	assert.Contains(t, out, "open <Item> [core] if hasProject")
}

func TestValidateReportsMergeErrors(t *testing.T) {
	dir := writeProject(t)

	_, errOut, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 merge errors")
	assert.Contains(t, errOut, "Node 'Toolbar' not allowed")
}

func TestValidateRejectsCycles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("module: a\ndependencies: [b]\n---\nmodule: b\ndependencies: [a]\n"), 0o644))

	_, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "arbor version ")
}

func TestRender(t *testing.T) {
	snap := domain.NodeSnapshot{Children: []domain.NodeSnapshot{{ID: "Menus", Path: "/Menus"}}}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "mermaid", snap, nil, false))
	assert.Contains(t, buf.String(), "graph TD")

	buf.Reset()
	require.NoError(t, render(&buf, "markdown", snap, nil, false))
	assert.Contains(t, buf.String(), "# Merged extension tree")
	assert.Contains(t, buf.String(), "- **Menus**")
}

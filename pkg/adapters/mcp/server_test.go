package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTree struct {
	root *domain.TreeNode
}

func newFakeTree() *fakeTree {
	root := domain.NewTreeNode("")
	menus := domain.NewTreeNode("Menus")
	root.AppendChild(menus)
	open := domain.NewTreeNode("open")
	open.Condition = domain.Function{Name: "debug"}
	menus.AppendChild(open)
	open.AppendChild(domain.NewTreeNode("recent"))
	return &fakeTree{root: root}
}

func (f *fakeTree) Snapshot(path string) (domain.NodeSnapshot, error) {
	n, ok := f.root.Find(path)
	if !ok {
		return domain.NodeSnapshot{}, fmt.Errorf("%w: %s", domain.ErrExtensionPointNotDefined, path)
	}
	return n.Snapshot(), nil
}

func (f *fakeTree) Errors() []domain.ReportedError {
	return []domain.ReportedError{
		{Message: "Extension point not defined", ModuleID: "plugin"},
		{Message: "deprecated", ModuleID: "plugin", Warning: true},
	}
}

func (f *fakeTree) Modules() map[string]bool { return map[string]bool{"core": true} }

func (f *fakeTree) NodesForCondition(name string) []domain.NodeSnapshot {
	if name != "debug" {
		return nil
	}
	n, _ := f.root.Find("/Menus/open")
	return []domain.NodeSnapshot{n.Snapshot()}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestGetTree(t *testing.T) {
	s := NewServer(newFakeTree(), "0.0.1", nil)

	res, err := s.handleGetTree(context.Background(), call(map[string]any{"path": "/Menus"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var snap domain.NodeSnapshot
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &snap))
	require.Len(t, snap.Children, 1)
	assert.Equal(t, "/Menus/open", snap.Children[0].Path)
	assert.Equal(t, "/Menus/open/recent", snap.Children[0].Children[0].Path)

	res, err = s.handleGetTree(context.Background(), call(map[string]any{"path": "/Missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "/Missing")
}

func TestFindNode(t *testing.T) {
	s := NewServer(newFakeTree(), "0.0.1", nil)

	res, err := s.handleFindNode(context.Background(), call(map[string]any{"path": "/Menus/open"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out struct {
		ID        string   `json:"id"`
		Condition string   `json:"condition"`
		ChildIDs  []string `json:"child_ids"`
		Children  []any    `json:"children"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "open", out.ID)
	assert.Equal(t, "debug", out.Condition)
	assert.Equal(t, []string{"recent"}, out.ChildIDs)
	assert.Empty(t, out.Children)

	res, err = s.handleFindNode(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListErrors(t *testing.T) {
	s := NewServer(newFakeTree(), "0.0.1", nil)

	var all []domain.ReportedError
	res, err := s.handleListErrors(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &all))
	assert.Len(t, all, 2)

	var errs []domain.ReportedError
	res, err = s.handleListErrors(context.Background(), call(map[string]any{"include_warnings": false}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &errs))
	assert.Len(t, errs, 1)
}

func TestModulesAndConditions(t *testing.T) {
	s := NewServer(newFakeTree(), "0.0.1", nil)

	res, err := s.handleListModules(context.Background(), call(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"core":true}`, text(t, res))

	res, err = s.handleNodesForCondition(context.Background(), call(map[string]any{"name": "debug"}))
	require.NoError(t, err)
	assert.JSONEq(t, `["/Menus/open"]`, text(t, res))

	res, err = s.handleNodesForCondition(context.Background(), call(map[string]any{"name": "release"}))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, text(t, res))
}

package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTree struct {
	root   *domain.TreeNode
	errors []domain.ReportedError
}

func newFakeTree() *fakeTree {
	root := domain.NewTreeNode("")
	menus := domain.NewTreeNode("Menus")
	root.AppendChild(menus)
	open := domain.NewTreeNode("open")
	open.Condition = domain.Function{Name: "debug"}
	menus.AppendChild(open)
	menus.AppendChild(domain.NewTreeNode("close"))

	return &fakeTree{
		root: root,
		errors: []domain.ReportedError{
			{Message: "Node 'Bad' not allowed in extension: /Menus", ModuleID: "plugin"},
			{Message: "deprecated attribute", ModuleID: "plugin", Warning: true},
		},
	}
}

func (f *fakeTree) Snapshot(path string) (domain.NodeSnapshot, error) {
	n, ok := f.root.Find(path)
	if !ok {
		return domain.NodeSnapshot{}, fmt.Errorf("%w: %s", domain.ErrExtensionPointNotDefined, path)
	}
	return n.Snapshot(), nil
}

func (f *fakeTree) Errors() []domain.ReportedError { return f.errors }

func (f *fakeTree) Modules() map[string]bool {
	return map[string]bool{"core": true, "plugin": false}
}

func (f *fakeTree) NodesForCondition(name string) []domain.NodeSnapshot {
	if name != "debug" {
		return nil
	}
	n, _ := f.root.Find("/Menus/open")
	return []domain.NodeSnapshot{n.Snapshot()}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndInfo(t *testing.T) {
	h := NewServer(newFakeTree(), WithVersion("1.2.3\n")).Handler()

	w := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = get(t, h, "/info")
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetTree(t *testing.T) {
	h := NewServer(newFakeTree()).Handler()

	t.Run("Root", func(t *testing.T) {
		w := get(t, h, "/tree")
		require.Equal(t, http.StatusOK, w.Code)
		var snap domain.NodeSnapshot
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
		require.Len(t, snap.Children, 1)
		assert.Equal(t, "/Menus", snap.Children[0].Path)
	})

	t.Run("Subtree", func(t *testing.T) {
		w := get(t, h, "/tree/Menus")
		require.Equal(t, http.StatusOK, w.Code)
		var snap domain.NodeSnapshot
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
		require.Len(t, snap.Children, 2)
		assert.Equal(t, "open", snap.Children[0].ID)
		assert.Equal(t, "debug", snap.Children[0].Condition)
		assert.Equal(t, "close", snap.Children[1].ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		w := get(t, h, "/tree/Nope")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "/Nope")
	})
}

func TestGetErrors(t *testing.T) {
	h := NewServer(newFakeTree()).Handler()

	var all []domain.ReportedError
	w := get(t, h, "/errors")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	var errs []domain.ReportedError
	w = get(t, h, "/errors?warnings=false")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errs))
	require.Len(t, errs, 1)
	assert.False(t, errs[0].Warning)
}

func TestGetModulesAndConditions(t *testing.T) {
	h := NewServer(newFakeTree()).Handler()

	w := get(t, h, "/modules")
	assert.JSONEq(t, `{"core":true,"plugin":false}`, w.Body.String())

	w = get(t, h, "/conditions/debug")
	assert.JSONEq(t, `["/Menus/open"]`, w.Body.String())

	w = get(t, h, "/conditions/other")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("arbor_nodes_inserted_total 3\n"))
	})

	w := get(t, NewServer(newFakeTree()).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(t, NewServer(newFakeTree(), WithMetricsHandler(metrics)).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "arbor_nodes_inserted_total")
}

func TestCORSPreflight(t *testing.T) {
	h := NewServer(newFakeTree()).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/tree", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestSubscribeEvents(t *testing.T) {
	s := NewServer(newFakeTree())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	hooks := s.Hooks()
	hooks.OnContributionLoaded(ctx, &domain.ContributionEvent{ModuleID: "plugin", Path: "/Menus", Added: 2})

	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var ev ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, ChangeEvent{ModuleID: "plugin", Path: "/Menus", Added: 2}, ev)
}

func TestStreamManagerDropsForSlowClients(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe()
	defer cancel()

	for i := 0; i < 15; i++ {
		sm.Broadcast("msg")
	}
	assert.Len(t, ch, 10)
}

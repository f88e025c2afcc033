package arbor_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/file"
	redisadapter "github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/extension"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type menuItem struct {
	extension.TypeNode `mapstructure:",squash"`
	Label              string
}

var menuItemBindings = domain.NewBindings("MenuItem").
	Extends(extension.TypeNodeBindings).
	Field("Label", domain.Named("label"), domain.Required(), domain.Localizable())

func menuPoint(moduleID string) domain.ExtensionPoint {
	item := &domain.NodeType{Name: "Item", ModuleID: moduleID, TypeName: "MenuItem"}
	sep := &domain.NodeType{Name: "Separator", ModuleID: moduleID}
	return domain.ExtensionPoint{
		Path:    "/Workbench/Menus",
		NodeSet: (&domain.NodeSet{ID: "menu"}).Add(item, sep),
	}
}

func item(id, label string) domain.NodeDescription {
	return domain.NodeDescription{NodeName: "Item", ID: id, Attributes: map[string]string{"label": label}}
}

func childIDs(t *testing.T, tree *arbor.Tree, path string) []string {
	t.Helper()
	snap, err := tree.Snapshot(path)
	require.NoError(t, err)
	var out []string
	for _, c := range snap.Children {
		out = append(out, c.ID)
	}
	return out
}

func TestTree_AddModule(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register("core", "MenuItem", func() domain.ExtensionObject { return &menuItem{} }, menuItemBindings)

	tree := arbor.New(
		arbor.WithRegistry(reg),
		arbor.WithTranslations(map[string]map[string]string{"core": {"Open": "Abrir"}}),
	)
	ctx := context.Background()

	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{
		ID:              "core",
		ExtensionPoints: []domain.ExtensionPoint{menuPoint("core")},
		Contributions: []domain.Contribution{{
			Path:  "/Workbench/Menus",
			Nodes: []domain.NodeDescription{item("open", "Open"), {NodeName: "Separator"}, item("quit", "Quit")},
		}},
	}))
	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{
		ID:           "git",
		Dependencies: []string{"core"},
		Contributions: []domain.Contribution{{
			Path:  "/Workbench/Menus",
			Nodes: []domain.NodeDescription{{NodeName: "Item", ID: "commit", InsertAfter: "open", Condition: "hasRepo", Attributes: map[string]string{"label": "Commit"}}},
		}},
	}))

	assert.Equal(t, []string{"open", "commit", "__nid_1", "quit"}, childIDs(t, tree, "/Workbench/Menus"))
	assert.Empty(t, tree.Errors())
	assert.Equal(t, map[string]bool{"core": true, "git": true}, tree.Modules())

	node, ok := tree.Find("/Workbench/Menus/open")
	require.True(t, ok)
	obj, ok := node.ExtensionObject().(*menuItem)
	require.True(t, ok)
	assert.Equal(t, "Abrir", obj.Label)

	conditional := tree.NodesForCondition("hasRepo")
	require.Len(t, conditional, 1)
	assert.Equal(t, "/Workbench/Menus/commit", conditional[0].Path)
	assert.Equal(t, "hasRepo", conditional[0].Condition)
	assert.Equal(t, "Item", conditional[0].NodeName)
	assert.Empty(t, tree.NodesForCondition("missing"))

	var visited []string
	require.NoError(t, tree.Walk("/Workbench", func(n *domain.TreeNode) bool {
		visited = append(visited, n.ID)
		return true
	}))
	assert.Equal(t, []string{"Workbench", "Menus", "open", "commit", "__nid_1", "quit"}, visited)

	assert.ErrorIs(t, tree.Walk("/Nope", func(*domain.TreeNode) bool { return true }), domain.ErrExtensionPointNotDefined)
	_, err := tree.Snapshot("/Nope")
	assert.ErrorIs(t, err, domain.ErrExtensionPointNotDefined)
}

func TestTree_AddModuleErrors(t *testing.T) {
	tree := arbor.New()
	ctx := context.Background()

	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{ID: "core"}))
	assert.Error(t, tree.AddModule(ctx, domain.ModuleManifest{ID: "core"}), "duplicate module")
	assert.ErrorIs(t, tree.ActivateModule(ctx, "missing"), domain.ErrModuleNotFound)
}

func TestTree_LazyModuleActivatedOnDemand(t *testing.T) {
	tree := arbor.New()
	ctx := context.Background()

	tools := &domain.NodeType{Name: "Tool", ModuleID: "tools"}
	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{
		ID:   "tools",
		Lazy: true,
		ExtensionPoints: []domain.ExtensionPoint{{
			Path:    "/Tools",
			NodeSet: (&domain.NodeSet{ID: "tools"}).Add(tools),
		}},
		Contributions: []domain.Contribution{{
			Path:  "/Tools",
			Nodes: []domain.NodeDescription{{NodeName: "Tool", ID: "builtin"}},
		}},
	}))
	assert.Equal(t, map[string]bool{"tools": false}, tree.Modules())
	assert.Empty(t, childIDs(t, tree, "/Tools"))

	added, err := tree.LoadContribution(ctx, domain.Contribution{
		Path:     "/Tools",
		ModuleID: "app",
		Nodes:    []domain.NodeDescription{{NodeName: "Tool", ID: "mine"}},
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, "mine", added[0].ID)

	assert.Equal(t, map[string]bool{"tools": true}, tree.Modules())
	assert.ElementsMatch(t, []string{"builtin", "mine"}, childIDs(t, tree, "/Tools"))
}

func TestTree_LazyDependencyActivatedFirst(t *testing.T) {
	tree := arbor.New()
	ctx := context.Background()

	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{
		ID:              "core",
		Lazy:            true,
		ExtensionPoints: []domain.ExtensionPoint{menuPoint("core")},
		Contributions: []domain.Contribution{{
			Path:  "/Workbench/Menus",
			Nodes: []domain.NodeDescription{{NodeName: "Separator", ID: "top"}},
		}},
	}))
	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{
		ID:           "plugin",
		Dependencies: []string{"core"},
		Contributions: []domain.Contribution{{
			Path:  "/Workbench/Menus",
			Nodes: []domain.NodeDescription{{NodeName: "Separator", ID: "bottom"}},
		}},
	}))

	assert.Equal(t, []string{"top", "bottom"}, childIDs(t, tree, "/Workbench/Menus"))
	assert.Equal(t, map[string]bool{"core": true, "plugin": true}, tree.Modules())
}

type twoPayloads struct {
	extension.Node `mapstructure:",squash"`
}

type menuInfo struct {
	Shortcut string
}

func TestTree_FatalErrorAbortsActivation(t *testing.T) {
	reg := registry.NewRegistry()
	registry.RegisterPayload[menuInfo](reg, "broken", "MenuInfo", nil)
	reg.Register("broken", "Twice", func() domain.ExtensionObject { return &twoPayloads{} },
		domain.NewBindings("Twice").Extends(extension.NodeBindings).
			Payload("A", "MenuInfo").
			Payload("B", "MenuInfo"))

	tree := arbor.New(arbor.WithRegistry(reg))
	ctx := context.Background()

	twice := &domain.NodeType{Name: "Twice", ModuleID: "broken", TypeName: "Twice", PayloadTypeName: "MenuInfo"}
	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{
		ID:   "broken",
		Lazy: true,
		ExtensionPoints: []domain.ExtensionPoint{{
			Path:    "/Broken",
			NodeSet: (&domain.NodeSet{ID: "broken"}).Add(twice),
		}},
	}))

	err := tree.AddModule(ctx, domain.ModuleManifest{
		ID: "app",
		Contributions: []domain.Contribution{{
			Path:  "/Broken",
			Nodes: []domain.NodeDescription{{NodeName: "Twice", ID: "t"}},
		}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))

	var dup *domain.DuplicatePayloadError
	assert.ErrorAs(t, err, &dup)

	added, err := tree.LoadContribution(ctx, domain.Contribution{
		Path:     "/Broken",
		ModuleID: "app",
		Nodes:    []domain.NodeDescription{{NodeName: "Twice"}},
	})
	assert.Nil(t, added)
	assert.ErrorAs(t, err, &dup, "the failure is latched on the node type")
}

func TestTree_FailedModuleIsNotMergedAgain(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register("core", "MenuItem", func() domain.ExtensionObject { return &menuItem{} }, menuItemBindings)
	registry.RegisterPayload[menuInfo](reg, "core", "MenuInfo", nil)
	reg.Register("core", "Twice", func() domain.ExtensionObject { return &twoPayloads{} },
		domain.NewBindings("Twice").Extends(extension.NodeBindings).
			Payload("A", "MenuInfo").
			Payload("B", "MenuInfo"))

	tree := arbor.New(arbor.WithRegistry(reg))
	ctx := context.Background()

	twice := &domain.NodeType{Name: "Twice", ModuleID: "core", TypeName: "Twice", PayloadTypeName: "MenuInfo"}
	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{
		ID: "core",
		ExtensionPoints: []domain.ExtensionPoint{
			menuPoint("core"),
			{Path: "/Broken", NodeSet: (&domain.NodeSet{ID: "broken"}).Add(twice)},
		},
	}))
	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{
		ID:   "app",
		Lazy: true,
		Contributions: []domain.Contribution{
			{Path: "/Workbench/Menus", Nodes: []domain.NodeDescription{item("open", "Open")}},
			{Path: "/Broken", Nodes: []domain.NodeDescription{{NodeName: "Twice", ID: "t"}}},
		},
	}))

	var dup *domain.DuplicatePayloadError
	for range 3 {
		err := tree.ActivateModule(ctx, "app")
		assert.ErrorAs(t, err, &dup)
		assert.Equal(t, []string{"open"}, childIDs(t, tree, "/Workbench/Menus"))
	}
	assert.False(t, tree.Modules()["app"])
}

func TestTree_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core.yaml"), []byte(`module: core
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
          - {node: Item, id: open}
          - {node: Item, id: close}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "git.yaml"), []byte(`module: git
dependencies: [core]
lazy: true
contributions:
  - path: /Workbench/Menus/file
    nodes:
      - {node: Item, id: commit, insert_before: close}
---
module: git.ui
dependencies: [git]
contributions:
  - path: /Workbench/Menus/file
    nodes:
      - {node: Item, id: push, insert_after: commit}
      - {node: Unknown}
`), 0o644))

	tree := arbor.New(arbor.WithName("test"))
	require.NoError(t, tree.Load(context.Background(), file.NewSource(dir)))

	assert.Equal(t, []string{"open", "commit", "push", "close"}, childIDs(t, tree, "/Workbench/Menus/file"))
	assert.Equal(t, map[string]bool{"core": true, "git": true, "git.ui": true}, tree.Modules())

	errs := tree.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "git.ui", errs[0].ModuleID)
	assert.Contains(t, errs[0].Message, "Node 'Unknown' not allowed")
}

func TestTree_LoadInvalidSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("module: a\ndependencies: [missing]\n"), 0o644))

	err := arbor.New().Load(context.Background(), file.NewSource(dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

type countingLocker struct {
	mu      sync.Mutex
	locks   []string
	unlocks int
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks = append(l.locks, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocks++
		return nil
	}, nil
}

func TestTree_WritesTakeTheLock(t *testing.T) {
	locker := &countingLocker{}
	tree := arbor.New(arbor.WithName("shared"), arbor.WithLocker(locker, 0))
	ctx := context.Background()

	_, err := tree.DefineExtensionPoint(ctx, domain.ExtensionPoint{Path: "/Tools", NodeSet: &domain.NodeSet{}})
	require.NoError(t, err)
	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{ID: "core"}))
	_, err = tree.LoadContribution(ctx, domain.Contribution{Path: "/Tools", ModuleID: "core"})
	require.NoError(t, err)

	_, _ = tree.Snapshot("")
	tree.Find("/Tools")

	assert.Equal(t, []string{"shared", "shared", "shared"}, locker.locks, "reads do not lock")
	assert.Equal(t, 3, locker.unlocks)
}

func TestTree_RedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := redisadapter.NewLocker(client, "arbor:", redisadapter.WithRetryInterval(5*time.Millisecond))
	tree := arbor.New(arbor.WithName("shared"), arbor.WithLocker(locker, time.Second))
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "shared", time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = tree.DefineExtensionPoint(ctxTimeout, domain.ExtensionPoint{Path: "/Tools", NodeSet: &domain.NodeSet{}})
	require.Error(t, err, "another writer holds the lock")

	require.NoError(t, unlock(ctx))
	_, err = tree.DefineExtensionPoint(ctx, domain.ExtensionPoint{Path: "/Tools", NodeSet: &domain.NodeSet{}})
	require.NoError(t, err)
	assert.False(t, mr.Exists("arbor:lock:shared"), "the lock is released after the write")
}

func TestTree_Hooks(t *testing.T) {
	var inserted []string
	var contributions int
	hooks := domain.LifecycleHooks{
		OnNodeInserted: func(_ context.Context, e *domain.NodeEvent) {
			inserted = append(inserted, e.Path)
		},
		OnContributionLoaded: func(_ context.Context, e *domain.ContributionEvent) {
			contributions++
		},
	}

	tree := arbor.New(arbor.WithLifecycleHooks(hooks))
	ctx := context.Background()
	sep := &domain.NodeType{Name: "Separator", ModuleID: "core"}
	require.NoError(t, tree.AddModule(ctx, domain.ModuleManifest{
		ID: "core",
		ExtensionPoints: []domain.ExtensionPoint{{
			Path:    "/Menus",
			NodeSet: (&domain.NodeSet{}).Add(sep),
		}},
		Contributions: []domain.Contribution{{
			Path:  "/Menus",
			Nodes: []domain.NodeDescription{{NodeName: "Separator", ID: "a"}, {NodeName: "Separator", ID: "b"}},
		}},
	}))

	assert.Equal(t, []string{"/Menus/a", "/Menus/b"}, inserted)
	assert.Equal(t, 1, contributions)
}

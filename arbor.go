package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
)

// Version is the library version reported by the CLI.
const Version = "0.3.0"

// DefaultLockTTL bounds how long a distributed writer lock is held.
const DefaultLockTTL = 30 * time.Second

// Tree is the high-level entry point for the Arbor library.
// It owns the shared extension tree, the in-memory module host and the merge
// engine, and serializes every write to the tree.
//
// Tree is safe for concurrent use: writes (contributions, module activation)
// are exclusive, reads (Find, Walk, Snapshot) share a read lock.
type Tree struct {
	Name string

	mu       sync.RWMutex
	host     *memory.Host
	registry *registry.Registry
	engine   *runtime.Engine

	locker  ports.DistributedLocker
	lockTTL time.Duration

	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	notifications bool
	translations  map[string]map[string]string

	// write section state, only touched while mu is held for writing
	ctx   context.Context
	fatal error
}

// Option defines a functional option for configuring the Tree.
type Option func(*Tree)

// WithName labels the tree. The name keys the distributed lock and is added to log records.
func WithName(name string) Option {
	return func(t *Tree) {
		t.Name = name
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		t.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(t *Tree) {
		t.hooks = hooks
	}
}

// WithRegistry shares an existing type registry.
func WithRegistry(r *registry.Registry) Option {
	return func(t *Tree) {
		t.registry = r
	}
}

// WithLocker serializes writers across processes. A ttl of zero uses DefaultLockTTL.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(t *Tree) {
		t.locker = locker
		t.lockTTL = ttl
	}
}

// WithNotifications toggles children-changed notifications (enabled by default).
func WithNotifications(enabled bool) Option {
	return func(t *Tree) {
		t.notifications = enabled
	}
}

// WithTranslations provides per-module translations for localizable attributes.
func WithTranslations(translations map[string]map[string]string) Option {
	return func(t *Tree) {
		t.translations = translations
	}
}

// New creates an empty tree.
func New(opts ...Option) *Tree {
	t := &Tree{notifications: true}
	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		t.logger = logging.NewNop()
	}
	if t.Name != "" {
		t.logger = t.logger.With("tree", t.Name)
	}
	if t.registry == nil {
		t.registry = registry.NewRegistry()
	}
	if t.lockTTL <= 0 {
		t.lockTTL = DefaultLockTTL
	}

	t.host = memory.NewHost(
		memory.WithRegistry(t.registry),
		memory.WithLogger(t.logger),
		memory.WithNotifications(t.notifications),
		memory.WithTranslations(t.translations),
		memory.WithActivator(t.activate),
	)
	t.engine = runtime.NewEngine(t.host, t.host,
		runtime.WithLogger(t.logger),
		runtime.WithLifecycleHooks(t.hooks),
	)
	return t
}

// Registry returns the type registry modules register their extension types in.
func (t *Tree) Registry() *registry.Registry {
	return t.registry
}

// Host returns the in-memory host backing the tree.
func (t *Tree) Host() *memory.Host {
	return t.host
}

// DefineExtensionPoint creates an extension point.
func (t *Tree) DefineExtensionPoint(ctx context.Context, ep domain.ExtensionPoint) (*domain.TreeNode, error) {
	var node *domain.TreeNode
	err := t.write(ctx, func() error {
		node = t.host.DefineExtensionPoint(ep)
		return nil
	})
	return node, err
}

// AddModule declares a module and defines its extension points.
// Modules that are not lazy are activated right away.
func (t *Tree) AddModule(ctx context.Context, m domain.ModuleManifest) error {
	return t.write(ctx, func() error {
		if err := t.declare(m); err != nil {
			return err
		}
		if m.Lazy {
			return nil
		}
		return t.activateNow(m.ID)
	})
}

// Load declares every manifest of src, then activates the modules that are
// not lazy, in source order. Lazy modules are activated when a contribution
// first needs one of their types.
func (t *Tree) Load(ctx context.Context, src ports.ManifestSource) error {
	manifests, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load manifests: %w", err)
	}

	return t.write(ctx, func() error {
		for _, m := range manifests {
			if err := t.declare(m); err != nil {
				return err
			}
		}
		for _, m := range manifests {
			if m.Lazy {
				continue
			}
			if err := t.activateNow(m.ID); err != nil {
				return err
			}
			if t.fatal != nil {
				return t.fatal
			}
		}
		return nil
	})
}

// ActivateModule activates a declared module and merges its contributions.
func (t *Tree) ActivateModule(ctx context.Context, moduleID string) error {
	return t.write(ctx, func() error {
		return t.activateNow(moduleID)
	})
}

// LoadContribution merges a single contribution and returns the inserted nodes.
// A non-nil error means a malformed extension type aborted the merge.
func (t *Tree) LoadContribution(ctx context.Context, c domain.Contribution) ([]*domain.TreeNode, error) {
	var added []*domain.TreeNode
	err := t.write(ctx, func() error {
		var err error
		added, err = t.engine.LoadContribution(ctx, c)
		return err
	})
	return added, err
}

// Find returns the node at path.
func (t *Tree) Find(path string) (*domain.TreeNode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.host.FindNodeByPath(path)
}

// Walk visits the subtree at path depth-first while holding the read lock.
func (t *Tree) Walk(path string, fn func(*domain.TreeNode) bool) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.host.FindNodeByPath(path)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrExtensionPointNotDefined, path)
	}
	node.Walk(fn)
	return nil
}

// Snapshot returns a detached copy of the subtree at path ("" for the whole tree).
func (t *Tree) Snapshot(path string) (domain.NodeSnapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.host.FindNodeByPath(path)
	if !ok {
		return domain.NodeSnapshot{}, fmt.Errorf("%w: %s", domain.ErrExtensionPointNotDefined, path)
	}
	return node.Snapshot(), nil
}

// Errors returns every error reported while merging.
func (t *Tree) Errors() []domain.ReportedError {
	return t.host.Errors()
}

// Modules returns the declared module ids and whether each is loaded.
func (t *Tree) Modules() map[string]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]bool)
	for _, id := range t.host.Modules() {
		out[id] = t.host.IsModuleLoaded(id)
	}
	return out
}

// NodesForCondition returns detached snapshots of the nodes whose visibility
// depends on the named predicate.
func (t *Tree) NodesForCondition(name string) []domain.NodeSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	nodes := t.host.NodesForCondition(name)
	out := make([]domain.NodeSnapshot, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Snapshot())
	}
	return out
}

// ResetIDs restarts the generated node id counter.
func (t *Tree) ResetIDs() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engine.ResetIDs()
}

// write runs fn as the single writer: under the local lock and, when a
// distributed locker is configured, under the tree's distributed lock.
// A fatal error raised during a nested module activation is returned even if
// fn itself succeeded.
func (t *Tree) write(ctx context.Context, fn func() error) error {
	if t.locker != nil {
		unlock, err := t.locker.Lock(ctx, t.lockKey(), t.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire tree lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				t.logger.Warn("failed to release tree lock", "err", err)
			}
		}()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ctx = ctx
	t.fatal = nil
	defer func() { t.ctx = nil }()

	if err := fn(); err != nil {
		return err
	}
	return t.fatal
}

func (t *Tree) lockKey() string {
	if t.Name == "" {
		return "arbor"
	}
	return t.Name
}

func (t *Tree) declare(m domain.ModuleManifest) error {
	if err := t.host.DeclareModule(m); err != nil {
		return err
	}
	for _, ep := range m.ExtensionPoints {
		if ep.ModuleID == "" {
			ep.ModuleID = m.ID
		}
		t.host.DefineExtensionPoint(ep)
	}
	t.logger.Debug("module declared", "module", m.ID, "lazy", m.Lazy)
	return nil
}

// activateNow activates a module from inside a write section. Activation
// failures are reported by the host; only fatal errors are returned, also
// for a module whose earlier activation failed fatally.
func (t *Tree) activateNow(moduleID string) error {
	if _, ok := t.host.Manifest(moduleID); !ok {
		return fmt.Errorf("%w: %s", domain.ErrModuleNotFound, moduleID)
	}
	if err := t.host.ActivationError(moduleID); err != nil {
		if domain.IsFatal(err) {
			return err
		}
		return nil
	}
	if t.host.IsModuleLoaded(moduleID) {
		return nil
	}
	_ = t.engine.ActivateModule(moduleID)
	return t.fatal
}

// activate is the host's activation callback. It runs on the writer's call
// stack, so it uses the engine directly instead of taking the lock again.
func (t *Tree) activate(moduleID string) error {
	m, ok := t.host.Manifest(moduleID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrModuleNotFound, moduleID)
	}

	for _, dep := range m.Dependencies {
		if err := t.engine.ActivateModule(dep); err != nil {
			return fmt.Errorf("dependency '%s' of '%s': %w", dep, moduleID, err)
		}
	}

	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, c := range m.Contributions {
		if c.ModuleID == "" {
			c.ModuleID = moduleID
		}
		if _, err := t.engine.LoadContribution(ctx, c); err != nil {
			if domain.IsFatal(err) && t.fatal == nil {
				t.fatal = err
			}
			return err
		}
	}
	return nil
}

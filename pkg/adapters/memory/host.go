package memory

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
)

type moduleState int

const (
	moduleDeclared moduleState = iota
	moduleActivating
	moduleLoaded
	// moduleFailed is final: the activator never runs again for the module.
	moduleFailed
)

type moduleEntry struct {
	manifest domain.ModuleManifest
	state    moduleState
	err      error
}

// ActivateFunc runs the activation of a module: typically activating its
// dependencies and merging its contributions.
type ActivateFunc func(moduleID string) error

// Host implements ports.Host and ports.ExtensionContext in memory.
// Module types come from a registry.Registry; modules are declared from
// manifests and activated on demand.
//
// Host is not safe for concurrent mutation. Errors may be read concurrently.
type Host struct {
	root     *domain.TreeNode
	registry *registry.Registry
	logger   *slog.Logger

	modules  map[string]*moduleEntry
	order    []string
	activate ActivateFunc

	notifications bool
	conditions    map[string][]*domain.TreeNode
	conditional   []*domain.TreeNode
	translations  map[string]map[string]string

	mu     sync.Mutex
	errors []domain.ReportedError
}

var (
	_ ports.Host             = (*Host)(nil)
	_ ports.ExtensionContext = (*Host)(nil)
	_ ports.Localizer        = (*Host)(nil)
)

// Option configures the Host.
type Option func(*Host)

// WithLogger configures a logger for reported errors.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRegistry sets the registry module types are looked up in.
func WithRegistry(r *registry.Registry) Option {
	return func(h *Host) {
		h.registry = r
	}
}

// WithNotifications enables batched children-changed notifications.
func WithNotifications(enabled bool) Option {
	return func(h *Host) {
		h.notifications = enabled
	}
}

// WithActivator sets the function run when a module is activated.
func WithActivator(fn ActivateFunc) Option {
	return func(h *Host) {
		h.activate = fn
	}
}

// WithTranslations provides per-module translations for localizable attributes.
func WithTranslations(translations map[string]map[string]string) Option {
	return func(h *Host) {
		h.translations = translations
	}
}

// NewHost creates a host with an empty tree.
func NewHost(opts ...Option) *Host {
	h := &Host{
		root:          domain.NewTreeNode(""),
		registry:      registry.NewRegistry(),
		logger:        logging.NewNop(),
		modules:       make(map[string]*moduleEntry),
		conditions:    make(map[string][]*domain.TreeNode),
		notifications: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetActivator replaces the activation function.
func (h *Host) SetActivator(fn ActivateFunc) {
	h.activate = fn
}

// Root returns the root of the shared tree.
func (h *Host) Root() *domain.TreeNode {
	return h.root
}

// Registry returns the type registry.
func (h *Host) Registry() *registry.Registry {
	return h.registry
}

// DefineExtensionPoint creates the node at ep.Path (and any missing
// intermediate node) and permits the node types of ep.NodeSet below it.
// Defining the same path twice merges the node sets.
func (h *Host) DefineExtensionPoint(ep domain.ExtensionPoint) *domain.TreeNode {
	cur := h.root
	for _, id := range strings.Split(ep.Path, domain.PathSeparator) {
		if id == "" {
			continue
		}
		next, ok := cur.ChildByID(id)
		if !ok {
			next = domain.NewTreeNode(id)
			cur.AppendChild(next)
		}
		cur = next
	}

	switch {
	case ep.NodeSet == nil:
	case cur.NodeSet() == nil:
		cur.SetNodeSet(ep.NodeSet)
	case cur.NodeSet() != ep.NodeSet:
		cur.SetNodeSet((&domain.NodeSet{ID: ep.Path}).Include(cur.NodeSet(), ep.NodeSet))
	}
	return cur
}

// DeclareModule makes a module known to the host without activating it.
func (h *Host) DeclareModule(m domain.ModuleManifest) error {
	if m.ID == "" {
		return fmt.Errorf("module manifest missing ID")
	}
	if _, exists := h.modules[m.ID]; exists {
		return fmt.Errorf("module %s already declared", m.ID)
	}
	h.modules[m.ID] = &moduleEntry{manifest: m}
	h.order = append(h.order, m.ID)
	return nil
}

// Manifest returns the manifest a module was declared with.
func (h *Host) Manifest(moduleID string) (domain.ModuleManifest, bool) {
	entry, ok := h.modules[moduleID]
	if !ok {
		return domain.ModuleManifest{}, false
	}
	return entry.manifest, true
}

// Modules returns the declared module ids in declaration order.
func (h *Host) Modules() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// ReportError implements ports.Host. It logs and records the error.
func (h *Host) ReportError(message, moduleID string, cause error, isWarning bool) {
	rec := domain.ReportedError{
		Time:     time.Now(),
		Message:  message,
		ModuleID: moduleID,
		Warning:  isWarning,
	}
	if cause != nil {
		rec.Cause = cause.Error()
	}

	h.mu.Lock()
	h.errors = append(h.errors, rec)
	h.mu.Unlock()

	if isWarning {
		h.logger.Warn(message, "module", moduleID, "err", cause)
		return
	}
	h.logger.Error(message, "module", moduleID, "err", cause)
}

// Errors returns a copy of every error reported so far.
func (h *Host) Errors() []domain.ReportedError {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.ReportedError, len(h.errors))
	copy(out, h.errors)
	return out
}

// ClearErrors forgets the reported errors.
func (h *Host) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = nil
}

// FindNodeType implements ports.Host.
func (h *Host) FindNodeType(set *domain.NodeSet, nodeName, requestingModule string) (*domain.NodeType, bool) {
	if set == nil {
		return nil, false
	}
	return set.Find(nodeName)
}

// GetLoadedModule implements ports.Host. A module's types are available as
// soon as its activation starts, so its own contributions can use them.
func (h *Host) GetLoadedModule(moduleID string) (ports.Module, bool) {
	entry, ok := h.modules[moduleID]
	if !ok || !entry.active() {
		return nil, false
	}
	return h.registry.Module(moduleID), true
}

// IsModuleLoaded implements ports.Host.
func (h *Host) IsModuleLoaded(moduleID string) bool {
	entry, ok := h.modules[moduleID]
	return ok && entry.active()
}

// ActivationError returns the error a failed activation of the module ended
// with, or nil if the module has not failed.
func (h *Host) ActivationError(moduleID string) error {
	entry, ok := h.modules[moduleID]
	if !ok || entry.state != moduleFailed {
		return nil
	}
	return entry.err
}

func (e *moduleEntry) active() bool {
	return e.state == moduleActivating || e.state == moduleLoaded
}

// LoadModule implements ports.Host. It runs the activator once per module;
// a failed activation is reported and leaves the module failed for good.
func (h *Host) LoadModule(moduleID string, exact bool) bool {
	entry, ok := h.modules[moduleID]
	if !ok {
		return false
	}
	switch entry.state {
	case moduleFailed:
		return false
	case moduleActivating, moduleLoaded:
		return true
	}

	entry.state = moduleActivating
	if h.activate != nil {
		if err := h.activate(moduleID); err != nil {
			entry.state = moduleFailed
			entry.err = err
			h.ReportError(fmt.Sprintf("Module '%s' could not be activated.", moduleID), moduleID, err, false)
			return false
		}
	}
	entry.state = moduleLoaded
	h.logger.Debug("module loaded", "module", moduleID)
	return true
}

// FindNodeByPath implements ports.ExtensionContext.
func (h *Host) FindNodeByPath(path string) (*domain.TreeNode, bool) {
	return h.root.Find(path)
}

// RegisterNodeCondition implements ports.ExtensionContext. Nodes are indexed
// by every function predicate their condition depends on.
func (h *Host) RegisterNodeCondition(node *domain.TreeNode, cond domain.Condition) {
	h.conditional = append(h.conditional, node)
	for _, name := range domain.FunctionNames(cond) {
		h.conditions[name] = append(h.conditions[name], node)
	}
}

// NotificationsEnabled implements ports.ExtensionContext.
func (h *Host) NotificationsEnabled() bool {
	return h.notifications
}

// SetNotifications toggles batched notifications.
func (h *Host) SetNotifications(enabled bool) {
	h.notifications = enabled
}

// NodesForCondition returns the nodes whose condition depends on the named predicate.
func (h *Host) NodesForCondition(name string) []*domain.TreeNode {
	return append([]*domain.TreeNode(nil), h.conditions[name]...)
}

// ConditionalNodes returns every node registered with a condition.
func (h *Host) ConditionalNodes() []*domain.TreeNode {
	return append([]*domain.TreeNode(nil), h.conditional...)
}

// ConditionNames returns the indexed predicate names, sorted.
func (h *Host) ConditionNames() []string {
	names := make([]string, 0, len(h.conditions))
	for name := range h.conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Localize implements ports.Localizer.
func (h *Host) Localize(moduleID, text string) string {
	if tr, ok := h.translations[moduleID][text]; ok {
		return tr
	}
	return text
}

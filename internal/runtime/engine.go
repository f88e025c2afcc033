package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/extension"
	"github.com/aretw0/arbor/pkg/ports"
)

// Engine merges contributions into the shared extension tree.
//
// Engine is not safe for concurrent use: the host must serialize calls that
// mutate the tree (see arbor.Tree).
type Engine struct {
	host     ports.Host
	tree     ports.ExtensionContext
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	localize extension.LocalizeFunc

	nextID     int
	activating map[string]bool
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLocalizer translates values bound to localizable members.
func WithLocalizer(l ports.Localizer) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.localize = l.Localize
		}
	}
}

// NewEngine creates a merge engine working against the given host and tree.
// If the host also implements ports.Localizer it is used for localizable attributes.
func NewEngine(host ports.Host, tree ports.ExtensionContext, opts ...EngineOption) *Engine {
	e := &Engine{
		host:       host,
		tree:       tree,
		logger:     logging.NewNop(),
		activating: make(map[string]bool),
	}
	if l, ok := host.(ports.Localizer); ok {
		e.localize = l.Localize
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResetIDs restarts the auto id counter.
func (e *Engine) ResetIDs() {
	e.nextID = 0
}

// walk carries the state of one LoadContribution call.
type walk struct {
	moduleID string
	added    []*domain.TreeNode
}

// LoadContribution merges one contribution into the tree and returns the
// nodes it inserted, in insertion order.
//
// Recoverable problems are reported to the host and only drop the offending
// node (or the whole contribution when its path is not an extension point).
// A non-nil error means a malformed extension type was found: the
// contribution is aborted and no partial state from this call should be trusted.
func (e *Engine) LoadContribution(ctx context.Context, c domain.Contribution) ([]*domain.TreeNode, error) {
	start := time.Now()

	target, ok := e.tree.FindNodeByPath(c.Path)
	if !ok {
		e.report(ctx, fmt.Sprintf("Can't load extensions for path '%s'. Extension point not defined.", c.Path),
			c.ModuleID, domain.ErrExtensionPointNotDefined, false)
		e.contributionLoaded(ctx, c, 0, start, nil)
		return nil, nil
	}

	w := &walk{moduleID: c.ModuleID}
	pos := target.ChildCount()
	if err := e.loadElements(ctx, w, target, c.Nodes, &pos, target.Condition, false, true); err != nil {
		e.contributionLoaded(ctx, c, len(w.added), start, err)
		return nil, fmt.Errorf("failed to load contribution for '%s': %w", c.Path, err)
	}

	e.contributionLoaded(ctx, c, len(w.added), start, nil)
	e.logger.Debug("contribution loaded", "module", c.ModuleID, "path", c.Path, "added", len(w.added))
	return w.added, nil
}

// LoadExtensions merges contributions in order. It stops at the first fatal error.
func (e *Engine) LoadExtensions(ctx context.Context, contributions []domain.Contribution) ([]*domain.TreeNode, error) {
	var added []*domain.TreeNode
	for _, c := range contributions {
		nodes, err := e.LoadContribution(ctx, c)
		if err != nil {
			return nil, err
		}
		added = append(added, nodes...)
	}
	return added, nil
}

// loadElements walks one sibling list against target.
// pos is the insertion cursor shared with the caller; active is the condition
// inherited by every node of this list. notify is false for the nested walks
// of condition blocks, which belong to the same level as their caller.
func (e *Engine) loadElements(ctx context.Context, w *walk, target *domain.TreeNode, elems []domain.NodeDescription,
	pos *int, active domain.Condition, inComplexCondition, notify bool) error {

	for i := range elems {
		elem := &elems[i]

		if inComplexCondition {
			active = domain.Compose(active, e.BuildComplex(ctx, elem, w.moduleID))
			inComplexCondition = false
			continue
		}

		switch elem.NodeName {
		case domain.NodeNameComplexCondition:
			if err := e.loadElements(ctx, w, target, elem.Children, pos, active, true, false); err != nil {
				return err
			}
			continue

		case domain.NodeNameCondition:
			// Block children share the cursor of the level they belong to.
			cond := domain.Compose(active, e.elementCondition(ctx, elem, w.moduleID))
			if err := e.loadElements(ctx, w, target, elem.Children, pos, cond, false, false); err != nil {
				return err
			}
			continue
		}

		if err := e.loadNode(ctx, w, target, elem, pos, active); err != nil {
			return err
		}
	}

	if notify && e.tree.NotificationsEnabled() {
		target.NotifyChildrenChanged()
	}
	return nil
}

// loadNode processes a regular contribution element. Recoverable failures are
// reported and skip the element; the returned error is always fatal.
func (e *Engine) loadNode(ctx context.Context, w *walk, target *domain.TreeNode, elem *domain.NodeDescription,
	pos *int, active domain.Condition) error {

	if elem.InsertAfter != "" {
		if i := target.IndexOf(elem.InsertAfter); i != -1 {
			*pos = i + 1
		}
	}
	if elem.InsertBefore != "" {
		if i := target.IndexOf(elem.InsertBefore); i != -1 {
			*pos = i
		}
	}

	nt, err := e.Resolve(target.NodeSet(), elem.NodeName, w.moduleID)
	if err != nil {
		if domain.IsFatal(err) {
			e.report(ctx, err.Error(), w.moduleID, err, false)
			return err
		}
		e.report(ctx, e.resolveMessage(elem, target, err), w.moduleID, err, false)
		return nil
	}

	id := elem.ID
	switch {
	case id == "":
		e.nextID++
		id = domain.AutoIDPrefix + strconv.Itoa(e.nextID)
	case strings.HasPrefix(id, domain.AutoIDPrefix):
		e.report(ctx, fmt.Sprintf("Node id '%s' in extension '%s' uses the reserved prefix '%s'.", id, target.Path(), domain.AutoIDPrefix),
			w.moduleID, domain.ErrReservedID, false)
		return nil
	}

	cond := active
	if elem.Condition != "" {
		cond = domain.Compose(active, e.parseExpression(ctx, elem.Condition, w.moduleID))
	}

	node := domain.NewTreeNode(id)
	if err := e.instantiate(node, target, w.moduleID, nt, elem); err != nil {
		e.report(ctx, err.Error(), w.moduleID, err, false)
		return nil
	}
	node.Condition = cond

	target.InsertChild(*pos, node)
	w.added = append(w.added, node)
	*pos++

	if cond != nil {
		e.tree.RegisterNodeCondition(node, cond)
	}
	e.nodeInserted(ctx, w.moduleID, node, nt)

	if len(elem.Children) > 0 {
		childPos := 0
		if err := e.loadElements(ctx, w, node, elem.Children, &childPos, cond, false, true); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) resolveMessage(elem *domain.NodeDescription, target *domain.TreeNode, err error) string {
	switch {
	case errors.Is(err, domain.ErrNodeNotAllowed):
		return fmt.Sprintf("Node '%s' not allowed in extension: %s", elem.NodeName, target.Path())
	case errors.Is(err, domain.ErrActivationCycle):
		return fmt.Sprintf("Can't resolve node '%s' in extension %s: %v", elem.NodeName, target.Path(), err)
	default:
		return fmt.Sprintf("Could not resolve type of node '%s' in extension %s: %v", elem.NodeName, target.Path(), err)
	}
}

// report sends a recoverable error to the host and the lifecycle hooks.
func (e *Engine) report(ctx context.Context, message, moduleID string, cause error, warning bool) {
	e.host.ReportError(message, moduleID, cause, warning)
	if e.hooks.OnErrorReported != nil {
		e.hooks.OnErrorReported(ctx, &domain.ErrorEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventErrorReported},
			ModuleID:  moduleID,
			Message:   message,
			Cause:     cause,
			Warning:   warning,
		})
	}
}

func (e *Engine) nodeInserted(ctx context.Context, moduleID string, node *domain.TreeNode, nt *domain.NodeType) {
	e.logger.Debug("node inserted", "module", moduleID, "path", node.Path(), "node", nt.Name)
	if e.hooks.OnNodeInserted != nil {
		e.hooks.OnNodeInserted(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeInserted},
			ModuleID:  moduleID,
			Path:      node.Path(),
			NodeName:  nt.Name,
		})
	}
}

func (e *Engine) contributionLoaded(ctx context.Context, c domain.Contribution, added int, start time.Time, err error) {
	if e.hooks.OnContributionLoaded != nil {
		e.hooks.OnContributionLoaded(ctx, &domain.ContributionEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventContributionLoaded},
			ModuleID:  c.ModuleID,
			Path:      c.Path,
			Added:     added,
			Duration:  time.Since(start),
			Err:       err,
		})
	}
}

package ports

import "github.com/aretw0/arbor/pkg/domain"

// ExtensionContext exposes the shared tree the engine merges into.
type ExtensionContext interface {
	// FindNodeByPath returns the node at an extension path.
	FindNodeByPath(path string) (*domain.TreeNode, bool)

	// RegisterNodeCondition indexes a node under its condition so the host
	// can re-evaluate visibility when the condition's inputs change.
	RegisterNodeCondition(node *domain.TreeNode, cond domain.Condition)

	// NotificationsEnabled gates the batched children-changed notifications.
	NotificationsEnabled() bool
}

package domain

import (
	"strings"
)

// PathSeparator separates node ids in an extension path.
const PathSeparator = "/"

// TreeNode is the unit of structure of the merged extension tree.
// A parent owns its children; a child keeps a non-owning link back to its parent.
// Child order is significant. Conditions are not evaluated here: they are a
// separate filter applied at read time by the host.
type TreeNode struct {
	ID string

	// Condition gates the visibility of this node (nil means always visible).
	Condition Condition

	parent   *TreeNode
	children []*TreeNode

	nodeSet  *NodeSet
	nodeType *NodeType
	object   ExtensionObject

	listeners []func(*TreeNode)
}

// NewTreeNode creates a detached node with the given id.
func NewTreeNode(id string) *TreeNode {
	return &TreeNode{ID: id}
}

// Parent returns the node this one is attached to, or nil for a root.
func (n *TreeNode) Parent() *TreeNode {
	return n.parent
}

// ChildCount returns the number of children.
func (n *TreeNode) ChildCount() int {
	return len(n.children)
}

// Child returns the child at index i.
func (n *TreeNode) Child(i int) *TreeNode {
	return n.children[i]
}

// Children returns a copy of the ordered child list.
func (n *TreeNode) Children() []*TreeNode {
	out := make([]*TreeNode, len(n.children))
	copy(out, n.children)
	return out
}

// IndexOf returns the position of the child with the given id, or -1.
func (n *TreeNode) IndexOf(id string) int {
	for i, c := range n.children {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// ChildByID returns the child with the given id.
func (n *TreeNode) ChildByID(id string) (*TreeNode, bool) {
	if i := n.IndexOf(id); i != -1 {
		return n.children[i], true
	}
	return nil, false
}

// InsertChild attaches child at pos. Positions outside [0, ChildCount] are clamped.
func (n *TreeNode) InsertChild(pos int, child *TreeNode) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(n.children) {
		pos = len(n.children)
	}
	child.parent = n
	n.children = append(n.children, nil)
	copy(n.children[pos+1:], n.children[pos:])
	n.children[pos] = child
}

// AppendChild attaches child after the current last child.
func (n *TreeNode) AppendChild(child *TreeNode) {
	n.InsertChild(len(n.children), child)
}

// Path returns the extension path of this node, e.g. "/Workbench/Menus/open".
// The root node has an empty path.
func (n *TreeNode) Path() string {
	if n.parent == nil {
		return ""
	}
	return n.parent.Path() + PathSeparator + n.ID
}

// Find descends from n following a path of ids. An empty path returns n.
func (n *TreeNode) Find(path string) (*TreeNode, bool) {
	cur := n
	for _, id := range strings.Split(path, PathSeparator) {
		if id == "" {
			continue
		}
		next, ok := cur.ChildByID(id)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Walk visits n and all of its descendants depth-first in child order.
// Returning false from fn prunes the subtree below the visited node.
func (n *TreeNode) Walk(fn func(*TreeNode) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// NodeSet returns the set of node types that may be attached below this node.
func (n *TreeNode) NodeSet() *NodeSet {
	return n.nodeSet
}

// SetNodeSet declares which node types may be attached below this node.
func (n *TreeNode) SetNodeSet(set *NodeSet) {
	n.nodeSet = set
}

// NodeType returns the resolved type this node was created from, if any.
func (n *TreeNode) NodeType() *NodeType {
	return n.nodeType
}

// ExtensionObject returns the object bound to this node, if any.
func (n *TreeNode) ExtensionObject() ExtensionObject {
	return n.object
}

// Attach binds an instantiated extension object and its type to the node.
// The node set below the node becomes the one declared by the type.
func (n *TreeNode) Attach(nt *NodeType, obj ExtensionObject) {
	n.nodeType = nt
	n.object = obj
	if nt != nil {
		n.nodeSet = &nt.NodeSet
	}
}

// OnChildrenChanged subscribes fn to batched child-list change notifications.
func (n *TreeNode) OnChildrenChanged(fn func(*TreeNode)) {
	n.listeners = append(n.listeners, fn)
}

// NotifyChildrenChanged signals subscribers that a batch of children is complete.
func (n *TreeNode) NotifyChildrenChanged() {
	for _, fn := range n.listeners {
		fn(n)
	}
}

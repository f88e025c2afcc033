package domain

import "time"

// NodeSnapshot is a serializable, read-only copy of a subtree.
type NodeSnapshot struct {
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	NodeName  string         `json:"node,omitempty"`
	ModuleID  string         `json:"module,omitempty"`
	Condition string         `json:"condition,omitempty"`
	Children  []NodeSnapshot `json:"children,omitempty"`
}

// Snapshot copies n and its descendants.
func (n *TreeNode) Snapshot() NodeSnapshot {
	s := NodeSnapshot{
		ID:   n.ID,
		Path: n.Path(),
	}
	if n.nodeType != nil {
		s.NodeName = n.nodeType.Name
		s.ModuleID = n.nodeType.ModuleID
	}
	if n.Condition != nil {
		s.Condition = n.Condition.String()
	}
	if len(n.children) > 0 {
		s.Children = make([]NodeSnapshot, 0, len(n.children))
		for _, c := range n.children {
			s.Children = append(s.Children, c.Snapshot())
		}
	}
	return s
}

// Walk visits s and its descendants depth-first in child order.
func (s NodeSnapshot) Walk(fn func(NodeSnapshot)) {
	fn(s)
	for _, c := range s.Children {
		c.Walk(fn)
	}
}

// Count returns the number of nodes in the snapshot, s included.
func (s NodeSnapshot) Count() int {
	n := 0
	s.Walk(func(NodeSnapshot) { n++ })
	return n
}

// ReportedError is a recoverable error as recorded by a host.
type ReportedError struct {
	Time     time.Time `json:"time"`
	Message  string    `json:"message"`
	ModuleID string    `json:"module,omitempty"`
	Cause    string    `json:"cause,omitempty"`
	Warning  bool      `json:"warning,omitempty"`
}

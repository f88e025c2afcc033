package dsl

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// PointBuilder declares the node types an extension point accepts.
type PointBuilder struct {
	path     string
	moduleID string
	types    []*TypeBuilder
}

// Type declares a node type accepted at the point. An empty typeName uses
// the baseline extension type.
func (p *PointBuilder) Type(name, typeName string) *TypeBuilder {
	t := &TypeBuilder{point: p, nt: &domain.NodeType{Name: name, ModuleID: p.moduleID, TypeName: typeName}}
	p.types = append(p.types, t)
	return t
}

func (p *PointBuilder) build() (domain.ExtensionPoint, error) {
	byName := make(map[string]*domain.NodeType, len(p.types))
	set := &domain.NodeSet{ID: p.path}
	for _, t := range p.types {
		if _, dup := byName[t.nt.Name]; dup {
			return domain.ExtensionPoint{}, fmt.Errorf("node type '%s' declared twice in %s", t.nt.Name, p.path)
		}
		byName[t.nt.Name] = t.nt
		if !t.nested {
			set.Add(t.nt)
		}
	}
	for _, t := range p.types {
		for _, child := range t.children {
			nt, ok := byName[child]
			if !ok {
				return domain.ExtensionPoint{}, fmt.Errorf("node type '%s' allows undeclared child type '%s'", t.nt.Name, child)
			}
			t.nt.Add(nt)
		}
	}
	return domain.ExtensionPoint{Path: p.path, ModuleID: p.moduleID, NodeSet: set}, nil
}

// TypeBuilder provides a fluent API for configuring a node type.
type TypeBuilder struct {
	point    *PointBuilder
	nt       *domain.NodeType
	children []string
	nested   bool
}

// Payload binds the node type to a custom payload type.
func (t *TypeBuilder) Payload(payloadTypeName string) *TypeBuilder {
	t.nt.PayloadTypeName = payloadTypeName
	return t
}

// Children lists the node types (declared at the same point) allowed below
// nodes of this type. A type may list itself.
func (t *TypeBuilder) Children(names ...string) *TypeBuilder {
	t.children = append(t.children, names...)
	return t
}

// Nested hides the type from the point itself: it is only allowed below the
// types listing it as a child.
func (t *TypeBuilder) Nested() *TypeBuilder {
	t.nested = true
	return t
}

// ContributionBuilder collects the nodes a module contributes to one path.
type ContributionBuilder struct {
	path  string
	nodes []*NodeBuilder
}

// Add appends a node to the contribution. An empty id lets the engine generate one.
func (c *ContributionBuilder) Add(nodeName, id string) *NodeBuilder {
	n := &NodeBuilder{desc: domain.NodeDescription{NodeName: nodeName, ID: id}}
	c.nodes = append(c.nodes, n)
	return n
}

func (c *ContributionBuilder) build(moduleID string) domain.Contribution {
	return domain.Contribution{Path: c.path, ModuleID: moduleID, Nodes: buildNodes(c.nodes)}
}

// NodeBuilder provides a fluent API for configuring a node description.
type NodeBuilder struct {
	desc     domain.NodeDescription
	children []*NodeBuilder
}

// Attr sets an attribute.
func (n *NodeBuilder) Attr(name, value string) *NodeBuilder {
	if n.desc.Attributes == nil {
		n.desc.Attributes = make(map[string]string)
	}
	n.desc.Attributes[name] = value
	return n
}

// Before places the node before the sibling with the given id.
func (n *NodeBuilder) Before(id string) *NodeBuilder {
	n.desc.InsertBefore = id
	return n
}

// After places the node after the sibling with the given id.
func (n *NodeBuilder) After(id string) *NodeBuilder {
	n.desc.InsertAfter = id
	return n
}

// When gates the node with an inline condition expression.
func (n *NodeBuilder) When(expr string) *NodeBuilder {
	n.desc.Condition = expr
	return n
}

// Child adds a nested node and returns its builder.
func (n *NodeBuilder) Child(nodeName, id string) *NodeBuilder {
	c := &NodeBuilder{desc: domain.NodeDescription{NodeName: nodeName, ID: id}}
	n.children = append(n.children, c)
	return c
}

// Build returns the underlying domain.NodeDescription, children included.
func (n *NodeBuilder) Build() domain.NodeDescription {
	d := n.desc
	if d.Attributes != nil {
		attrs := make(map[string]string, len(d.Attributes))
		for k, v := range d.Attributes {
			attrs[k] = v
		}
		d.Attributes = attrs
	}
	d.Children = buildNodes(n.children)
	return d
}

func buildNodes(nodes []*NodeBuilder) []domain.NodeDescription {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]domain.NodeDescription, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Build())
	}
	return out
}

// Condition adds a Condition block to the contribution: the nodes added to
// the returned builder are gated by the predicate id with the given attributes.
func (c *ContributionBuilder) Condition(id string, attrs map[string]string) *NodeBuilder {
	n := c.Add(domain.NodeNameCondition, id)
	for k, v := range attrs {
		n.Attr(k, v)
	}
	return n
}

package extension

import (
	"github.com/aretw0/arbor/pkg/domain"
)

// Baseline type names. A node type declaring no type name resolves to TypeNode.
const (
	NodeTypeName     = "Node"
	TypeNodeTypeName = "TypeNode"
)

// NodeBindings is the binding table of Node. Node binds no attributes itself.
var NodeBindings = domain.NewBindings(NodeTypeName)

// TypeNodeBindings is the binding table of TypeNode.
var TypeNodeBindings = domain.NewBindings(TypeNodeTypeName).
	Extends(NodeBindings).
	Field("Class", domain.Named("type"))

// Node is the base of every extension object. Custom types embed it:
//
//	type MenuItem struct {
//		extension.Node `mapstructure:",squash"`
//		Label          string
//	}
type Node struct {
	tree       *domain.TreeNode
	moduleID   string
	nodeType   *domain.NodeType
	attributes map[string]string
}

// SetData implements domain.ExtensionObject.
func (n *Node) SetData(tree *domain.TreeNode, moduleID string, nt *domain.NodeType) {
	n.tree = tree
	n.moduleID = moduleID
	n.nodeType = nt
}

// ID returns the id of the tree node the object is bound to.
func (n *Node) ID() string {
	if n.tree == nil {
		return ""
	}
	return n.tree.ID
}

// Path returns the extension path of the bound tree node.
func (n *Node) Path() string {
	if n.tree == nil {
		return ""
	}
	return n.tree.Path()
}

// TreeNode returns the tree node the object is bound to.
func (n *Node) TreeNode() *domain.TreeNode {
	return n.tree
}

// ModuleID returns the module that contributed the node.
func (n *Node) ModuleID() string {
	return n.moduleID
}

// NodeType returns the resolved node type.
func (n *Node) NodeType() *domain.NodeType {
	return n.nodeType
}

// Attributes returns the raw attribute map of the description, including
// attributes with no binding.
func (n *Node) Attributes() map[string]string {
	return n.attributes
}

// Attribute returns one raw attribute value.
func (n *Node) Attribute(name string) string {
	return n.attributes[name]
}

func (n *Node) setAttributes(attrs map[string]string) {
	n.attributes = make(map[string]string, len(attrs))
	for k, v := range attrs {
		n.attributes[k] = v
	}
}

// TypeNode is a node naming a type for the host to instantiate (its "type" attribute).
type TypeNode struct {
	Node  `mapstructure:",squash"`
	Class string
}

// PayloadNode is Node carrying a custom payload of type T.
type PayloadNode[T any] struct {
	Node `mapstructure:",squash"`
	Data T `mapstructure:"-"`
}

// PayloadTarget implements domain.PayloadCarrier.
func (n *PayloadNode[T]) PayloadTarget() any {
	return &n.Data
}

// PayloadTypeNode is TypeNode carrying a custom payload of type T.
type PayloadTypeNode[T any] struct {
	TypeNode `mapstructure:",squash"`
	Data     T `mapstructure:"-"`
}

// PayloadTarget implements domain.PayloadCarrier.
func (n *PayloadTypeNode[T]) PayloadTarget() any {
	return &n.Data
}

// NodeType is the extension type of Node.
var NodeType = &domain.ExtensionType{
	Name:     NodeTypeName,
	New:      func() domain.ExtensionObject { return &Node{} },
	Bindings: NodeBindings,
}

// TypeNodeType is the extension type of TypeNode.
var TypeNodeType = &domain.ExtensionType{
	Name:     TypeNodeTypeName,
	New:      func() domain.ExtensionObject { return &TypeNode{} },
	Bindings: TypeNodeBindings,
}

// NewPayloadType builds the payload-carrying variants of the baseline types
// for payload type T. bindings describes the members of T.
func NewPayloadType[T any](name string, bindings *domain.Bindings) *domain.PayloadType {
	if bindings == nil {
		bindings = domain.NewBindings(name)
	}
	return &domain.PayloadType{
		Name:     name,
		Bindings: bindings,
		Node: &domain.ExtensionType{
			Name:     NodeTypeName + "[" + name + "]",
			New:      func() domain.ExtensionObject { return &PayloadNode[T]{} },
			Bindings: domain.NewBindings(NodeTypeName+"["+name+"]").Extends(NodeBindings).Payload("Data", name),
		},
		TypeNode: &domain.ExtensionType{
			Name:     TypeNodeTypeName + "[" + name + "]",
			New:      func() domain.ExtensionObject { return &PayloadTypeNode[T]{} },
			Bindings: domain.NewBindings(TypeNodeTypeName+"["+name+"]").Extends(TypeNodeBindings).Payload("Data", name),
		},
	}
}

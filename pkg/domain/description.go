package domain

// Reserved node names and ids understood by the merge engine.
const (
	NodeNameComplexCondition = "ComplexCondition"
	NodeNameCondition        = "Condition"
	NodeNameAnd              = "And"
	NodeNameOr               = "Or"
	NodeNameNot              = "Not"

	// ExpressionConditionID marks a Condition element whose predicate is the
	// boolean expression held in its ExpressionAttribute.
	ExpressionConditionID = "__exp"
	ExpressionAttribute   = "exp"

	// AutoIDPrefix prefixes engine-generated ids. Manifest authors may not use it.
	AutoIDPrefix = "__nid_"
)

// NodeDescription is one element of a contribution as declared in a manifest.
type NodeDescription struct {
	NodeName     string            `json:"node" yaml:"node"`
	ID           string            `json:"id,omitempty" yaml:"id,omitempty"`
	InsertBefore string            `json:"insert_before,omitempty" yaml:"insert_before,omitempty"`
	InsertAfter  string            `json:"insert_after,omitempty" yaml:"insert_after,omitempty"`
	Condition    string            `json:"condition,omitempty" yaml:"condition,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children     []NodeDescription `json:"children,omitempty" yaml:"children,omitempty"`
}

// Attribute returns the raw value of an attribute, or "".
func (d *NodeDescription) Attribute(name string) string {
	return d.Attributes[name]
}

// Contribution is an ordered set of node descriptions submitted by a module
// for one extension point.
type Contribution struct {
	Path     string            `json:"path" yaml:"path"`
	ModuleID string            `json:"module" yaml:"module"`
	Nodes    []NodeDescription `json:"nodes" yaml:"nodes"`
}

// ExtensionPoint declares a named tree location and the node types allowed there.
type ExtensionPoint struct {
	Path     string
	ModuleID string
	NodeSet  *NodeSet
}

// ModuleManifest is everything a module declares: its extension points and
// its contributions to extension points of other modules (or its own).
type ModuleManifest struct {
	ID              string
	Dependencies    []string
	Lazy            bool
	ExtensionPoints []ExtensionPoint
	Contributions   []Contribution
}

package domain

// NodeSet is the set of node types permitted at a tree location.
// A set may include other sets, whose types are then permitted as well.
type NodeSet struct {
	ID    string
	Types []*NodeType
	Sets  []*NodeSet
}

// Add appends node types to the set and returns it for chaining.
func (s *NodeSet) Add(types ...*NodeType) *NodeSet {
	s.Types = append(s.Types, types...)
	return s
}

// Include makes the types of other sets permitted in s.
func (s *NodeSet) Include(sets ...*NodeSet) *NodeSet {
	s.Sets = append(s.Sets, sets...)
	return s
}

// Find looks up a permitted node type by node-name.
func (s *NodeSet) Find(name string) (*NodeType, bool) {
	return s.find(name, make(map[*NodeSet]bool))
}

func (s *NodeSet) find(name string, visited map[*NodeSet]bool) (*NodeType, bool) {
	if s == nil || visited[s] {
		return nil, false
	}
	visited[s] = true
	for _, nt := range s.Types {
		if nt.Name == name {
			return nt, true
		}
	}
	for _, inc := range s.Sets {
		if nt, ok := inc.find(name, visited); ok {
			return nt, true
		}
	}
	return nil, false
}

// NodeType describes a node-name that may appear in contributions: who owns it,
// which concrete type implements it and how attributes bind to that type.
// The embedded NodeSet lists the node types allowed below nodes of this type.
//
// Type, Fields, PayloadField and PayloadFields are filled on first use and
// reused by every later node of the same node-name.
type NodeType struct {
	NodeSet

	Name            string
	ModuleID        string
	TypeName        string
	PayloadTypeName string

	Type          *ExtensionType
	Fields        map[string]*FieldBinding
	PayloadField  *FieldBinding
	PayloadFields map[string]*FieldBinding

	fatal error
}

// Resolved reports whether the concrete type has been resolved.
func (nt *NodeType) Resolved() bool {
	return nt.Type != nil
}

// Fail latches a fatal type-declaration error. A failed descriptor is never
// resolved again: every later attempt reports the same error.
func (nt *NodeType) Fail(err error) {
	nt.fatal = err
}

// Err returns the latched fatal error, if any.
func (nt *NodeType) Err() error {
	return nt.fatal
}

// FieldBinding binds an external attribute name to a member of an extension type.
type FieldBinding struct {
	Name        string // attribute name used by manifests
	Member      string // Go field name on the extension type
	Required    bool
	Localizable bool
	MemberType  string
	Payload     bool // member holds the custom payload
}

// ExtensionType is a concrete, instantiable extension object type.
type ExtensionType struct {
	Name     string
	New      func() ExtensionObject
	Bindings *Bindings
}

// PayloadType is a custom payload type a node type can be bound to.
// Node and TypeNode are the payload-carrying variants of the baseline types.
type PayloadType struct {
	Name     string
	Bindings *Bindings
	Node     *ExtensionType
	TypeNode *ExtensionType
}

// ExtensionObject is the payload instantiated for every merged node.
type ExtensionObject interface {
	// SetData hands the object its tree node, owning module and resolved type.
	SetData(node *TreeNode, moduleID string, nt *NodeType)
}

// Reader is implemented by extension objects that read extra data from
// their description after attribute binding.
type Reader interface {
	Read(desc *NodeDescription) error
}

// Validator is implemented by self-validating extension objects.
// A validation error discards the node.
type Validator interface {
	Validate() error
}

// PayloadCarrier is implemented by extension objects bound to a custom payload.
// PayloadTarget returns a pointer the payload attributes are decoded into.
type PayloadCarrier interface {
	PayloadTarget() any
}

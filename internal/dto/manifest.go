package dto

import (
	"github.com/aretw0/arbor/pkg/domain"
)

// ModuleDocument is the on-disk form of a module manifest.
// The json tags are what Loam decodes frontmatter with; yaml tags serve the
// file source and mapstructure tags the loose-map decoding.
type ModuleDocument struct {
	ID              string                   `json:"module" yaml:"module" mapstructure:"module" validate:"required,excludesall=/"`
	Description     string                   `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Dependencies    []string                 `json:"dependencies,omitempty" yaml:"dependencies,omitempty" mapstructure:"dependencies" validate:"dive,required"`
	Lazy            bool                     `json:"lazy,omitempty" yaml:"lazy,omitempty" mapstructure:"lazy"`
	ExtensionPoints []ExtensionPointDocument `json:"extension_points,omitempty" yaml:"extension_points,omitempty" mapstructure:"extension_points" validate:"dive"`
	Contributions   []ContributionDocument   `json:"contributions,omitempty" yaml:"contributions,omitempty" mapstructure:"contributions" validate:"dive"`
}

// ExtensionPointDocument declares a tree location and the node types it accepts.
type ExtensionPointDocument struct {
	Path    string             `json:"path" yaml:"path" mapstructure:"path" validate:"required,startswith=/"`
	NodeSet []NodeTypeDocument `json:"node_set" yaml:"node_set" mapstructure:"node_set" validate:"dive"`
}

// NodeTypeDocument declares a node-name. Children lists the node types
// accepted below nodes of this type.
type NodeTypeDocument struct {
	Name     string             `json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Type     string             `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Payload  string             `json:"payload,omitempty" yaml:"payload,omitempty" mapstructure:"payload"`
	Children []NodeTypeDocument `json:"children,omitempty" yaml:"children,omitempty" mapstructure:"children" validate:"dive"`
}

// ContributionDocument is a batch of nodes for one extension point.
type ContributionDocument struct {
	Path  string         `json:"path" yaml:"path" mapstructure:"path" validate:"required,startswith=/"`
	Nodes []NodeDocument `json:"nodes" yaml:"nodes" mapstructure:"nodes" validate:"required,dive"`
}

// NodeDocument is a node description.
type NodeDocument struct {
	Node         string            `json:"node" yaml:"node" mapstructure:"node" validate:"required"`
	ID           string            `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	InsertBefore string            `json:"insert_before,omitempty" yaml:"insert_before,omitempty" mapstructure:"insert_before"`
	InsertAfter  string            `json:"insert_after,omitempty" yaml:"insert_after,omitempty" mapstructure:"insert_after"`
	Condition    string            `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`
	Attributes   map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" mapstructure:"attributes"`
	Children     []NodeDocument    `json:"children,omitempty" yaml:"children,omitempty" mapstructure:"children" validate:"dive"`
}

// ToManifest converts the document into the domain manifest.
func (d ModuleDocument) ToManifest() domain.ModuleManifest {
	m := domain.ModuleManifest{
		ID:           d.ID,
		Dependencies: append([]string(nil), d.Dependencies...),
		Lazy:         d.Lazy,
	}
	for _, ep := range d.ExtensionPoints {
		set := &domain.NodeSet{ID: ep.Path}
		for _, nt := range ep.NodeSet {
			set.Add(nt.toNodeType(d.ID))
		}
		m.ExtensionPoints = append(m.ExtensionPoints, domain.ExtensionPoint{
			Path:     ep.Path,
			ModuleID: d.ID,
			NodeSet:  set,
		})
	}
	for _, c := range d.Contributions {
		m.Contributions = append(m.Contributions, domain.Contribution{
			Path:     c.Path,
			ModuleID: d.ID,
			Nodes:    toDescriptions(c.Nodes),
		})
	}
	return m
}

func (n NodeTypeDocument) toNodeType(moduleID string) *domain.NodeType {
	nt := &domain.NodeType{
		Name:            n.Name,
		ModuleID:        moduleID,
		TypeName:        n.Type,
		PayloadTypeName: n.Payload,
	}
	nt.ID = n.Name
	for _, child := range n.Children {
		nt.Add(child.toNodeType(moduleID))
	}
	return nt
}

func toDescriptions(nodes []NodeDocument) []domain.NodeDescription {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]domain.NodeDescription, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, domain.NodeDescription{
			NodeName:     n.Node,
			ID:           n.ID,
			InsertBefore: n.InsertBefore,
			InsertAfter:  n.InsertAfter,
			Condition:    n.Condition,
			Attributes:   n.Attributes,
			Children:     toDescriptions(n.Children),
		})
	}
	return out
}

// FromManifest converts a domain manifest back into its document form.
func FromManifest(m domain.ModuleManifest) ModuleDocument {
	d := ModuleDocument{
		ID:           m.ID,
		Dependencies: append([]string(nil), m.Dependencies...),
		Lazy:         m.Lazy,
	}
	for _, ep := range m.ExtensionPoints {
		doc := ExtensionPointDocument{Path: ep.Path}
		if ep.NodeSet != nil {
			for _, nt := range ep.NodeSet.Types {
				doc.NodeSet = append(doc.NodeSet, fromNodeType(nt, map[*domain.NodeType]bool{}))
			}
		}
		d.ExtensionPoints = append(d.ExtensionPoints, doc)
	}
	for _, c := range m.Contributions {
		d.Contributions = append(d.Contributions, ContributionDocument{Path: c.Path, Nodes: fromDescriptions(c.Nodes)})
	}
	return d
}

func fromNodeType(nt *domain.NodeType, seen map[*domain.NodeType]bool) NodeTypeDocument {
	doc := NodeTypeDocument{Name: nt.Name, Type: nt.TypeName, Payload: nt.PayloadTypeName}
	if seen[nt] {
		return doc
	}
	seen[nt] = true
	for _, child := range nt.Types {
		doc.Children = append(doc.Children, fromNodeType(child, seen))
	}
	return doc
}

func fromDescriptions(descs []domain.NodeDescription) []NodeDocument {
	if len(descs) == 0 {
		return nil
	}
	out := make([]NodeDocument, 0, len(descs))
	for _, d := range descs {
		out = append(out, NodeDocument{
			Node:         d.NodeName,
			ID:           d.ID,
			InsertBefore: d.InsertBefore,
			InsertAfter:  d.InsertAfter,
			Condition:    d.Condition,
			Attributes:   d.Attributes,
			Children:     fromDescriptions(d.Children),
		})
	}
	return out
}

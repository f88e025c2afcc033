package domain

// Bindings declares the bindable members of one extension type.
// It replaces attribute discovery by introspection: each type registers its
// table once and points at the table of the type it extends.
//
//	var MenuItemBindings = domain.NewBindings("MenuItem").
//		Extends(extension.TypeNodeBindings).
//		Field("Label", domain.Required(), domain.Localizable()).
//		Field("Icon", domain.Named("icon"))
type Bindings struct {
	typeName string
	base     *Bindings
	fields   []FieldBinding
}

// FieldOption customizes a declared field binding.
type FieldOption func(*FieldBinding)

// Named overrides the external attribute name (default: the member name).
func Named(name string) FieldOption {
	return func(f *FieldBinding) {
		f.Name = name
	}
}

// Required makes the attribute mandatory.
func Required() FieldOption {
	return func(f *FieldBinding) {
		f.Required = true
	}
}

// Localizable marks the attribute value as translatable text.
func Localizable() FieldOption {
	return func(f *FieldBinding) {
		f.Localizable = true
	}
}

// OfType records the declared member type name.
func OfType(typeName string) FieldOption {
	return func(f *FieldBinding) {
		f.MemberType = typeName
	}
}

// NewBindings starts the binding table of the named type.
func NewBindings(typeName string) *Bindings {
	return &Bindings{typeName: typeName}
}

// TypeName returns the name of the type the table belongs to.
func (b *Bindings) TypeName() string {
	return b.typeName
}

// Base returns the table of the extended type, or nil.
func (b *Bindings) Base() *Bindings {
	return b.base
}

// Extends sets the parent type in the hierarchy.
func (b *Bindings) Extends(base *Bindings) *Bindings {
	b.base = base
	return b
}

// Field declares a bindable member.
func (b *Bindings) Field(member string, opts ...FieldOption) *Bindings {
	f := FieldBinding{Name: member, Member: member, MemberType: "string"}
	for _, opt := range opts {
		opt(&f)
	}
	b.fields = append(b.fields, f)
	return b
}

// Payload declares a member holding a custom payload of the given type.
func (b *Bindings) Payload(member, payloadTypeName string) *Bindings {
	b.fields = append(b.fields, FieldBinding{
		Name:       member,
		Member:     member,
		MemberType: payloadTypeName,
		Payload:    true,
	})
	return b
}

// Collect walks the table and every ancestor, returning the bindings keyed by
// attribute name plus the single payload member, if any. Declarations on a
// derived type win over same-named ones on its ancestors.
//
// A hierarchy with more than one payload member is malformed and yields a
// *DuplicatePayloadError.
func (b *Bindings) Collect() (map[string]*FieldBinding, *FieldBinding, error) {
	fields := make(map[string]*FieldBinding)
	var payload *FieldBinding
	visited := make(map[*Bindings]bool)

	for cur := b; cur != nil && !visited[cur]; cur = cur.base {
		visited[cur] = true
		for i := range cur.fields {
			f := cur.fields[i]
			if f.Payload {
				if payload != nil {
					return nil, nil, &DuplicatePayloadError{
						TypeName: cur.typeName,
						Members:  []string{payload.Member, f.Member},
					}
				}
				payload = &f
				continue
			}
			if _, exists := fields[f.Name]; !exists {
				fields[f.Name] = &f
			}
		}
	}
	return fields, payload, nil
}

package registry

import (
	"fmt"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/extension"
)

// Factory creates a fresh extension object.
type Factory func() domain.ExtensionObject

type key struct {
	module string
	name   string
}

// Registry maps (module id, type name) to the extension types and custom
// payload types each module provides.
type Registry struct {
	mu       sync.RWMutex
	types    map[key]*domain.ExtensionType
	payloads map[key]*domain.PayloadType
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:    make(map[key]*domain.ExtensionType),
		payloads: make(map[key]*domain.PayloadType),
	}
}

// Register adds an extension type owned by moduleID.
// If a type with the same name exists in that module, it is overwritten.
func (r *Registry) Register(moduleID, name string, fn Factory, bindings *domain.Bindings) *domain.ExtensionType {
	if bindings == nil {
		bindings = domain.NewBindings(name).Extends(extension.NodeBindings)
	}
	t := &domain.ExtensionType{Name: name, New: fn, Bindings: bindings}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[key{moduleID, name}] = t
	return t
}

// RegisterPayload adds a custom payload type T owned by moduleID, together
// with the baseline variants carrying it.
func RegisterPayload[T any](r *Registry, moduleID, name string, bindings *domain.Bindings) *domain.PayloadType {
	pt := extension.NewPayloadType[T](name, bindings)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads[key{moduleID, name}] = pt
	return pt
}

// Lookup returns the extension type registered under (moduleID, name).
func (r *Registry) Lookup(moduleID, name string) (*domain.ExtensionType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[key{moduleID, name}]
	return t, ok
}

// LookupPayload returns the payload type registered under (moduleID, name).
func (r *Registry) LookupPayload(moduleID, name string) (*domain.PayloadType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pt, ok := r.payloads[key{moduleID, name}]
	return pt, ok
}

// New instantiates the type registered under (moduleID, name).
// Returns an error if the type is not found.
func (r *Registry) New(moduleID, name string) (domain.ExtensionObject, error) {
	t, ok := r.Lookup(moduleID, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s in module %s", domain.ErrTypeNotFound, name, moduleID)
	}
	return t.New(), nil
}

// Module returns a view of the types owned by one module.
func (r *Registry) Module(moduleID string) *Module {
	return &Module{id: moduleID, reg: r}
}

// Module is the part of a Registry owned by one module.
// It implements ports.Module.
type Module struct {
	id  string
	reg *Registry
}

// ID returns the module id.
func (m *Module) ID() string {
	return m.id
}

// LookupType returns a type owned by the module.
func (m *Module) LookupType(name string) (*domain.ExtensionType, bool) {
	return m.reg.Lookup(m.id, name)
}

// LookupPayload returns a payload type owned by the module.
func (m *Module) LookupPayload(name string) (*domain.PayloadType, bool) {
	return m.reg.LookupPayload(m.id, name)
}

package runtime

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/extension"
	"github.com/aretw0/arbor/pkg/ports"
)

// Resolve returns the node type permitted as nodeName under set, resolving its
// concrete type on first use. Later calls return the cached descriptor.
//
// Recoverable errors wrap ErrNodeNotAllowed, ErrModuleNotFound,
// ErrTypeNotFound, ErrPayloadTypeNotFound or ErrActivationCycle; for those
// the caller skips the node. Errors for which domain.IsFatal is true mean the
// extension type itself is malformed. They are latched on the descriptor and
// returned again on every later attempt.
func (e *Engine) Resolve(set *domain.NodeSet, nodeName, requestingModule string) (*domain.NodeType, error) {
	nt, ok := e.host.FindNodeType(set, nodeName, requestingModule)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotAllowed, nodeName)
	}
	if err := nt.Err(); err != nil {
		return nil, err
	}
	if nt.Resolved() {
		return nt, nil
	}
	if err := e.initializeNodeType(nt); err != nil {
		if domain.IsFatal(err) {
			nt.Fail(err)
		}
		return nil, err
	}
	return nt, nil
}

// ActivateModule loads a module on demand. Activating a module that is
// already being activated further up the call stack fails with
// ErrActivationCycle instead of recursing.
func (e *Engine) ActivateModule(moduleID string) error {
	if e.activating[moduleID] {
		return fmt.Errorf("%w: '%s' is already being activated", domain.ErrActivationCycle, moduleID)
	}
	e.activating[moduleID] = true
	defer delete(e.activating, moduleID)

	if !e.host.LoadModule(moduleID, false) {
		return fmt.Errorf("%w: %s", domain.ErrModuleNotFound, moduleID)
	}
	return nil
}

// Activating reports whether the module is being activated on the current call stack.
func (e *Engine) Activating(moduleID string) bool {
	return e.activating[moduleID]
}

// initializeNodeType fills the concrete type and bindings of nt. The
// descriptor is only updated once every step succeeded.
func (e *Engine) initializeNodeType(nt *domain.NodeType) error {
	mod, err := e.owningModule(nt.ModuleID)
	if err != nil {
		return err
	}

	t, err := concreteType(mod, nt)
	if err != nil {
		return err
	}

	fields, payload, err := t.Bindings.Collect()
	if err != nil {
		return err
	}

	var payloadFields map[string]*domain.FieldBinding
	if payload != nil {
		if nt.PayloadTypeName == "" {
			return fmt.Errorf("%w: extension node '%s' is not bound to a custom payload but type '%s' declares payload member '%s'",
				domain.ErrPayloadDeclaration, nt.Name, t.Name, payload.Member)
		}
		if payload.MemberType != nt.PayloadTypeName {
			return fmt.Errorf("%w: incorrect custom payload type declaration in '%s'. Expected '%s' found '%s'",
				domain.ErrPayloadDeclaration, t.Name, nt.PayloadTypeName, payload.MemberType)
		}
		pt, ok := mod.LookupPayload(nt.PayloadTypeName)
		if !ok {
			return fmt.Errorf("%w: '%s' in module %s", domain.ErrPayloadTypeNotFound, nt.PayloadTypeName, nt.ModuleID)
		}
		if pt.Bindings != nil {
			if payloadFields, _, err = pt.Bindings.Collect(); err != nil {
				return err
			}
		}
	}

	nt.Type = t
	nt.Fields = fields
	nt.PayloadField = payload
	nt.PayloadFields = payloadFields
	return nil
}

// owningModule returns the module owning a node type, activating it if needed.
func (e *Engine) owningModule(moduleID string) (ports.Module, error) {
	if mod, ok := e.host.GetLoadedModule(moduleID); ok {
		return mod, nil
	}
	if !e.host.IsModuleLoaded(moduleID) || e.activating[moduleID] {
		if err := e.ActivateModule(moduleID); err != nil {
			return nil, err
		}
		if mod, ok := e.host.GetLoadedModule(moduleID); ok {
			return mod, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, moduleID)
}

// concreteType picks the extension type of nt. Baseline types bound to a
// payload resolve to the payload-carrying variant registered for it.
func concreteType(mod ports.Module, nt *domain.NodeType) (*domain.ExtensionType, error) {
	var base *domain.ExtensionType
	switch nt.TypeName {
	case "", extension.TypeNodeTypeName:
		base = extension.TypeNodeType
	case extension.NodeTypeName:
		base = extension.NodeType
	default:
		t, ok := mod.LookupType(nt.TypeName)
		if !ok {
			return nil, fmt.Errorf("%w: '%s' in module %s", domain.ErrTypeNotFound, nt.TypeName, nt.ModuleID)
		}
		return t, nil
	}

	if nt.PayloadTypeName == "" {
		return base, nil
	}
	pt, ok := mod.LookupPayload(nt.PayloadTypeName)
	if !ok {
		return nil, fmt.Errorf("%w: '%s' in module %s", domain.ErrPayloadTypeNotFound, nt.PayloadTypeName, nt.ModuleID)
	}
	if base == extension.NodeType {
		return pt.Node, nil
	}
	return pt.TypeNode, nil
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Recoverable errors. They are reported to the host and only the smallest
// affected unit (a node, or a contribution whose path is missing) is dropped.
var (
	// ErrExtensionPointNotDefined is reported when a contribution targets an unknown path.
	ErrExtensionPointNotDefined = errors.New("extension point not defined")

	// ErrNodeNotAllowed is reported when a node-name is not permitted at a path.
	ErrNodeNotAllowed = errors.New("node not allowed at this path")

	// ErrModuleNotFound is reported when the module owning a node type cannot be loaded.
	ErrModuleNotFound = errors.New("owning module not found")

	// ErrTypeNotFound is reported when a module does not provide a declared type.
	ErrTypeNotFound = errors.New("extension node type not found")

	// ErrPayloadTypeNotFound is reported when a module does not provide a declared payload type.
	ErrPayloadTypeNotFound = errors.New("custom payload type not found")

	// ErrActivationCycle is reported when activating a module would re-enter an activation in progress.
	ErrActivationCycle = errors.New("module activation cycle")

	// ErrInvalidCondition is reported for malformed condition blocks.
	ErrInvalidCondition = errors.New("invalid complex condition element")

	// ErrReservedID is reported when a manifest uses the engine's auto id prefix.
	ErrReservedID = errors.New("id uses reserved prefix")

	// ErrRequiredAttribute is reported when a required attribute is missing.
	ErrRequiredAttribute = errors.New("required attribute missing")
)

// ErrPayloadDeclaration is a fatal type-declaration error: the payload member
// of a type does not match the payload type its node type declares.
var ErrPayloadDeclaration = errors.New("incorrect custom payload declaration")

// DuplicatePayloadError is a fatal type-declaration error: a type hierarchy
// declares more than one member bound to a custom payload.
type DuplicatePayloadError struct {
	TypeName string
	Members  []string
}

func (e *DuplicatePayloadError) Error() string {
	return fmt.Sprintf("type '%s' has two members bound to a custom payload (%s); there can be only one",
		e.TypeName, strings.Join(e.Members, ", "))
}

// NodeReadError wraps a failure to instantiate or populate an extension object.
type NodeReadError struct {
	NodeName string
	Path     string
	Err      error
}

func (e *NodeReadError) Error() string {
	return fmt.Sprintf("could not read extension node '%s' from extension path '%s': %v", e.NodeName, e.Path, e.Err)
}

func (e *NodeReadError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a type-declaration error that must abort the
// whole contribution rather than be absorbed.
func IsFatal(err error) bool {
	var dup *DuplicatePayloadError
	return errors.As(err, &dup) || errors.Is(err, ErrPayloadDeclaration)
}

package ports

import "github.com/aretw0/arbor/pkg/domain"

// Host is the module runtime the merge engine is embedded in.
// It owns the module table, decides which node types are permitted where and
// receives every recoverable error the engine reports.
type Host interface {
	// ReportError records an error. It never fails and never panics.
	ReportError(message, moduleID string, cause error, isWarning bool)

	// FindNodeType looks up nodeName among the node types permitted by set.
	FindNodeType(set *domain.NodeSet, nodeName, requestingModule string) (*domain.NodeType, bool)

	// GetLoadedModule returns a module whose activation has completed.
	GetLoadedModule(moduleID string) (Module, bool)

	// IsModuleLoaded reports whether the module is loaded or being activated.
	IsModuleLoaded(moduleID string) bool

	// LoadModule activates a module on demand. It may merge the module's own
	// contributions, re-entering the engine on the same call stack.
	LoadModule(moduleID string, exact bool) bool
}

// Module is a loaded module, the unit that owns extension types.
type Module interface {
	ID() string

	// LookupType returns a concrete extension type by name.
	LookupType(name string) (*domain.ExtensionType, bool)

	// LookupPayload returns a custom payload type by name.
	LookupPayload(name string) (*domain.PayloadType, bool)
}

// Localizer translates attribute values bound to localizable members.
// Hosts may implement it alongside Host.
type Localizer interface {
	Localize(moduleID, text string) string
}

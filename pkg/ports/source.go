package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// ManifestSource provides module manifests (e.g., from a directory of YAML files).
type ManifestSource interface {
	// Load returns every manifest in deterministic order.
	Load(ctx context.Context) ([]domain.ModuleManifest, error)
}

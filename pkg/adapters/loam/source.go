package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/arbor/internal/dto"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/loam"
)

var _ ports.ManifestSource = (*Source)(nil)

// Source adapts a Loam repository to ports.ManifestSource.
// Each document is one module: the manifest lives in its frontmatter (or the
// document itself for JSON/YAML files) and a Markdown body, if any, becomes
// the module description.
type Source struct {
	Repo *loam.TypedRepository[dto.ModuleDocument]
}

// New creates a Loam manifest source.
func New(repo *loam.TypedRepository[dto.ModuleDocument]) *Source {
	return &Source{Repo: repo}
}

// Open initializes a read-only Loam repository at path.
func Open(path string) (*Source, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// The tree never writes manifests back.
	repo, err := loam.Init(absPath, loam.WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[dto.ModuleDocument](repo)), nil
}

// Documents lists the module documents of the repository, ordered by module id.
// Documents declaring neither a module id, extension points nor contributions
// (plain notes living next to the manifests) are skipped.
func (s *Source) Documents(ctx context.Context) ([]dto.ModuleDocument, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]dto.ModuleDocument, 0, len(docs))
	for _, doc := range docs {
		m := doc.Data
		if m.ID == "" {
			if len(m.ExtensionPoints) == 0 && len(m.Contributions) == 0 {
				continue
			}
			m.ID = trimExtension(doc.ID)
		}
		if m.Description == "" {
			m.Description = strings.TrimSpace(doc.Content)
		}

		if existing, ok := seen[m.ID]; ok {
			return nil, fmt.Errorf("collision detected: module '%s' is defined in both '%s' and '%s'", m.ID, existing, doc.ID)
		}
		seen[m.ID] = doc.ID
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Load implements ports.ManifestSource.
func (s *Source) Load(ctx context.Context) ([]domain.ModuleManifest, error) {
	docs, err := s.Documents(ctx)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateModules(docs); err != nil {
		return nil, fmt.Errorf("invalid manifests: %w", err)
	}

	manifests := make([]domain.ModuleManifest, 0, len(docs))
	for _, doc := range docs {
		manifests = append(manifests, doc.ToManifest())
	}
	return manifests, nil
}

// Watch signals the id of every changed manifest document until ctx is done.
func (s *Source) Watch(ctx context.Context) (<-chan string, error) {
	events, err := s.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

package dsl

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Builder collects module declarations.
type Builder struct {
	modules []*ModuleBuilder
	byID    map[string]*ModuleBuilder
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{byID: make(map[string]*ModuleBuilder)}
}

// Module declares a module. Declaring the same id again returns the existing builder.
func (b *Builder) Module(id string) *ModuleBuilder {
	if mb, ok := b.byID[id]; ok {
		return mb
	}
	mb := &ModuleBuilder{id: id}
	b.modules = append(b.modules, mb)
	b.byID[id] = mb
	return mb
}

// Build resolves every declaration into a manifest source.
func (b *Builder) Build() (*Source, error) {
	manifests := make([]domain.ModuleManifest, 0, len(b.modules))
	for _, mb := range b.modules {
		if mb.id == "" {
			return nil, fmt.Errorf("module id cannot be empty")
		}
		for _, dep := range mb.deps {
			if _, ok := b.byID[dep]; !ok {
				return nil, fmt.Errorf("module '%s' depends on undeclared module '%s'", mb.id, dep)
			}
		}
		m, err := mb.build()
		if err != nil {
			return nil, fmt.Errorf("module '%s': %w", mb.id, err)
		}
		manifests = append(manifests, m)
	}
	return &Source{manifests: manifests}, nil
}

var _ ports.ManifestSource = (*Source)(nil)

// Source serves built manifests.
type Source struct {
	manifests []domain.ModuleManifest
}

// Load implements ports.ManifestSource.
func (s *Source) Load(ctx context.Context) ([]domain.ModuleManifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.ModuleManifest, len(s.manifests))
	copy(out, s.manifests)
	return out, nil
}

// ModuleBuilder provides a fluent API for configuring a module.
type ModuleBuilder struct {
	id            string
	deps          []string
	lazy          bool
	points        []*PointBuilder
	contributions []*ContributionBuilder
}

// DependsOn adds module dependencies, activated before this module.
func (m *ModuleBuilder) DependsOn(ids ...string) *ModuleBuilder {
	m.deps = append(m.deps, ids...)
	return m
}

// Lazy defers activation until another module needs one of this module's types.
func (m *ModuleBuilder) Lazy() *ModuleBuilder {
	m.lazy = true
	return m
}

// ExtensionPoint declares an extension point owned by the module.
func (m *ModuleBuilder) ExtensionPoint(path string) *PointBuilder {
	p := &PointBuilder{path: path, moduleID: m.id}
	m.points = append(m.points, p)
	return p
}

// Contribute starts a contribution of the module to the extension point at path.
func (m *ModuleBuilder) Contribute(path string) *ContributionBuilder {
	c := &ContributionBuilder{path: path}
	m.contributions = append(m.contributions, c)
	return c
}

func (m *ModuleBuilder) build() (domain.ModuleManifest, error) {
	out := domain.ModuleManifest{
		ID:           m.id,
		Dependencies: m.deps,
		Lazy:         m.lazy,
	}
	for _, p := range m.points {
		ep, err := p.build()
		if err != nil {
			return domain.ModuleManifest{}, err
		}
		out.ExtensionPoints = append(out.ExtensionPoints, ep)
	}
	for _, c := range m.contributions {
		out.Contributions = append(out.Contributions, c.build(m.id))
	}
	return out, nil
}

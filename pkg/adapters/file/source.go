package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/arbor/internal/dto"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"gopkg.in/yaml.v3"
)

var _ ports.ManifestSource = (*Source)(nil)

// Source implements ports.ManifestSource over a directory of YAML files.
// Every *.yaml / *.yml file below BasePath may hold one or more module
// documents separated by "---".
type Source struct {
	BasePath string
	strict   bool
}

// Option configures the Source.
type Option func(*Source)

// WithStrict rejects unknown keys in manifest files.
func WithStrict(strict bool) Option {
	return func(s *Source) {
		s.strict = strict
	}
}

// NewSource creates a Source reading manifests below basePath.
func NewSource(basePath string, opts ...Option) *Source {
	s := &Source{BasePath: basePath}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load implements ports.ManifestSource. Files are read in lexical path order
// and the resulting set is validated as a whole before conversion.
func (s *Source) Load(ctx context.Context) ([]domain.ModuleManifest, error) {
	docs, err := s.Documents(ctx)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateModules(docs); err != nil {
		return nil, fmt.Errorf("invalid manifests in %s: %w", s.BasePath, err)
	}

	manifests := make([]domain.ModuleManifest, 0, len(docs))
	for _, doc := range docs {
		manifests = append(manifests, doc.ToManifest())
	}
	return manifests, nil
}

// Documents reads every module document without validating it.
func (s *Source) Documents(ctx context.Context) ([]dto.ModuleDocument, error) {
	paths, err := s.files()
	if err != nil {
		return nil, err
	}

	var docs []dto.ModuleDocument
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		parsed, err := Parse(bytes.NewReader(data), s.strict)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		docs = append(docs, parsed...)
	}
	return docs, nil
}

func (s *Source) files() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.BasePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.BasePath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isManifest(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests in %s: %w", s.BasePath, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Parse decodes every YAML document of r. Empty documents are skipped.
func Parse(r io.Reader, strict bool) ([]dto.ModuleDocument, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(strict)

	var docs []dto.ModuleDocument
	for {
		var doc dto.ModuleDocument
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		if doc.ID == "" && len(doc.ExtensionPoints) == 0 && len(doc.Contributions) == 0 {
			continue
		}
		docs = append(docs, doc)
	}
}

// Save writes the manifest of a module to <BasePath>/<module>.yaml atomically.
// It writes to a temporary file first and then renames it to the destination.
func (s *Source) Save(ctx context.Context, m domain.ModuleManifest) error {
	doc := dto.FromManifest(m)
	if err := validator.ValidateDocument(&doc); err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure manifest directory: %w", err)
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.BasePath, ".tmp-"+m.ID+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.BasePath, m.ID+".yaml")); err != nil {
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}
	return nil
}

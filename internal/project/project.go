// Package project loads query files and schema metadata from a project
// directory.
package project

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/modelgraph/internal/extract"
	"github.com/leapstack-labs/modelgraph/internal/unused"
)

// Default directories relative to the project root.
const (
	DefaultModelsDir = "models"
	DefaultTestsDir  = "tests"
	DefaultMacrosDir = "macros"
)

// Options configures Load.
type Options struct {
	// ModelsDir is relative to the project directory unless absolute.
	ModelsDir string
	// TestsDir and MacrosDir are optional; a missing directory is skipped.
	TestsDir  string
	MacrosDir string
	Logger    *slog.Logger
}

// Project is the loaded content of a project directory. Every file map is
// keyed by a slash-separated path relative to Dir.
type Project struct {
	Dir       string
	ModelsDir string
	Files     map[string]string
	// DataTests are the singular test queries of the tests directory.
	DataTests map[string]string
	// Macros are the macro files of the macros directory.
	Macros   map[string]string
	Metadata []string
	Declared unused.Declared
	// Schemas documents models, sorted by name.
	Schemas []ModelSchema
	// metadataText keeps schema file content for content hashing.
	metadataText map[string]string
}

// Load walks the models directory for query files and schema metadata.
// Hidden directories are skipped.
func Load(ctx context.Context, dir string, opts Options) (*Project, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}
	modelsDir := opts.ModelsDir
	if modelsDir == "" {
		modelsDir = DefaultModelsDir
	}
	if !filepath.IsAbs(modelsDir) {
		modelsDir = filepath.Join(absDir, modelsDir)
	}
	if _, err := os.Stat(modelsDir); err != nil {
		return nil, fmt.Errorf("failed to open models directory: %w", err)
	}

	p := &Project{
		Dir:          absDir,
		ModelsDir:    modelsDir,
		Files:        make(map[string]string),
		DataTests:    make(map[string]string),
		Macros:       make(map[string]string),
		metadataText: make(map[string]string),
	}
	var schemas []string

	logger.Debug("loading project", "models_dir", modelsDir)
	err = filepath.WalkDir(modelsDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != modelsDir && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case IsModelFile(path):
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			p.Files[p.rel(path)] = string(data)
		case IsMetadataFile(path):
			schemas = append(schemas, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	meta := newSchemaSet()
	sort.Strings(schemas)
	for _, path := range schemas {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel := p.rel(path)
		if err := meta.merge(rel, data); err != nil {
			return nil, fmt.Errorf("failed to parse metadata %s: %w", rel, err)
		}
		p.Metadata = append(p.Metadata, rel)
		p.metadataText[rel] = string(data)
	}

	if err := p.loadOptional(ctx, opts.TestsDir, DefaultTestsDir, p.DataTests); err != nil {
		return nil, err
	}
	if err := p.loadOptional(ctx, opts.MacrosDir, DefaultMacrosDir, p.Macros); err != nil {
		return nil, err
	}
	for _, text := range p.Macros {
		meta.Declared.Macros = append(meta.Declared.Macros, extract.ScanMacros(text).Defined...)
	}
	meta.normalize()
	p.Declared = meta.Declared
	p.Schemas = meta.Models

	logger.Info("project loaded",
		"files", len(p.Files),
		"metadata", len(p.Metadata),
		"data_tests", len(p.DataTests),
		"macro_files", len(p.Macros),
		"declared_models", len(p.Declared.Models),
		"declared_sources", len(p.Declared.Sources))
	return p, nil
}

// loadOptional reads every query file under dir into dst. dir defaults to
// def and resolves against the project directory; a missing directory is
// not an error.
func (p *Project) loadOptional(ctx context.Context, dir, def string, dst map[string]string) error {
	if dir == "" {
		dir = def
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(p.Dir, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsModelFile(path) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		dst[p.rel(path)] = string(data)
		return nil
	})
}

// Schema returns the documentation of model id, or false when no schema
// file describes it.
func (p *Project) Schema(id string) (ModelSchema, bool) {
	return findSchema(p.Schemas, id)
}

// Inputs returns every loaded file, models and supporting files alike,
// keyed by relative path. It identifies the project content for caching.
func (p *Project) Inputs() map[string]string {
	out := make(map[string]string, len(p.Files)+len(p.DataTests)+len(p.Macros)+len(p.metadataText))
	for _, m := range []map[string]string{p.Files, p.DataTests, p.Macros, p.metadataText} {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// CalledMacros returns the distinct macro names called from model, data
// test and macro files.
func (p *Project) CalledMacros() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range []map[string]string{p.Files, p.DataTests, p.Macros} {
		for _, text := range m {
			for _, name := range extract.ScanMacros(text).Called {
				if !seen[name] {
					seen[name] = true
					out = append(out, name)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

// Paths returns the keys of Files in ascending order.
func (p *Project) Paths() []string {
	out := make([]string, 0, len(p.Files))
	for path := range p.Files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (p *Project) rel(path string) string {
	r, err := filepath.Rel(p.Dir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(r)
}

// IsModelFile reports whether path names a query file.
func IsModelFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".sql")
}

// IsMetadataFile reports whether path names a schema metadata file.
func IsMetadataFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.'
}

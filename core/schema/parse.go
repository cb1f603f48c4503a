package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/artpar/warpmodel/core/query"
)

// ParseFile parses a model definition from a YAML file.
func ParseFile(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("read file %s: %w", path, err)
	}

	mod, err := Parse(data)
	if err != nil {
		return Model{}, fmt.Errorf("%s: %w", path, err)
	}
	return mod, nil
}

// Parse parses a model definition from YAML bytes.
func Parse(data []byte) (Model, error) {
	var mod Model
	if err := yaml.Unmarshal(data, &mod); err != nil {
		return Model{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(mod); err != nil {
		return Model{}, fmt.Errorf("validate model %q: %w", mod.ClassName, err)
	}

	return mod, nil
}

// DefaultPattern matches model files at any depth below the models directory.
const DefaultPattern = "**/*.{yaml,yml}"

// ParseDir parses all model definitions from a directory, including subdirectories.
// Files are visited in lexical order of their relative paths.
func ParseDir(dir string) ([]Model, error) {
	return ParseGlob(dir, DefaultPattern)
}

// ParseGlob parses every file below dir whose slash-separated relative path
// matches pattern. Patterns support ** and {a,b} alternatives. Files are
// parsed concurrently; the result keeps lexical path order.
func ParseGlob(dir, pattern string) ([]Model, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid model pattern %q", pattern)
	}

	// Glob reports nothing for a missing root, so check it first.
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("read dir %s: not a directory", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(matches)

	models := make([]Model, len(matches))
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i, match := range matches {
		g.Go(func() error {
			mod, err := ParseFile(filepath.Join(dir, filepath.FromSlash(match)))
			if err != nil {
				return err
			}
			models[i] = mod
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return models, nil
}

// Validate checks the syntax of a model definition: identifiers and field
// specs. Structural rules (missing keys, misplaced pointers) are enforced
// when the model is compiled so they carry an error code.
func Validate(mod Model) error {
	var errs []string

	if mod.ClassName != "" && !query.ValidIdentifier(mod.ClassName) {
		errs = append(errs, fmt.Sprintf("class name %q is not a valid identifier", mod.ClassName))
	}

	if mod.Source != "" && !query.ValidIdentifier(mod.Source) {
		errs = append(errs, fmt.Sprintf("source %q is not a valid identifier", mod.Source))
	}

	if mod.Keys != nil {
		for _, list := range [][]string{mod.Keys.Viewable, mod.Keys.Actionable, mod.Keys.Files} {
			for _, key := range list {
				if !query.ValidIdentifier(key) {
					errs = append(errs, fmt.Sprintf("key %q is not a valid identifier", key))
				}
			}
		}
		for _, ptr := range mod.Keys.Pointers {
			if !query.ValidIdentifier(ptr.Name) {
				errs = append(errs, fmt.Sprintf("pointer %q is not a valid identifier", ptr.Name))
			}
		}
	}

	names := make([]string, 0, len(mod.Fields))
	for name := range mod.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := mod.Fields[name].Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("field %q: %v", name, err))
		}
	}

	if h := mod.Hooks.BeforeSave; h != nil && !query.ValidIdentifier(h.Type) {
		errs = append(errs, fmt.Sprintf("beforeSave hook type %q is not a valid identifier", h.Type))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

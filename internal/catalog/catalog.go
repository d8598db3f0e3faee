// Package catalog loads schema catalogs written in the schema DSL and installs them into a registry.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/asakaida/schemareg/internal/entities"
	"github.com/asakaida/schemareg/internal/logging"
	"github.com/asakaida/schemareg/internal/services/parser"
	"github.com/asakaida/schemareg/internal/services/registry"
)

// NewtonCatalogName is the name of the built-in Newton physics catalog
const NewtonCatalogName = "newton"

//go:embed newton.schema
var newtonDSL string

// NewtonDSL returns the source of the built-in Newton catalog
func NewtonDSL() string {
	return newtonDSL
}

// Newton parses the built-in Newton catalog
func Newton() (*entities.Catalog, error) {
	return Load(NewtonCatalogName, newtonDSL)
}

// Load parses, validates and converts a DSL document into a catalog.
// Options such as parser.WithKnownSchemas let the document require schemas
// that are defined by catalogs loaded earlier.
func Load(name, dsl string, opts ...parser.ValidatorOption) (*entities.Catalog, error) {
	ast, err := parser.Parse(dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", name, err)
	}

	if err := parser.NewValidator(ast, opts...).Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", name, err)
	}

	catalog, err := parser.ASTToCatalog(name, ast)
	if err != nil {
		return nil, fmt.Errorf("failed to convert catalog %s: %w", name, err)
	}
	catalog.DSL = dsl
	return catalog, nil
}

// LoadFile reads a catalog document from disk. The catalog is named after the file.
func LoadFile(path string, opts ...parser.ValidatorOption) (*entities.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(name, string(data), opts...)
}

// LoadFiles loads catalog files in order. Each file may require schemas from
// the built-in catalog and from the files before it.
func LoadFiles(paths ...string) ([]*entities.Catalog, error) {
	newton, err := Newton()
	if err != nil {
		return nil, err
	}

	known := SchemaNames(newton)
	catalogs := make([]*entities.Catalog, 0, len(paths))
	for _, path := range paths {
		c, err := LoadFile(path, parser.WithKnownSchemas(known...))
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, c)
		known = append(known, SchemaNames(c)...)
	}
	return catalogs, nil
}

// SchemaNames returns the schema names declared by the catalogs, in order
func SchemaNames(catalogs ...*entities.Catalog) []string {
	var names []string
	for _, c := range catalogs {
		for _, def := range c.Schemas {
			names = append(names, def.Name)
		}
	}
	return names
}

// Install registers the schemas of every catalog in one batch.
// Either all schemas are registered or none is.
func Install(reg *registry.Registry, catalogs ...*entities.Catalog) error {
	var defs []*entities.SchemaDefinition
	for _, c := range catalogs {
		defs = append(defs, c.Schemas...)
	}
	if err := reg.RegisterAll(defs...); err != nil {
		return fmt.Errorf("failed to install catalogs: %w", err)
	}

	for _, c := range catalogs {
		logging.Debug().
			Str("catalog", c.Name).
			Str("version", c.Version).
			Int("schemas", len(c.Schemas)).
			Msg("catalog installed")
	}
	return nil
}

// NewRegistry returns a frozen registry holding the built-in catalog followed by extra catalogs
func NewRegistry(extra ...*entities.Catalog) (*registry.Registry, error) {
	newton, err := Newton()
	if err != nil {
		return nil, err
	}

	reg, err := registry.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}
	if err := Install(reg, append([]*entities.Catalog{newton}, extra...)...); err != nil {
		return nil, err
	}
	reg.Freeze()
	return reg, nil
}

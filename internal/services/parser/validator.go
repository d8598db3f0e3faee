package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Validator validates the parsed catalog AST
type Validator struct {
	catalog *CatalogAST
	errors  *multierror.Error
	schemas map[string]*SchemaAST
	known   map[string]bool // schemas defined outside this catalog
}

// ValidatorOption configures a Validator
type ValidatorOption func(*Validator)

// WithKnownSchemas lets requires clauses reference schemas that are already registered
func WithKnownSchemas(names ...string) ValidatorOption {
	return func(v *Validator) {
		for _, n := range names {
			v.known[n] = true
		}
	}
}

// NewValidator creates a new Validator
func NewValidator(catalog *CatalogAST, opts ...ValidatorOption) *Validator {
	schemas := make(map[string]*SchemaAST)
	for _, schema := range catalog.Schemas {
		if _, exists := schemas[schema.Name]; !exists {
			schemas[schema.Name] = schema
		}
	}
	v := &Validator{
		catalog: catalog,
		schemas: schemas,
		known:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate validates the catalog and returns error if invalid
func (v *Validator) Validate() error {
	v.validateUniqueSchemaNames()
	v.validateSchemaDefinitions()
	v.validateRequires()
	v.validateCircularRequires()

	if v.errors == nil {
		return nil
	}
	v.errors.ErrorFormat = func(errs []error) string {
		lines := make([]string, len(errs))
		for i, err := range errs {
			lines[i] = err.Error()
		}
		return fmt.Sprintf("validation errors:\n%s", strings.Join(lines, "\n"))
	}
	return v.errors
}

func (v *Validator) addError(format string, args ...interface{}) {
	v.errors = multierror.Append(v.errors, fmt.Errorf(format, args...))
}

// validateUniqueSchemaNames checks for duplicate schema names, aliases and instance prefixes
func (v *Validator) validateUniqueSchemaNames() {
	names := make(map[string]bool)
	prefixes := make(map[string]string)
	for _, schema := range v.catalog.Schemas {
		if names[schema.Name] {
			v.addError("duplicate schema name: %s", schema.Name)
		}
		names[schema.Name] = true
	}
	for _, schema := range v.catalog.Schemas {
		if schema.Alias == "" {
			continue
		}
		if names[schema.Alias] {
			v.addError("schema %s: alias %s collides with a schema name or alias", schema.Name, schema.Alias)
		}
		names[schema.Alias] = true
	}
	for _, schema := range v.catalog.Schemas {
		if schema.Kind != "multi" || schema.InstancePrefix == "" {
			continue
		}
		if other, exists := prefixes[schema.InstancePrefix]; exists {
			v.addError("schema %s: instance prefix %s already used by %s", schema.Name, schema.InstancePrefix, other)
		}
		prefixes[schema.InstancePrefix] = schema.Name
	}
}

// validateSchemaDefinitions validates each schema's internal structure
func (v *Validator) validateSchemaDefinitions() {
	for _, schema := range v.catalog.Schemas {
		if strings.Contains(schema.Name, ":") {
			v.addError("schema %s: name must not contain ':'", schema.Name)
		}
		switch schema.Kind {
		case "single":
		case "multi":
			if schema.InstancePrefix == "" {
				v.addError("schema %s: multi-apply schema requires an instance prefix", schema.Name)
			}
		default:
			v.addError("schema %s: invalid apply kind: %s", schema.Name, schema.Kind)
		}
		if schema.AppliesTo == nil {
			v.addError("schema %s: missing applies_to", schema.Name)
		}
		v.validatePropertyUniqueness(schema)
		for _, attribute := range schema.Attributes {
			v.validateAttribute(schema, attribute)
		}
	}
}

// validatePropertyUniqueness checks for duplicate property names within a schema
func (v *Validator) validatePropertyUniqueness(schema *SchemaAST) {
	seen := make(map[string]bool)
	for _, attribute := range schema.Attributes {
		if seen[attribute.Name] {
			v.addError("schema %s: duplicate property name: %s", schema.Name, attribute.Name)
		}
		seen[attribute.Name] = true
	}
	for _, relationship := range schema.Relationships {
		if seen[relationship.Name] {
			v.addError("schema %s: duplicate property name: %s", schema.Name, relationship.Name)
		}
		seen[relationship.Name] = true
	}
}

// validateAttribute validates type, default, allowed tokens and range of one attribute
func (v *Validator) validateAttribute(schema *SchemaAST, attribute *AttributeAST) {
	where := fmt.Sprintf("schema %s: attribute %s", schema.Name, attribute.Name)

	switch attribute.Type {
	case "bool", "int", "double", "token":
	default:
		v.addError("%s: invalid attribute type: %s", where, attribute.Type)
		return
	}

	if len(attribute.Allowed) > 0 && attribute.Type != "token" {
		v.addError("%s: allowed tokens are only valid on token attributes", where)
	}
	if (attribute.Min != nil || attribute.Max != nil) && attribute.Type != "int" && attribute.Type != "double" {
		v.addError("%s: range is only valid on numeric attributes", where)
	}
	if attribute.Min != nil && attribute.Max != nil && *attribute.Min > *attribute.Max {
		v.addError("%s: range minimum %g exceeds maximum %g", where, *attribute.Min, *attribute.Max)
	}

	if attribute.Default == nil {
		return
	}
	lit := attribute.Default
	switch attribute.Type {
	case "bool":
		if lit.Kind != LiteralBool {
			v.addError("%s: default %q is not a bool", where, lit.Value)
		}
	case "token":
		if lit.Kind != LiteralString {
			v.addError("%s: default %s is not a string", where, lit.Value)
			return
		}
		if len(attribute.Allowed) > 0 && !contains(attribute.Allowed, lit.Value) {
			v.addError("%s: default %q is not an allowed token", where, lit.Value)
		}
	case "int":
		if lit.Kind != LiteralNumber {
			v.addError("%s: default %q is not a number", where, lit.Value)
			return
		}
		n, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			v.addError("%s: default %s is not an integer", where, lit.Value)
			return
		}
		v.validateInRange(where, float64(n), attribute)
	case "double":
		if lit.Kind != LiteralNumber {
			v.addError("%s: default %q is not a number", where, lit.Value)
			return
		}
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			v.addError("%s: default %s is not a number", where, lit.Value)
			return
		}
		v.validateInRange(where, f, attribute)
	}
}

func (v *Validator) validateInRange(where string, value float64, attribute *AttributeAST) {
	if attribute.Min != nil && value < *attribute.Min {
		v.addError("%s: default %g is below minimum %g", where, value, *attribute.Min)
	}
	if attribute.Max != nil && value > *attribute.Max {
		v.addError("%s: default %g is above maximum %g", where, value, *attribute.Max)
	}
}

// validateRequires checks that prerequisites reference defined schemas
func (v *Validator) validateRequires() {
	for _, schema := range v.catalog.Schemas {
		seen := make(map[string]bool)
		for _, req := range schema.Requires {
			if seen[req] {
				v.addError("schema %s: duplicate prerequisite: %s", schema.Name, req)
			}
			seen[req] = true

			target, inCatalog := v.schemas[req]
			if !inCatalog && !v.known[req] {
				v.addError("schema %s: requires undefined schema: %s", schema.Name, req)
				continue
			}
			if inCatalog && target.Kind == "multi" {
				v.addError("schema %s: prerequisite %s is multi-apply", schema.Name, req)
			}
		}
	}
}

// validateCircularRequires checks for prerequisite cycles within the catalog
func (v *Validator) validateCircularRequires() {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)

	var visit func(name string, path []string)
	visit = func(name string, path []string) {
		schema, ok := v.schemas[name]
		if !ok {
			return
		}
		switch state[name] {
		case done:
			return
		case visiting:
			cycle := append(append([]string(nil), path...), name)
			for i, n := range cycle {
				if n == name {
					cycle = cycle[i:]
					break
				}
			}
			v.addError("circular prerequisite: %s", strings.Join(cycle, " -> "))
			return
		}
		state[name] = visiting
		path = append(path, name)
		for _, req := range schema.Requires {
			visit(req, path)
		}
		state[name] = done
	}

	for _, schema := range v.catalog.Schemas {
		visit(schema.Name, nil)
	}
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

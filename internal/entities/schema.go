package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ApplyKind tells whether a prim may carry one or several instances of a schema
type ApplyKind int

const (
	ApplySingle ApplyKind = iota
	ApplyMulti
)

// String returns the DSL spelling of the kind
func (k ApplyKind) String() string {
	if k == ApplyMulti {
		return "multi"
	}
	return "single"
}

// SchemaDefinition is a named bundle of attribute and relationship slots
// Example: "schema NewtonSceneAPI single { applies_to Scene ... }"
type SchemaDefinition struct {
	Name           string                    // Unique schema name (e.g., "NewtonSceneAPI")
	Alias          string                    // Plugin type name (e.g., "NewtonPhysicsSceneAPI"), optional
	Kind           ApplyKind                 // Single or multi apply
	InstancePrefix string                    // Property prefix of multi-apply instances (e.g., "newton:collisionGroup")
	Version        int                       // Schema version, fallbacks are fixed per version
	Doc            string                    // Free text documentation
	Applicability  ApplicabilityRule         // Which prim types accept the schema
	Prerequisites  []string                  // Schemas applied before this one
	Attributes     []*AttributeDescriptor    // Attribute slots
	Relationships  []*RelationshipDescriptor // Relationship slots
}

// GetAttribute returns the attribute descriptor by its base key
func (s *SchemaDefinition) GetAttribute(key string) *AttributeDescriptor {
	for _, a := range s.Attributes {
		if a.Key() == key {
			return a
		}
	}
	return nil
}

// GetRelationship returns the relationship descriptor by its base key
func (s *SchemaDefinition) GetRelationship(key string) *RelationshipDescriptor {
	for _, r := range s.Relationships {
		if r.Key() == key {
			return r
		}
	}
	return nil
}

// Keys returns the base keys of all descriptors, attributes first
func (s *SchemaDefinition) Keys() []string {
	keys := make([]string, 0, len(s.Attributes)+len(s.Relationships))
	for _, a := range s.Attributes {
		keys = append(keys, a.Key())
	}
	for _, r := range s.Relationships {
		keys = append(keys, r.Key())
	}
	return keys
}

// PropertyKey composes the key a descriptor occupies on a prim.
// Multi-apply instances live under "prefix:instance:baseKey".
func (s *SchemaDefinition) PropertyKey(baseKey, instance string) string {
	if s.Kind != ApplyMulti {
		return baseKey
	}
	return ComposeKey(ComposeKey(s.InstancePrefix, instance), baseKey)
}

// BaseKey maps a prim property key back to the descriptor key for one instance.
// It returns false when the key does not belong to that instance.
func (s *SchemaDefinition) BaseKey(propertyKey, instance string) (string, bool) {
	if s.Kind != ApplyMulti {
		return propertyKey, true
	}
	prefix := ComposeKey(s.InstancePrefix, instance) + KeySeparator
	if !strings.HasPrefix(propertyKey, prefix) {
		return "", false
	}
	return strings.TrimPrefix(propertyKey, prefix), true
}

// Validate checks everything that does not need the rest of the catalog.
// All problems are reported together as an *InvalidDefinitionError.
func (s *SchemaDefinition) Validate() error {
	var result *multierror.Error

	if s.Name == "" {
		result = multierror.Append(result, fmt.Errorf("schema name is required"))
	} else if strings.Contains(s.Name, KeySeparator) {
		result = multierror.Append(result, fmt.Errorf("schema name must not contain %q", KeySeparator))
	}
	if s.Applicability == nil {
		result = multierror.Append(result, fmt.Errorf("applicability rule is required"))
	}
	if rule, ok := s.Applicability.(*TypeSetRule); ok && len(rule.Types) == 0 {
		result = multierror.Append(result, fmt.Errorf("applicability type set is empty"))
	}

	switch s.Kind {
	case ApplySingle:
		if s.InstancePrefix != "" {
			result = multierror.Append(result, fmt.Errorf("single-apply schema must not declare an instance prefix"))
		}
	case ApplyMulti:
		if s.InstancePrefix == "" {
			result = multierror.Append(result, fmt.Errorf("multi-apply schema requires an instance prefix"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown apply kind %d", int(s.Kind)))
	}

	seenPrereq := make(map[string]bool)
	for _, p := range s.Prerequisites {
		if seenPrereq[p] {
			result = multierror.Append(result, fmt.Errorf("duplicate prerequisite: %s", p))
		}
		seenPrereq[p] = true
	}

	seenKeys := make(map[string]bool)
	for _, a := range s.Attributes {
		if err := a.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
		if seenKeys[a.Key()] {
			result = multierror.Append(result, fmt.Errorf("duplicate property key: %s", a.Key()))
		}
		seenKeys[a.Key()] = true
	}
	for _, r := range s.Relationships {
		if err := r.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
		if seenKeys[r.Key()] {
			result = multierror.Append(result, fmt.Errorf("duplicate property key: %s", r.Key()))
		}
		seenKeys[r.Key()] = true
	}

	if err := result.ErrorOrNil(); err != nil {
		return &InvalidDefinitionError{Schema: s.Name, Err: err}
	}
	return nil
}

// Catalog is a versioned document of schema definitions
type Catalog struct {
	Name      string              // Catalog name (e.g., "newton")
	Version   string              // Catalog version assigned by the repository
	DSL       string              // Original DSL text
	Schemas   []*SchemaDefinition // Parsed definitions, in declaration order
	CreatedAt time.Time
}

// CatalogVersion represents a lightweight catalog version for listing
type CatalogVersion struct {
	Version   string
	CreatedAt time.Time
}

// GetSchema returns the schema definition by name
func (c *Catalog) GetSchema(name string) *SchemaDefinition {
	for _, s := range c.Schemas {
		if s.Name == name {
			return s
		}
	}
	return nil
}

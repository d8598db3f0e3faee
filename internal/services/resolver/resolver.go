// Package resolver reads and writes attribute values on prims.
// It works from the definitions captured when a schema was applied and never
// consults the registry.
package resolver

import (
	"fmt"

	"github.com/asakaida/schemareg/internal/entities"
	"github.com/asakaida/schemareg/internal/stage"
)

// Resolver resolves authored values and fallbacks
type Resolver struct{}

// New creates a Resolver
func New() *Resolver {
	return &Resolver{}
}

// Get returns the authored value of key, or the descriptor fallback when nothing is authored
func (r *Resolver) Get(prim *stage.Prim, schemaID, key string) (interface{}, error) {
	v, err := r.Resolve(prim, schemaID, key)
	if err != nil {
		return nil, err
	}
	return v.Value, nil
}

// Resolve is Get with the resolved key, type and authored flag
func (r *Resolver) Resolve(prim *stage.Prim, schemaID, key string) (*entities.AttributeValue, error) {
	applied, desc, err := r.attribute(prim, schemaID, key)
	if err != nil {
		return nil, err
	}
	return resolveValue(prim.Path(), applied, desc, prim), nil
}

// Set coerces value to the descriptor type, checks its domain and authors it
func (r *Resolver) Set(prim *stage.Prim, schemaID, key string, value interface{}) error {
	applied, desc, err := r.attribute(prim, schemaID, key)
	if err != nil {
		return err
	}

	coerced, err := Coerce(desc, value)
	if err != nil {
		return err
	}
	if err := desc.CheckDomain(coerced); err != nil {
		return err
	}

	propertyKey := applied.Definition.PropertyKey(desc.Key(), applied.Instance)
	return prim.Edit(func(tx *stage.Edit) error {
		// the instance may have been removed since the lookup
		if !tx.HasSchema(applied.ID()) {
			return &entities.SchemaNotAppliedError{Schema: schemaID, Prim: prim.Path()}
		}
		tx.SetValue(propertyKey, coerced)
		return nil
	})
}

// HasAuthoredValue reports whether key was explicitly written on the prim
func (r *Resolver) HasAuthoredValue(prim *stage.Prim, key string) bool {
	return prim.HasAuthoredValue(key)
}

// HasAttribute reports whether any applied schema contributes the attribute key
func (r *Resolver) HasAttribute(prim *stage.Prim, key string) bool {
	for _, applied := range prim.AppliedSchemas() {
		if base, ok := applied.Definition.BaseKey(key, applied.Instance); ok && applied.Definition.GetAttribute(base) != nil {
			return true
		}
	}
	return false
}

// HasRelationship reports whether any applied schema contributes the relationship key
func (r *Resolver) HasRelationship(prim *stage.Prim, key string) bool {
	for _, applied := range prim.AppliedSchemas() {
		if base, ok := applied.Definition.BaseKey(key, applied.Instance); ok && applied.Definition.GetRelationship(base) != nil {
			return true
		}
	}
	return false
}

// GetTargets returns the authored targets of a relationship; unauthored means empty
func (r *Resolver) GetTargets(prim *stage.Prim, schemaID, key string) ([]string, error) {
	applied, desc, err := r.relationship(prim, schemaID, key)
	if err != nil {
		return nil, err
	}
	targets, _ := prim.Targets(applied.Definition.PropertyKey(desc.Key(), applied.Instance))
	if targets == nil {
		targets = []string{}
	}
	return targets, nil
}

// SetTargets authors the targets of a relationship. Duplicates are dropped, keeping first occurrence.
func (r *Resolver) SetTargets(prim *stage.Prim, schemaID, key string, targets []string) error {
	applied, desc, err := r.relationship(prim, schemaID, key)
	if err != nil {
		return err
	}

	unique := make([]string, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if t == "" {
			return &entities.DomainError{Key: desc.Key(), Value: t, Reason: "is not a prim path"}
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		unique = append(unique, t)
	}

	propertyKey := applied.Definition.PropertyKey(desc.Key(), applied.Instance)
	return prim.Edit(func(tx *stage.Edit) error {
		if !tx.HasSchema(applied.ID()) {
			return &entities.SchemaNotAppliedError{Schema: schemaID, Prim: prim.Path()}
		}
		tx.SetTargets(propertyKey, unique)
		return nil
	})
}

// Properties resolves every attribute of every applied schema from one snapshot of the prim
func (r *Resolver) Properties(prim *stage.Prim) []*entities.AttributeValue {
	snap := prim.Snapshot()
	var values []*entities.AttributeValue
	for _, applied := range snap.Applied {
		for _, desc := range applied.Definition.Attributes {
			values = append(values, resolveValue(prim.Path(), applied, desc, snap))
		}
	}
	return values
}

// authoredValues is satisfied by *stage.Prim and stage.Snapshot
type authoredValues interface {
	AuthoredValue(key string) (interface{}, bool)
}

func resolveValue(path string, applied entities.AppliedSchema, desc *entities.AttributeDescriptor, src authoredValues) *entities.AttributeValue {
	key := applied.Definition.PropertyKey(desc.Key(), applied.Instance)
	value, authored := src.AuthoredValue(key)
	if !authored {
		value = desc.FallbackValue()
	}
	return &entities.AttributeValue{
		PrimPath: path,
		Schema:   applied.ID(),
		Key:      key,
		Type:     desc.Type,
		Value:    value,
		Authored: authored,
	}
}

// attribute finds the applied instance and attribute descriptor addressed by schemaID and key.
// key may be the descriptor key or, for multi-apply instances, the full prim property key.
func (r *Resolver) attribute(prim *stage.Prim, schemaID, key string) (entities.AppliedSchema, *entities.AttributeDescriptor, error) {
	applied, err := r.applied(prim, schemaID)
	if err != nil {
		return applied, nil, err
	}
	if desc := applied.Definition.GetAttribute(key); desc != nil {
		return applied, desc, nil
	}
	if base, ok := applied.Definition.BaseKey(key, applied.Instance); ok {
		if desc := applied.Definition.GetAttribute(base); desc != nil {
			return applied, desc, nil
		}
	}
	return applied, nil, &entities.NotFoundError{Kind: "attribute", Name: fmt.Sprintf("%s.%s", schemaID, key)}
}

func (r *Resolver) relationship(prim *stage.Prim, schemaID, key string) (entities.AppliedSchema, *entities.RelationshipDescriptor, error) {
	applied, err := r.applied(prim, schemaID)
	if err != nil {
		return applied, nil, err
	}
	if desc := applied.Definition.GetRelationship(key); desc != nil {
		return applied, desc, nil
	}
	if base, ok := applied.Definition.BaseKey(key, applied.Instance); ok {
		if desc := applied.Definition.GetRelationship(base); desc != nil {
			return applied, desc, nil
		}
	}
	return applied, nil, &entities.NotFoundError{Kind: "relationship", Name: fmt.Sprintf("%s.%s", schemaID, key)}
}

func (r *Resolver) applied(prim *stage.Prim, schemaID string) (entities.AppliedSchema, error) {
	applied, ok := prim.FindApplied(schemaID)
	if !ok {
		return applied, &entities.SchemaNotAppliedError{Schema: schemaID, Prim: prim.Path()}
	}
	return applied, nil
}

package entities

import "strings"

// AppliedSchema records that a prim carries a schema
// Example: "NewtonSceneAPI" or "NewtonCollisionGroupAPI:wheels"
type AppliedSchema struct {
	Definition *SchemaDefinition // Definition captured at apply time
	Instance   string            // Instance name, multi-apply only
}

// ID returns the external identifier of the applied instance
func (a AppliedSchema) ID() string {
	return SchemaID(a.Definition.Name, a.Instance)
}

// PropertyKeys returns every key this instance contributes to the prim
func (a AppliedSchema) PropertyKeys() []string {
	base := a.Definition.Keys()
	keys := make([]string, 0, len(base))
	for _, k := range base {
		keys = append(keys, a.Definition.PropertyKey(k, a.Instance))
	}
	return keys
}

// SchemaID composes "name" or "name:instance"
func SchemaID(name, instance string) string {
	if instance == "" {
		return name
	}
	return name + KeySeparator + instance
}

// ParseSchemaID splits "name:instance" into its parts; instance is empty for single-apply ids
func ParseSchemaID(id string) (name, instance string) {
	name, instance, _ = strings.Cut(id, KeySeparator)
	return name, instance
}

package registry

import (
	"fmt"

	"github.com/asakaida/schemareg/internal/entities"
	"github.com/asakaida/schemareg/internal/logging"
)

// registerLocked validates def against the catalog and stores it (must be called with lock held)
func (r *Registry) registerLocked(def *entities.SchemaDefinition) error {
	if def == nil {
		return fmt.Errorf("schema definition is required")
	}
	if err := def.Validate(); err != nil {
		return err
	}

	if err := r.checkNamesLocked(def); err != nil {
		return err
	}

	for _, prereq := range def.Prerequisites {
		if prereq == def.Name {
			return &entities.CycleError{Path: []string{def.Name, def.Name}}
		}
		p, ok := r.entries[prereq]
		if !ok {
			return &entities.NotFoundError{Kind: "schema", Name: prereq}
		}
		if p.def.Kind == entities.ApplyMulti {
			return &entities.InvalidDefinitionError{
				Schema: def.Name,
				Err:    fmt.Errorf("prerequisite %s is multi-apply and cannot be applied implicitly", prereq),
			}
		}
	}

	closure := r.closureLocked(def)
	if err := r.checkKeyConflictsLocked(def, closure); err != nil {
		return err
	}

	e := &entry{def: def, closure: closure}
	if rule, ok := def.Applicability.(*entities.ExpressionRule); ok {
		predicate, err := r.engine.Compile(rule.Expression)
		if err != nil {
			return &entities.InvalidDefinitionError{Schema: def.Name, Err: err}
		}
		e.predicate = predicate
	}

	r.entries[def.Name] = e
	r.order = append(r.order, def.Name)
	if def.Alias != "" {
		r.aliases[def.Alias] = def.Name
	}
	if def.Kind == entities.ApplyMulti {
		r.prefixes[def.InstancePrefix] = def.Name
	}

	logging.Debug().
		Str("schema", def.Name).
		Str("kind", def.Kind.String()).
		Strs("prerequisites", closure).
		Int("properties", len(def.Keys())).
		Msg("registered schema")
	return nil
}

// unregisterLocked rolls back a registration made in the same batch
func (r *Registry) unregisterLocked(name string) {
	e, ok := r.entries[name]
	if !ok {
		return
	}
	delete(r.entries, name)
	if e.def.Alias != "" {
		delete(r.aliases, e.def.Alias)
	}
	if e.def.Kind == entities.ApplyMulti {
		delete(r.prefixes, e.def.InstancePrefix)
	}
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// checkNamesLocked rejects name, alias and instance prefix clashes
func (r *Registry) checkNamesLocked(def *entities.SchemaDefinition) error {
	if _, exists := r.entries[def.Name]; exists {
		return &entities.DuplicateSchemaError{Name: def.Name}
	}
	if _, exists := r.aliases[def.Name]; exists {
		return &entities.DuplicateSchemaError{Name: def.Name}
	}
	if def.Alias != "" {
		if _, exists := r.aliases[def.Alias]; exists {
			return &entities.DuplicateSchemaError{Name: def.Alias}
		}
		if _, exists := r.entries[def.Alias]; exists || def.Alias == def.Name {
			return &entities.DuplicateSchemaError{Name: def.Alias}
		}
	}
	if def.Kind == entities.ApplyMulti {
		if other, exists := r.prefixes[def.InstancePrefix]; exists {
			return &entities.InstancePrefixConflictError{Schema: def.Name, Prefix: def.InstancePrefix, Other: other}
		}
	}
	return nil
}

// closureLocked lists the transitive prerequisites of def, dependencies first, without duplicates
func (r *Registry) closureLocked(def *entities.SchemaDefinition) []string {
	var closure []string
	seen := make(map[string]bool)

	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, p := range r.entries[name].def.Prerequisites {
			visit(p)
		}
		closure = append(closure, name)
	}

	for _, p := range def.Prerequisites {
		visit(p)
	}
	return closure
}

// checkKeyConflictsLocked makes sure def and its prerequisite chain never put two
// descriptors on the same prim key
func (r *Registry) checkKeyConflictsLocked(def *entities.SchemaDefinition, closure []string) error {
	owners := make(map[string]string)
	for _, name := range closure {
		for _, key := range r.entries[name].def.Keys() {
			if other, exists := owners[key]; exists {
				return &entities.DescriptorConflictError{Schema: name, Key: key, Other: other}
			}
			owners[key] = name
		}
	}

	if def.Kind == entities.ApplyMulti {
		// instance keys live under the instance prefix
		return nil
	}
	for _, key := range def.Keys() {
		if other, exists := owners[key]; exists {
			return &entities.DescriptorConflictError{Schema: def.Name, Key: key, Other: other}
		}
	}
	return nil
}

// sortByPrerequisites orders a batch so every definition follows its in-batch prerequisites.
// Prerequisites outside the batch are left for registerLocked to resolve.
func sortByPrerequisites(defs []*entities.SchemaDefinition) ([]*entities.SchemaDefinition, error) {
	byName := make(map[string]*entities.SchemaDefinition, len(defs))
	for _, def := range defs {
		if def == nil {
			return nil, fmt.Errorf("schema definition is required")
		}
		if _, exists := byName[def.Name]; exists {
			return nil, &entities.DuplicateSchemaError{Name: def.Name}
		}
		byName[def.Name] = def
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(defs))
	ordered := make([]*entities.SchemaDefinition, 0, len(defs))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		def, inBatch := byName[name]
		if !inBatch {
			return nil
		}
		switch state[name] {
		case done:
			return nil
		case visiting:
			cycle := append(append([]string(nil), path...), name)
			for i, n := range cycle {
				if n == name {
					cycle = cycle[i:]
					break
				}
			}
			return &entities.CycleError{Path: cycle}
		}

		state[name] = visiting
		path = append(path, name)
		for _, prereq := range def.Prerequisites {
			if err := visit(prereq, path); err != nil {
				return err
			}
		}
		state[name] = done
		ordered = append(ordered, def)
		return nil
	}

	for _, def := range defs {
		if err := visit(def.Name, nil); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

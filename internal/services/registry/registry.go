// Package registry implements the process-wide catalog of API schemas and the
// apply/remove operations that record schemas on prims.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/asakaida/schemareg/internal/entities"
	"github.com/asakaida/schemareg/internal/logging"
	"github.com/asakaida/schemareg/internal/services/applicability"
	"github.com/asakaida/schemareg/internal/stage"
)

// Registry maps schema names to definitions.
// It is populated during startup and then frozen; after Freeze every read is lock free.
type Registry struct {
	mu       sync.RWMutex
	frozen   atomic.Bool
	entries  map[string]*entry
	aliases  map[string]string // alias -> schema name
	prefixes map[string]string // multi-apply instance prefix -> schema name
	order    []string          // registration order

	engine *applicability.CELEngine
}

// entry is a registered definition plus everything derived from it at register time
type entry struct {
	def       *entities.SchemaDefinition
	predicate *applicability.Predicate // compiled ExpressionRule, nil otherwise
	closure   []string                 // transitive prerequisites, dependencies first
}

// Option configures the Registry
type Option func(*Registry)

// WithCELEngine shares an existing CEL engine for expression rules
func WithCELEngine(engine *applicability.CELEngine) Option {
	return func(r *Registry) {
		r.engine = engine
	}
}

// New creates an empty registry
func New(opts ...Option) (*Registry, error) {
	r := &Registry{
		entries:  make(map[string]*entry),
		aliases:  make(map[string]string),
		prefixes: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.engine == nil {
		engine, err := applicability.NewCELEngine()
		if err != nil {
			return nil, err
		}
		r.engine = engine
	}
	return r, nil
}

// Register adds one definition. Its prerequisites must already be registered.
func (r *Registry) Register(def *entities.SchemaDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("cannot register schema %s: %w", def.Name, entities.ErrRegistryFrozen)
	}
	return r.registerLocked(def)
}

// RegisterAll adds a batch of definitions in dependency order.
// Prerequisite cycles inside the batch are reported as *entities.CycleError.
// Either every definition is registered or none is.
func (r *Registry) RegisterAll(defs ...*entities.SchemaDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("cannot register schemas: %w", entities.ErrRegistryFrozen)
	}

	ordered, err := sortByPrerequisites(defs)
	if err != nil {
		return err
	}

	added := make([]string, 0, len(ordered))
	for _, def := range ordered {
		if err := r.registerLocked(def); err != nil {
			for _, name := range added {
				r.unregisterLocked(name)
			}
			return err
		}
		added = append(added, def.Name)
	}
	return nil
}

// Freeze ends the registration phase
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze was called
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the definition registered under name
func (r *Registry) Lookup(name string) (*entities.SchemaDefinition, error) {
	defer r.read()()

	e, ok := r.entries[name]
	if !ok {
		return nil, &entities.NotFoundError{Kind: "schema", Name: name}
	}
	return e.def, nil
}

// LookupAlias returns the definition registered under a plugin type alias
func (r *Registry) LookupAlias(alias string) (*entities.SchemaDefinition, error) {
	defer r.read()()

	name, ok := r.aliases[alias]
	if !ok {
		return nil, &entities.NotFoundError{Kind: "schema", Name: alias}
	}
	return r.entries[name].def, nil
}

// Names returns registered schema names in registration order
func (r *Registry) Names() []string {
	defer r.read()()
	return append([]string(nil), r.order...)
}

// Prerequisites returns the transitive prerequisites of a schema, dependencies first
func (r *Registry) Prerequisites(name string) ([]string, error) {
	defer r.read()()

	e, ok := r.entries[name]
	if !ok {
		return nil, &entities.NotFoundError{Kind: "schema", Name: name}
	}
	return append([]string(nil), e.closure...), nil
}

// CanApply evaluates the schema's applicability rule against a declared prim type,
// then every prerequisite's rule. It stops at the first rule that fails.
func (r *Registry) CanApply(name, baseType string) (bool, error) {
	defer r.read()()

	e, ok := r.entries[name]
	if !ok {
		return false, &entities.NotFoundError{Kind: "schema", Name: name}
	}
	allowed, _, err := r.canApplyLocked(e, baseType)
	return allowed, err
}

// Apply records the schema, and each missing prerequisite before it, on the prim.
// The whole chain is committed in one prim edit.
func (r *Registry) Apply(prim *stage.Prim, name, instance string) error {
	defer r.read()()

	e, ok := r.entries[name]
	if !ok {
		return &entities.NotFoundError{Kind: "schema", Name: name}
	}

	allowed, failedAt, err := r.canApplyLocked(e, prim.TypeName())
	if err != nil {
		return err
	}
	if !allowed {
		return &entities.NotApplicableError{Schema: name, BaseType: prim.TypeName(), FailedAt: failedAt}
	}

	switch e.def.Kind {
	case entities.ApplyMulti:
		if instance == "" {
			return &entities.InstanceNameRequiredError{Schema: name}
		}
	default:
		if instance != "" {
			return fmt.Errorf("single-apply schema %s does not take instance name %q: %w", name, instance, entities.ErrNotApplicable)
		}
	}

	target := entities.AppliedSchema{Definition: e.def, Instance: instance}
	err = prim.Edit(func(tx *stage.Edit) error {
		if tx.HasSchema(target.ID()) {
			return nil
		}
		var added []entities.AppliedSchema
		for _, prereq := range e.closure {
			if !tx.HasSchema(prereq) {
				added = append(added, entities.AppliedSchema{Definition: r.entries[prereq].def})
			}
		}
		added = append(added, target)

		if err := checkPropertyOwners(tx.Applied(), added); err != nil {
			return err
		}
		for _, a := range added {
			tx.AddSchema(a)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Debug().
		Str("prim", prim.Path()).
		Str("schema", target.ID()).
		Msg("applied schema")
	return nil
}

// Remove drops an applied instance and deletes all values authored through it.
// Removing a schema that another applied schema requires fails with *entities.DependencyError.
// Dependencies are read from the definitions captured on the prim, so they hold across reloads.
func (r *Registry) Remove(prim *stage.Prim, name, instance string) error {
	defer r.read()()

	return prim.Edit(func(tx *stage.Edit) error {
		applied := tx.Applied()
		if instance == "" && isMultiApply(r.entries[name], applied, name) {
			return &entities.InstanceNameRequiredError{Schema: name}
		}

		id := entities.SchemaID(name, instance)
		var removed *entities.AppliedSchema
		for i := range applied {
			if applied[i].ID() == id {
				removed = &applied[i]
				break
			}
		}
		if removed == nil {
			return nil
		}

		if instance == "" {
			for _, other := range applied {
				if other.ID() != id && requires(other.Definition, name, applied) {
					return &entities.DependencyError{Schema: name, RequiredBy: other.ID()}
				}
			}
		}

		tx.RemoveSchema(id)
		for _, key := range removed.PropertyKeys() {
			tx.DeleteValue(key)
			tx.DeleteTargets(key)
		}
		return nil
	})
}

// checkPropertyOwners fails when an instance about to be added contributes a key
// that an applied instance, or an earlier one in added, already contributes
func checkPropertyOwners(applied, added []entities.AppliedSchema) error {
	owners := make(map[string]string)
	for _, a := range applied {
		for _, key := range a.PropertyKeys() {
			owners[key] = a.ID()
		}
	}
	for _, a := range added {
		for _, key := range a.PropertyKeys() {
			if other, ok := owners[key]; ok {
				return &entities.DescriptorConflictError{Schema: a.ID(), Key: key, Other: other}
			}
			owners[key] = a.ID()
		}
	}
	return nil
}

// requires walks the prerequisites of def transitively through the captured definitions in applied
func requires(def *entities.SchemaDefinition, name string, applied []entities.AppliedSchema) bool {
	captured := make(map[string]*entities.SchemaDefinition, len(applied))
	for _, a := range applied {
		if a.Instance == "" {
			captured[a.Definition.Name] = a.Definition
		}
	}

	seen := make(map[string]bool)
	stack := append([]string(nil), def.Prerequisites...)
	for len(stack) > 0 {
		prereq := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if prereq == name {
			return true
		}
		if seen[prereq] {
			continue
		}
		seen[prereq] = true
		if d, ok := captured[prereq]; ok {
			stack = append(stack, d.Prerequisites...)
		}
	}
	return false
}

// isMultiApply answers from the registry, or from the prim when the schema is no longer registered
func isMultiApply(e *entry, applied []entities.AppliedSchema, name string) bool {
	if e != nil {
		return e.def.Kind == entities.ApplyMulti
	}
	for _, a := range applied {
		if a.Definition.Name == name {
			return a.Definition.Kind == entities.ApplyMulti
		}
	}
	return false
}

// HasSchema reports whether the prim carries the schema id ("Name" or "Name:instance")
func (r *Registry) HasSchema(prim *stage.Prim, id string) bool {
	return prim.HasAppliedSchema(id)
}

// AppliedSchemas returns the ids applied to the prim, in application order
func (r *Registry) AppliedSchemas(prim *stage.Prim) []string {
	applied := prim.AppliedSchemas()
	ids := make([]string, 0, len(applied))
	for _, a := range applied {
		ids = append(ids, a.ID())
	}
	return ids
}

// read takes the read lock while the registry is still open
func (r *Registry) read() func() {
	if r.frozen.Load() {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

// canApplyLocked returns whether the chain accepts baseType and, if not, which schema refused it
func (r *Registry) canApplyLocked(e *entry, baseType string) (bool, string, error) {
	allowed, err := r.evaluateRule(e, baseType)
	if err != nil {
		return false, e.def.Name, err
	}
	if !allowed {
		return false, e.def.Name, nil
	}

	for _, prereq := range e.def.Prerequisites {
		allowed, failedAt, err := r.canApplyLocked(r.entries[prereq], baseType)
		if err != nil || !allowed {
			return false, failedAt, err
		}
	}
	return true, "", nil
}

// evaluateRule evaluates only the schema's own rule
func (r *Registry) evaluateRule(e *entry, baseType string) (bool, error) {
	switch rule := e.def.Applicability.(type) {
	case *entities.AnyTypeRule:
		return true, nil
	case *entities.TypeSetRule:
		return rule.Allows(baseType), nil
	case *entities.ExpressionRule:
		allowed, err := e.predicate.Evaluate(baseType)
		if err != nil {
			return false, fmt.Errorf("schema %s: %w", e.def.Name, err)
		}
		return allowed, nil
	default:
		return false, fmt.Errorf("schema %s: unsupported applicability rule %T", e.def.Name, rule)
	}
}

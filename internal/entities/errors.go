package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the registry and resolver.
// Each typed error below matches one of them through errors.Is, and carries
// the details through errors.As.
var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicateSchema        = errors.New("duplicate schema")
	ErrNotApplicable          = errors.New("schema not applicable")
	ErrInstanceNameRequired   = errors.New("instance name required")
	ErrSchemaNotApplied       = errors.New("schema not applied")
	ErrTypeMismatch           = errors.New("type mismatch")
	ErrDomain                 = errors.New("value outside domain")
	ErrCycle                  = errors.New("prerequisite cycle")
	ErrDescriptorConflict     = errors.New("descriptor key conflict")
	ErrInstancePrefixConflict = errors.New("instance prefix conflict")
	ErrDependency             = errors.New("schema still required")
	ErrRegistryFrozen         = errors.New("registry frozen")
	ErrInvalidDefinition      = errors.New("invalid schema definition")
)

// NotFoundError indicates an unknown schema, attribute, relationship or prim
type NotFoundError struct {
	Kind string // "schema", "attribute", "relationship", "prim"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateSchemaError indicates a name or alias that is already registered
type DuplicateSchemaError struct {
	Name string
}

func (e *DuplicateSchemaError) Error() string {
	return fmt.Sprintf("schema already registered: %s", e.Name)
}

func (e *DuplicateSchemaError) Is(target error) bool { return target == ErrDuplicateSchema }

// NotApplicableError indicates a base type rejected by the applicability chain.
// FailedAt names the schema whose predicate failed, which is a prerequisite
// when it differs from Schema.
type NotApplicableError struct {
	Schema   string
	BaseType string
	FailedAt string
}

func (e *NotApplicableError) Error() string {
	if e.FailedAt != "" && e.FailedAt != e.Schema {
		return fmt.Sprintf("schema %s cannot be applied to type %q: prerequisite %s is not applicable", e.Schema, e.BaseType, e.FailedAt)
	}
	return fmt.Sprintf("schema %s cannot be applied to type %q", e.Schema, e.BaseType)
}

func (e *NotApplicableError) Is(target error) bool { return target == ErrNotApplicable }

// InstanceNameRequiredError indicates a multi-apply schema applied without an instance name
type InstanceNameRequiredError struct {
	Schema string
}

func (e *InstanceNameRequiredError) Error() string {
	return fmt.Sprintf("multi-apply schema %s requires an instance name", e.Schema)
}

func (e *InstanceNameRequiredError) Is(target error) bool { return target == ErrInstanceNameRequired }

// SchemaNotAppliedError indicates a read or write through a schema the prim does not carry
type SchemaNotAppliedError struct {
	Schema string
	Prim   string
}

func (e *SchemaNotAppliedError) Error() string {
	return fmt.Sprintf("schema %s is not applied to prim %s", e.Schema, e.Prim)
}

func (e *SchemaNotAppliedError) Is(target error) bool { return target == ErrSchemaNotApplied }

// TypeMismatchError indicates a value whose dynamic type cannot be coerced to the slot type
type TypeMismatchError struct {
	Key      string
	Expected ValueType
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("attribute %s expects %s, got %s", e.Key, e.Expected, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// DomainError indicates a value outside the allowed tokens or range of a slot
type DomainError struct {
	Key    string
	Value  interface{}
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("attribute %s: value %v %s", e.Key, e.Value, e.Reason)
}

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// CycleError indicates a schema that requires itself, directly or transitively
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular prerequisite: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// DescriptorConflictError indicates a property key contributed twice to one prim,
// either by a prerequisite at registration or by another applied instance at apply time
type DescriptorConflictError struct {
	Schema string
	Key    string
	Other  string // schema that already contributes Key
}

func (e *DescriptorConflictError) Error() string {
	return fmt.Sprintf("schema %s: key %s is already contributed by %s", e.Schema, e.Key, e.Other)
}

func (e *DescriptorConflictError) Is(target error) bool { return target == ErrDescriptorConflict }

// InstancePrefixConflictError indicates two multi-apply schemas sharing a property prefix
type InstancePrefixConflictError struct {
	Schema string
	Prefix string
	Other  string
}

func (e *InstancePrefixConflictError) Error() string {
	return fmt.Sprintf("schema %s: instance prefix %s already used by %s", e.Schema, e.Prefix, e.Other)
}

func (e *InstancePrefixConflictError) Is(target error) bool { return target == ErrInstancePrefixConflict }

// DependencyError indicates removal of a schema that another applied schema requires
type DependencyError struct {
	Schema     string
	RequiredBy string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("schema %s is required by applied schema %s", e.Schema, e.RequiredBy)
}

func (e *DependencyError) Is(target error) bool { return target == ErrDependency }

// InvalidDefinitionError wraps every problem found while validating one definition
type InvalidDefinitionError struct {
	Schema string
	Err    error
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("invalid schema %s: %v", e.Schema, e.Err)
}

func (e *InvalidDefinitionError) Unwrap() error { return e.Err }

func (e *InvalidDefinitionError) Is(target error) bool { return target == ErrInvalidDefinition }

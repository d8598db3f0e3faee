package entities

import "fmt"

// RelationshipDescriptor defines a slot holding references to other prims
// Example: "relationship newton:mimicJoint"
// There is no fallback: an unauthored relationship has no targets.
type RelationshipDescriptor struct {
	Namespace string
	Name      string
	Doc       string
}

// Key returns the composed namespaced key of the relationship
func (r *RelationshipDescriptor) Key() string {
	return ComposeKey(r.Namespace, r.Name)
}

// Validate checks the descriptor
func (r *RelationshipDescriptor) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("relationship name is required")
	}
	return nil
}

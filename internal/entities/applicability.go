package entities

import "strings"

// ApplicabilityRule decides which declared prim types a schema may be applied to
type ApplicabilityRule interface {
	isApplicabilityRule()
	String() string
}

// AnyTypeRule accepts every prim type
type AnyTypeRule struct{}

func (r *AnyTypeRule) isApplicabilityRule() {}

func (r *AnyTypeRule) String() string { return "any" }

// TypeSetRule accepts prims whose declared type is one of Types
// Example: "applies_to RevoluteJoint | PrismaticJoint"
type TypeSetRule struct {
	Types []string
}

func (r *TypeSetRule) isApplicabilityRule() {}

// Allows reports whether baseType is in the set
func (r *TypeSetRule) Allows(baseType string) bool {
	for _, t := range r.Types {
		if t == baseType {
			return true
		}
	}
	return false
}

func (r *TypeSetRule) String() string { return strings.Join(r.Types, " | ") }

// ExpressionRule accepts prims for which a CEL expression over typeName holds
// Example: "applies_to rule(typeName.endsWith(\"Joint\"))"
type ExpressionRule struct {
	Expression string
}

func (r *ExpressionRule) isApplicabilityRule() {}

func (r *ExpressionRule) String() string { return "rule(" + r.Expression + ")" }

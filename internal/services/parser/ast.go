package parser

// CatalogAST represents a parsed schema catalog
type CatalogAST struct {
	Schemas []*SchemaAST
}

// SchemaAST represents a schema definition in the AST
type SchemaAST struct {
	Name           string
	Kind           string // "single" or "multi"
	InstancePrefix string // multi-apply only
	Alias          string
	Version        int
	Doc            string
	AppliesTo      AppliesToAST // nil means the schema did not declare one
	Requires       []string
	Attributes     []*AttributeAST
	Relationships  []*RelationshipAST
	Line           int
}

// AttributeAST represents an attribute definition in the AST
// Example: "attribute int newton:maxSolverIterations = 100 range [0, *]"
type AttributeAST struct {
	Type    string // "bool", "int", "double", "token"
	Name    string // fully namespaced, e.g. "newton:timeStep"
	Default *LiteralAST
	Allowed []string
	Min     *float64
	Max     *float64
	Doc     string
	Line    int
}

// RelationshipAST represents a relationship definition in the AST
// Example: "relationship newton:mimicJoint"
type RelationshipAST struct {
	Name string
	Doc  string
	Line int
}

// LiteralKind classifies literal values
type LiteralKind int

const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBool
)

// LiteralAST is a default value exactly as written in the source
type LiteralAST struct {
	Kind  LiteralKind
	Value string
}

// AppliesToAST is the interface for all applicability clauses
type AppliesToAST interface {
	isAppliesTo()
}

// AnyTypeAST applies to every prim type
// Example: "applies_to any"
type AnyTypeAST struct{}

func (a *AnyTypeAST) isAppliesTo() {}

// TypeListAST applies to an explicit set of prim types
// Example: "applies_to RevoluteJoint | PrismaticJoint"
type TypeListAST struct {
	Types []string
}

func (a *TypeListAST) isAppliesTo() {}

// RuleAppliesToAST applies where a CEL predicate over typeName holds
// Example: "applies_to rule(typeName.endsWith("Joint"))"
type RuleAppliesToAST struct {
	Expression string
}

func (a *RuleAppliesToAST) isAppliesTo() {}

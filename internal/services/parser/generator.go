package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Generator generates DSL from AST
type Generator struct {
	indent string
}

// NewGenerator creates a new Generator
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ",
	}
}

// Generate generates DSL string from CatalogAST
func (g *Generator) Generate(catalog *CatalogAST) string {
	var sb strings.Builder

	for i, schema := range catalog.Schemas {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(g.generateSchema(schema))
	}

	return sb.String()
}

// generateSchema generates DSL for a schema
func (g *Generator) generateSchema(schema *SchemaAST) string {
	var sb strings.Builder

	if schema.Kind == "multi" {
		sb.WriteString(fmt.Sprintf("schema %s multi %s {\n", schema.Name, schema.InstancePrefix))
	} else {
		sb.WriteString(fmt.Sprintf("schema %s single {\n", schema.Name))
	}

	line := func(s string) {
		sb.WriteString(g.indent)
		sb.WriteString(s)
		sb.WriteString("\n")
	}

	if schema.Alias != "" {
		line("alias " + schema.Alias)
	}
	if schema.Version > 0 {
		line(fmt.Sprintf("version %d", schema.Version))
	}
	if schema.Doc != "" {
		line("doc " + quote(schema.Doc))
	}
	if schema.AppliesTo != nil {
		line("applies_to " + g.generateAppliesTo(schema.AppliesTo))
	}
	if len(schema.Requires) > 0 {
		line("requires " + strings.Join(schema.Requires, ", "))
	}

	// Generate attributes
	for _, attr := range schema.Attributes {
		line(g.generateAttribute(attr))
	}

	// Generate relationships
	for _, rel := range schema.Relationships {
		line(g.generateRelationship(rel))
	}

	sb.WriteString("}")

	return sb.String()
}

// generateAppliesTo generates DSL for an applies_to clause
func (g *Generator) generateAppliesTo(appliesTo AppliesToAST) string {
	switch a := appliesTo.(type) {
	case *AnyTypeAST:
		return "any"
	case *TypeListAST:
		return strings.Join(a.Types, " | ")
	case *RuleAppliesToAST:
		return fmt.Sprintf("rule(%s)", a.Expression)
	default:
		return ""
	}
}

// generateAttribute generates DSL for an attribute
func (g *Generator) generateAttribute(attr *AttributeAST) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("attribute %s %s", attr.Type, attr.Name))

	if attr.Default != nil {
		sb.WriteString(" = ")
		sb.WriteString(g.generateLiteral(attr.Default))
	}
	if len(attr.Allowed) > 0 {
		quoted := make([]string, len(attr.Allowed))
		for i, t := range attr.Allowed {
			quoted[i] = quote(t)
		}
		sb.WriteString(fmt.Sprintf(" allowed [%s]", strings.Join(quoted, ", ")))
	}
	if attr.Min != nil || attr.Max != nil {
		sb.WriteString(fmt.Sprintf(" range [%s, %s]", bound(attr.Min), bound(attr.Max)))
	}
	if attr.Doc != "" {
		sb.WriteString(" doc ")
		sb.WriteString(quote(attr.Doc))
	}
	return sb.String()
}

// generateRelationship generates DSL for a relationship
func (g *Generator) generateRelationship(rel *RelationshipAST) string {
	if rel.Doc != "" {
		return fmt.Sprintf("relationship %s doc %s", rel.Name, quote(rel.Doc))
	}
	return fmt.Sprintf("relationship %s", rel.Name)
}

// generateLiteral generates DSL for a literal value
func (g *Generator) generateLiteral(lit *LiteralAST) string {
	if lit.Kind == LiteralString {
		return quote(lit.Value)
	}
	return lit.Value
}

func bound(f *float64) string {
	if f == nil {
		return "*"
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

// quote wraps s in double quotes; the DSL has no escape sequences
func quote(s string) string {
	return `"` + s + `"`
}

package parser

import (
	"fmt"
	"strconv"

	"github.com/asakaida/schemareg/internal/entities"
)

// ASTToCatalog converts CatalogAST to entities.Catalog
func ASTToCatalog(name string, ast *CatalogAST) (*entities.Catalog, error) {
	catalog := &entities.Catalog{
		Name:    name,
		Schemas: make([]*entities.SchemaDefinition, 0, len(ast.Schemas)),
	}

	for _, schemaAST := range ast.Schemas {
		def, err := convertSchema(schemaAST)
		if err != nil {
			return nil, fmt.Errorf("failed to convert schema %s: %w", schemaAST.Name, err)
		}
		catalog.Schemas = append(catalog.Schemas, def)
	}

	return catalog, nil
}

// CatalogToAST converts entities.Catalog to CatalogAST
func CatalogToAST(catalog *entities.Catalog) (*CatalogAST, error) {
	ast := &CatalogAST{
		Schemas: make([]*SchemaAST, 0, len(catalog.Schemas)),
	}

	for _, def := range catalog.Schemas {
		schemaAST, err := SchemaToAST(def)
		if err != nil {
			return nil, fmt.Errorf("failed to convert schema %s: %w", def.Name, err)
		}
		ast.Schemas = append(ast.Schemas, schemaAST)
	}

	return ast, nil
}

// convertSchema converts SchemaAST to entities.SchemaDefinition
func convertSchema(ast *SchemaAST) (*entities.SchemaDefinition, error) {
	def := &entities.SchemaDefinition{
		Name:           ast.Name,
		Alias:          ast.Alias,
		InstancePrefix: ast.InstancePrefix,
		Version:        ast.Version,
		Doc:            ast.Doc,
		Prerequisites:  append([]string(nil), ast.Requires...),
		Attributes:     make([]*entities.AttributeDescriptor, 0, len(ast.Attributes)),
		Relationships:  make([]*entities.RelationshipDescriptor, 0, len(ast.Relationships)),
	}

	switch ast.Kind {
	case "", "single":
		def.Kind = entities.ApplySingle
	case "multi":
		def.Kind = entities.ApplyMulti
	default:
		return nil, fmt.Errorf("unknown apply kind: %s", ast.Kind)
	}

	rule, err := convertAppliesTo(ast.AppliesTo)
	if err != nil {
		return nil, err
	}
	def.Applicability = rule

	// Convert attributes
	for _, attrAST := range ast.Attributes {
		desc, err := convertAttribute(attrAST)
		if err != nil {
			return nil, fmt.Errorf("failed to convert attribute %s: %w", attrAST.Name, err)
		}
		def.Attributes = append(def.Attributes, desc)
	}

	// Convert relationships
	for _, relAST := range ast.Relationships {
		namespace, name := entities.SplitKey(relAST.Name)
		def.Relationships = append(def.Relationships, &entities.RelationshipDescriptor{
			Namespace: namespace,
			Name:      name,
			Doc:       relAST.Doc,
		})
	}

	return def, nil
}

// convertAppliesTo converts AppliesToAST to entities.ApplicabilityRule
func convertAppliesTo(ast AppliesToAST) (entities.ApplicabilityRule, error) {
	switch r := ast.(type) {
	case *AnyTypeAST:
		return &entities.AnyTypeRule{}, nil
	case *TypeListAST:
		return &entities.TypeSetRule{Types: append([]string(nil), r.Types...)}, nil
	case *RuleAppliesToAST:
		return &entities.ExpressionRule{Expression: r.Expression}, nil
	case nil:
		return nil, fmt.Errorf("missing applies_to")
	default:
		return nil, fmt.Errorf("unknown applies_to type: %T", ast)
	}
}

// convertAttribute converts AttributeAST to entities.AttributeDescriptor
func convertAttribute(ast *AttributeAST) (*entities.AttributeDescriptor, error) {
	valueType, err := entities.ParseValueType(ast.Type)
	if err != nil {
		return nil, err
	}
	namespace, name := entities.SplitKey(ast.Name)
	desc := &entities.AttributeDescriptor{
		Namespace:     namespace,
		Name:          name,
		Type:          valueType,
		AllowedTokens: append([]string(nil), ast.Allowed...),
		Min:           copyFloat(ast.Min),
		Max:           copyFloat(ast.Max),
		Doc:           ast.Doc,
	}
	if len(desc.AllowedTokens) == 0 {
		desc.AllowedTokens = nil
	}

	if ast.Default == nil {
		return desc, nil
	}
	fallback, err := convertLiteral(valueType, ast.Default)
	if err != nil {
		return nil, err
	}
	desc.Fallback = fallback
	return desc, nil
}

// convertLiteral parses a default literal into the canonical Go value of the type
func convertLiteral(valueType entities.ValueType, lit *LiteralAST) (interface{}, error) {
	switch valueType {
	case entities.ValueTypeBool:
		if lit.Kind != LiteralBool {
			return nil, fmt.Errorf("default %q is not a bool", lit.Value)
		}
		return lit.Value == "true", nil
	case entities.ValueTypeInt:
		if lit.Kind != LiteralNumber {
			return nil, fmt.Errorf("default %q is not a number", lit.Value)
		}
		n, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("default %s is not an integer", lit.Value)
		}
		return n, nil
	case entities.ValueTypeDouble:
		if lit.Kind != LiteralNumber {
			return nil, fmt.Errorf("default %q is not a number", lit.Value)
		}
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("default %s is not a number", lit.Value)
		}
		return f, nil
	case entities.ValueTypeToken:
		if lit.Kind != LiteralString {
			return nil, fmt.Errorf("default %s is not a string", lit.Value)
		}
		return lit.Value, nil
	default:
		return nil, fmt.Errorf("type %s takes no default", valueType)
	}
}

// SchemaToAST converts entities.SchemaDefinition to SchemaAST
func SchemaToAST(def *entities.SchemaDefinition) (*SchemaAST, error) {
	ast := &SchemaAST{
		Name:           def.Name,
		Kind:           def.Kind.String(),
		InstancePrefix: def.InstancePrefix,
		Alias:          def.Alias,
		Version:        def.Version,
		Doc:            def.Doc,
		Requires:       append([]string{}, def.Prerequisites...),
		Attributes:     make([]*AttributeAST, 0, len(def.Attributes)),
		Relationships:  make([]*RelationshipAST, 0, len(def.Relationships)),
	}

	switch r := def.Applicability.(type) {
	case *entities.AnyTypeRule:
		ast.AppliesTo = &AnyTypeAST{}
	case *entities.TypeSetRule:
		ast.AppliesTo = &TypeListAST{Types: append([]string(nil), r.Types...)}
	case *entities.ExpressionRule:
		ast.AppliesTo = &RuleAppliesToAST{Expression: r.Expression}
	default:
		return nil, fmt.Errorf("unknown applicability rule type: %T", def.Applicability)
	}

	// Convert attributes
	for _, desc := range def.Attributes {
		attrAST := &AttributeAST{
			Type:    desc.Type.String(),
			Name:    desc.Key(),
			Allowed: append([]string(nil), desc.AllowedTokens...),
			Min:     copyFloat(desc.Min),
			Max:     copyFloat(desc.Max),
			Doc:     desc.Doc,
		}
		if desc.Fallback != nil {
			lit, err := literalFromValue(desc.Fallback)
			if err != nil {
				return nil, fmt.Errorf("attribute %s: %w", desc.Key(), err)
			}
			attrAST.Default = lit
		}
		ast.Attributes = append(ast.Attributes, attrAST)
	}

	// Convert relationships
	for _, rel := range def.Relationships {
		ast.Relationships = append(ast.Relationships, &RelationshipAST{
			Name: rel.Key(),
			Doc:  rel.Doc,
		})
	}

	return ast, nil
}

// literalFromValue renders a canonical Go value as a DSL literal
func literalFromValue(v interface{}) (*LiteralAST, error) {
	switch val := v.(type) {
	case bool:
		return &LiteralAST{Kind: LiteralBool, Value: strconv.FormatBool(val)}, nil
	case int64:
		return &LiteralAST{Kind: LiteralNumber, Value: strconv.FormatInt(val, 10)}, nil
	case float64:
		return &LiteralAST{Kind: LiteralNumber, Value: strconv.FormatFloat(val, 'g', -1, 64)}, nil
	case string:
		return &LiteralAST{Kind: LiteralString, Value: val}, nil
	default:
		return nil, fmt.Errorf("unsupported fallback type %T", v)
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

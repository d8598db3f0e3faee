package parser

import (
	"strings"
	"testing"
)

func TestParser_SimpleSchema(t *testing.T) {
	input := `schema NewtonSceneAPI {
  applies_to Scene
}`

	lexer := NewLexer(input)
	parser := NewParser(lexer)

	catalog, err := parser.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if len(catalog.Schemas) != 1 {
		t.Fatalf("expected 1 schema, got %d", len(catalog.Schemas))
	}

	schema := catalog.Schemas[0]
	if schema.Name != "NewtonSceneAPI" {
		t.Errorf("expected schema name 'NewtonSceneAPI', got %s", schema.Name)
	}
	if schema.Kind != "single" {
		t.Errorf("expected default kind 'single', got %s", schema.Kind)
	}
	types, ok := schema.AppliesTo.(*TypeListAST)
	if !ok {
		t.Fatalf("expected TypeListAST, got %T", schema.AppliesTo)
	}
	if len(types.Types) != 1 || types.Types[0] != "Scene" {
		t.Errorf("expected [Scene], got %v", types.Types)
	}
}

func TestParser_SchemaHeader(t *testing.T) {
	input := `schema NewtonSceneAPI single {
  alias NewtonPhysicsSceneAPI
  version 2
  doc "Scene level solver settings"
  applies_to Scene
}`

	catalog, err := Parse(input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	schema := catalog.Schemas[0]
	if schema.Alias != "NewtonPhysicsSceneAPI" {
		t.Errorf("expected alias NewtonPhysicsSceneAPI, got %s", schema.Alias)
	}
	if schema.Version != 2 {
		t.Errorf("expected version 2, got %d", schema.Version)
	}
	if schema.Doc != "Scene level solver settings" {
		t.Errorf("unexpected doc %q", schema.Doc)
	}
	if schema.Line != 1 {
		t.Errorf("expected line 1, got %d", schema.Line)
	}
}

func TestParser_MultiApplySchema(t *testing.T) {
	input := `schema NewtonCollisionGroupAPI multi newton:collisionGroup {
  applies_to any
  attribute int group = 0
}`

	catalog, err := Parse(input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	schema := catalog.Schemas[0]
	if schema.Kind != "multi" {
		t.Errorf("expected kind multi, got %s", schema.Kind)
	}
	if schema.InstancePrefix != "newton:collisionGroup" {
		t.Errorf("expected prefix newton:collisionGroup, got %s", schema.InstancePrefix)
	}
	if _, ok := schema.AppliesTo.(*AnyTypeAST); !ok {
		t.Errorf("expected AnyTypeAST, got %T", schema.AppliesTo)
	}
}

func TestParser_AppliesToTypeUnion(t *testing.T) {
	input := `schema NewtonMimicAPI {
  applies_to RevoluteJoint | PrismaticJoint | SphericalJoint
}`

	catalog, err := Parse(input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	types, ok := catalog.Schemas[0].AppliesTo.(*TypeListAST)
	if !ok {
		t.Fatalf("expected TypeListAST, got %T", catalog.Schemas[0].AppliesTo)
	}
	want := []string{"RevoluteJoint", "PrismaticJoint", "SphericalJoint"}
	if strings.Join(types.Types, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, types.Types)
	}
}

func TestParser_AppliesToRule(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "method call",
			input: `applies_to rule(typeName.endsWith("Joint"))`,
			want:  `typeName.endsWith("Joint")`,
		},
		{
			name:  "membership",
			input: `applies_to rule(typeName in ["Scene", "Xform"])`,
			want:  `typeName in ["Scene", "Xform"]`,
		},
		{
			name:  "logical",
			input: `applies_to rule(typeName != "Xform" && !typeName.startsWith("Mesh"))`,
			want:  `typeName != "Xform" && !typeName.startsWith("Mesh")`,
		},
		{
			name:  "function",
			input: `applies_to rule(size(typeName) > 5)`,
			want:  `size(typeName) > 5`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, err := Parse("schema S {\n  " + tt.input + "\n}")
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			rule, ok := catalog.Schemas[0].AppliesTo.(*RuleAppliesToAST)
			if !ok {
				t.Fatalf("expected RuleAppliesToAST, got %T", catalog.Schemas[0].AppliesTo)
			}
			if rule.Expression != tt.want {
				t.Errorf("expected expression %q, got %q", tt.want, rule.Expression)
			}
		})
	}
}

func TestParser_Requires(t *testing.T) {
	input := `schema NewtonKaminoSceneAPI {
  applies_to Scene
  requires NewtonSceneAPI, OtherAPI
  requires ThirdAPI
}`

	catalog, err := Parse(input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	got := catalog.Schemas[0].Requires
	want := []string{"NewtonSceneAPI", "OtherAPI", "ThirdAPI"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParser_Attributes(t *testing.T) {
	input := `schema NewtonKaminoSceneAPI {
  applies_to Scene
  attribute int newton:maxSolverIterations = 100 range [0, *]
  attribute double newton:kamino:padmm:primalTolerance = 1e-6 doc "PADMM primal tolerance"
  attribute token newton:kamino:padmm:warmstart = "containers" allowed ["none", "internal", "containers"]
  attribute bool newton:kamino:padmm:acceleration = true
  attribute double newton:mimicCoef0 = -0.5 range [-1, 1]
  attribute double newton:unset
}`

	catalog, err := Parse(input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	attrs := catalog.Schemas[0].Attributes
	if len(attrs) != 6 {
		t.Fatalf("expected 6 attributes, got %d", len(attrs))
	}

	iterations := attrs[0]
	if iterations.Type != "int" || iterations.Name != "newton:maxSolverIterations" {
		t.Errorf("unexpected attribute %s %s", iterations.Type, iterations.Name)
	}
	if iterations.Default == nil || iterations.Default.Kind != LiteralNumber || iterations.Default.Value != "100" {
		t.Errorf("unexpected default %+v", iterations.Default)
	}
	if iterations.Min == nil || *iterations.Min != 0 || iterations.Max != nil {
		t.Errorf("expected range [0, *], got [%v, %v]", iterations.Min, iterations.Max)
	}

	tolerance := attrs[1]
	if tolerance.Default.Value != "1e-6" {
		t.Errorf("expected 1e-6, got %s", tolerance.Default.Value)
	}
	if tolerance.Doc != "PADMM primal tolerance" {
		t.Errorf("unexpected doc %q", tolerance.Doc)
	}

	warmstart := attrs[2]
	if warmstart.Default.Kind != LiteralString || warmstart.Default.Value != "containers" {
		t.Errorf("unexpected default %+v", warmstart.Default)
	}
	if strings.Join(warmstart.Allowed, ",") != "none,internal,containers" {
		t.Errorf("unexpected allowed %v", warmstart.Allowed)
	}

	acceleration := attrs[3]
	if acceleration.Default.Kind != LiteralBool || acceleration.Default.Value != "true" {
		t.Errorf("unexpected default %+v", acceleration.Default)
	}

	coef := attrs[4]
	if coef.Default.Value != "-0.5" {
		t.Errorf("expected -0.5, got %s", coef.Default.Value)
	}
	if *coef.Min != -1 || *coef.Max != 1 {
		t.Errorf("expected range [-1, 1], got [%v, %v]", *coef.Min, *coef.Max)
	}

	if attrs[5].Default != nil {
		t.Errorf("expected no default, got %+v", attrs[5].Default)
	}
}

func TestParser_KeywordNameSegments(t *testing.T) {
	input := `schema S {
  applies_to any
  attribute double newton:range:doc = 1
  relationship newton:rule
}`

	catalog, err := Parse(input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if catalog.Schemas[0].Attributes[0].Name != "newton:range:doc" {
		t.Errorf("unexpected name %s", catalog.Schemas[0].Attributes[0].Name)
	}
	if catalog.Schemas[0].Relationships[0].Name != "newton:rule" {
		t.Errorf("unexpected name %s", catalog.Schemas[0].Relationships[0].Name)
	}
}

func TestParser_Relationships(t *testing.T) {
	input := `schema NewtonMimicAPI {
  applies_to RevoluteJoint
  relationship newton:mimicJoint doc "Leader joint"
  attribute bool newton:mimicEnabled = true
}`

	catalog, err := Parse(input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	schema := catalog.Schemas[0]
	if len(schema.Relationships) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(schema.Relationships))
	}
	if schema.Relationships[0].Name != "newton:mimicJoint" || schema.Relationships[0].Doc != "Leader joint" {
		t.Errorf("unexpected relationship %+v", schema.Relationships[0])
	}
	if len(schema.Attributes) != 1 {
		t.Errorf("expected 1 attribute, got %d", len(schema.Attributes))
	}
}

func TestParser_MultipleSchemas(t *testing.T) {
	input := `schema A { applies_to any }
schema B { applies_to any requires A }`

	catalog, err := Parse(input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(catalog.Schemas) != 2 {
		t.Fatalf("expected 2 schemas, got %d", len(catalog.Schemas))
	}
	if catalog.Schemas[1].Requires[0] != "A" {
		t.Errorf("expected B to require A, got %v", catalog.Schemas[1].Requires)
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing name", `schema { }`},
		{"missing brace", `schema A applies_to any }`},
		{"unterminated body", `schema A { applies_to any`},
		{"top level garbage", `entity user {}`},
		{"unknown body token", `schema A { permission view = owner }`},
		{"bad literal", `schema A { attribute int x = ( }`},
		{"bad allowed", `schema A { attribute token x allowed [1] }`},
		{"bad range", `schema A { attribute int x range [0] }`},
		{"empty rule", `schema A { applies_to rule() }`},
		{"applies_to twice", `schema A { applies_to any applies_to Scene }`},
		{"multi without prefix", `schema A multi { }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Errorf("expected parse error")
			}
		})
	}
}

package parser

import (
	"reflect"
	"testing"

	"github.com/asakaida/schemareg/internal/entities"
)

const kaminoCatalog = `schema NewtonSceneAPI {
  alias NewtonPhysicsSceneAPI
  applies_to Scene
  attribute int newton:maxSolverIterations = 100 range [0, *]
  attribute double newton:timeStep = 0.005
}

schema NewtonKaminoSceneAPI {
  alias NewtonPhysicsKaminoSceneAPI
  version 1
  applies_to Scene
  requires NewtonSceneAPI
  attribute double newton:kamino:padmm:primalTolerance = 1e-6
  attribute token newton:kamino:padmm:warmstart = "containers" allowed ["none", "internal", "containers"]
  attribute bool newton:kamino:padmm:acceleration = true
}

schema NewtonMimicAPI {
  applies_to RevoluteJoint | PrismaticJoint
  attribute double newton:mimicCoef0 = 0
  relationship newton:mimicJoint doc "Leader joint"
}

schema NewtonCollisionGroupAPI multi newton:collisionGroup {
  applies_to rule(typeName.endsWith("Joint"))
  attribute int group
}`

func TestASTToCatalog(t *testing.T) {
	ast, err := Parse(kaminoCatalog)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	catalog, err := ASTToCatalog("newton", ast)
	if err != nil {
		t.Fatalf("convert error: %v", err)
	}

	if catalog.Name != "newton" {
		t.Errorf("expected catalog name newton, got %s", catalog.Name)
	}
	if len(catalog.Schemas) != 4 {
		t.Fatalf("expected 4 schemas, got %d", len(catalog.Schemas))
	}

	scene := catalog.GetSchema("NewtonSceneAPI")
	if scene == nil {
		t.Fatal("NewtonSceneAPI not found")
	}
	if scene.Kind != entities.ApplySingle {
		t.Errorf("expected single-apply, got %s", scene.Kind)
	}
	if _, ok := scene.Applicability.(*entities.TypeSetRule); !ok {
		t.Errorf("expected TypeSetRule, got %T", scene.Applicability)
	}

	iterations := scene.GetAttribute("newton:maxSolverIterations")
	if iterations == nil {
		t.Fatal("newton:maxSolverIterations not found")
	}
	if iterations.Namespace != "newton" || iterations.Name != "maxSolverIterations" {
		t.Errorf("unexpected split %q / %q", iterations.Namespace, iterations.Name)
	}
	if iterations.Type != entities.ValueTypeInt {
		t.Errorf("expected int, got %s", iterations.Type)
	}
	if iterations.Fallback != int64(100) {
		t.Errorf("expected fallback int64(100), got %#v", iterations.Fallback)
	}
	if iterations.Min == nil || *iterations.Min != 0 || iterations.Max != nil {
		t.Errorf("unexpected range [%v, %v]", iterations.Min, iterations.Max)
	}

	kamino := catalog.GetSchema("NewtonKaminoSceneAPI")
	if kamino.Version != 1 {
		t.Errorf("expected version 1, got %d", kamino.Version)
	}
	if !reflect.DeepEqual(kamino.Prerequisites, []string{"NewtonSceneAPI"}) {
		t.Errorf("unexpected prerequisites %v", kamino.Prerequisites)
	}
	tolerance := kamino.GetAttribute("newton:kamino:padmm:primalTolerance")
	if tolerance.Namespace != "newton:kamino:padmm" || tolerance.Fallback != 1e-6 {
		t.Errorf("unexpected tolerance %+v", tolerance)
	}
	warmstart := kamino.GetAttribute("newton:kamino:padmm:warmstart")
	if warmstart.Fallback != "containers" || len(warmstart.AllowedTokens) != 3 {
		t.Errorf("unexpected warmstart %+v", warmstart)
	}
	if kamino.GetAttribute("newton:kamino:padmm:acceleration").Fallback != true {
		t.Error("expected acceleration fallback true")
	}

	mimic := catalog.GetSchema("NewtonMimicAPI")
	if mimic.GetAttribute("newton:mimicCoef0").Fallback != float64(0) {
		t.Errorf("expected float64 fallback, got %#v", mimic.GetAttribute("newton:mimicCoef0").Fallback)
	}
	rel := mimic.GetRelationship("newton:mimicJoint")
	if rel == nil || rel.Doc != "Leader joint" {
		t.Errorf("unexpected relationship %+v", rel)
	}

	group := catalog.GetSchema("NewtonCollisionGroupAPI")
	if group.Kind != entities.ApplyMulti || group.InstancePrefix != "newton:collisionGroup" {
		t.Errorf("unexpected multi-apply schema %+v", group)
	}
	rule, ok := group.Applicability.(*entities.ExpressionRule)
	if !ok || rule.Expression != `typeName.endsWith("Joint")` {
		t.Errorf("unexpected applicability %v", group.Applicability)
	}
	if group.GetAttribute("group").Fallback != nil {
		t.Errorf("expected nil fallback, got %#v", group.GetAttribute("group").Fallback)
	}

	for _, def := range catalog.Schemas {
		if err := def.Validate(); err != nil {
			t.Errorf("converted schema %s is invalid: %v", def.Name, err)
		}
	}
}

func TestASTToCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		ast  *CatalogAST
	}{
		{
			name: "missing applies_to",
			ast:  &CatalogAST{Schemas: []*SchemaAST{{Name: "A", Kind: "single"}}},
		},
		{
			name: "bad kind",
			ast:  &CatalogAST{Schemas: []*SchemaAST{{Name: "A", Kind: "double", AppliesTo: &AnyTypeAST{}}}},
		},
		{
			name: "bad type",
			ast: &CatalogAST{Schemas: []*SchemaAST{{
				Name: "A", Kind: "single", AppliesTo: &AnyTypeAST{},
				Attributes: []*AttributeAST{{Type: "float", Name: "x"}},
			}}},
		},
		{
			name: "fractional int",
			ast: &CatalogAST{Schemas: []*SchemaAST{{
				Name: "A", Kind: "single", AppliesTo: &AnyTypeAST{},
				Attributes: []*AttributeAST{{Type: "int", Name: "x", Default: &LiteralAST{Kind: LiteralNumber, Value: "1.5"}}},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ASTToCatalog("c", tt.ast); err == nil {
				t.Error("expected conversion error")
			}
		})
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	ast, err := Parse(kaminoCatalog)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	original, err := ASTToCatalog("newton", ast)
	if err != nil {
		t.Fatalf("convert error: %v", err)
	}

	back, err := CatalogToAST(original)
	if err != nil {
		t.Fatalf("convert back error: %v", err)
	}
	dsl := NewGenerator().Generate(back)

	reparsed, err := Parse(dsl)
	if err != nil {
		t.Fatalf("generated DSL does not parse: %v\n%s", err, dsl)
	}
	roundTripped, err := ASTToCatalog("newton", reparsed)
	if err != nil {
		t.Fatalf("convert error: %v", err)
	}

	if !reflect.DeepEqual(original, roundTripped) {
		t.Errorf("round trip mismatch\ngenerated:\n%s", dsl)
	}
}

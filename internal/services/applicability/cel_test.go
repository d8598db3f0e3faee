package applicability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELEngine_Evaluate(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	tests := []struct {
		name       string
		expression string
		typeName   string
		expected   bool
	}{
		{
			name:       "equality - match",
			expression: `typeName == "Scene"`,
			typeName:   "Scene",
			expected:   true,
		},
		{
			name:       "equality - mismatch",
			expression: `typeName == "Scene"`,
			typeName:   "Xform",
			expected:   false,
		},
		{
			name:       "suffix match",
			expression: `typeName.endsWith("Joint")`,
			typeName:   "RevoluteJoint",
			expected:   true,
		},
		{
			name:       "membership",
			expression: `typeName in ["RevoluteJoint", "PrismaticJoint"]`,
			typeName:   "PrismaticJoint",
			expected:   true,
		},
		{
			name:       "negated membership",
			expression: `!(typeName in ["Xform", "Scope"])`,
			typeName:   "Xform",
			expected:   false,
		},
		{
			name:       "regex",
			expression: `typeName.matches("^(Revolute|Prismatic)Joint$")`,
			typeName:   "SphericalJoint",
			expected:   false,
		},
		{
			name:       "empty type name",
			expression: `size(typeName) > 0`,
			typeName:   "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(tt.expression, tt.typeName)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCELEngine_Compile_Errors(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	tests := []struct {
		name       string
		expression string
	}{
		{name: "syntax error", expression: `typeName ==`},
		{name: "unknown variable", expression: `kind == "Scene"`},
		{name: "non boolean result", expression: `typeName + "API"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Compile(tt.expression)
			assert.Error(t, err)
			assert.Error(t, engine.ValidateExpression(tt.expression))
		})
	}
}

func TestPredicate_Reuse(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	predicate, err := engine.Compile(`typeName.startsWith("Physics")`)
	require.NoError(t, err)
	assert.Equal(t, `typeName.startsWith("Physics")`, predicate.Expression())

	for typeName, want := range map[string]bool{
		"PhysicsScene": true,
		"PhysicsJoint": true,
		"Mesh":         false,
	} {
		got, err := predicate.Evaluate(typeName)
		require.NoError(t, err)
		assert.Equal(t, want, got, typeName)
	}
}

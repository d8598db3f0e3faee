package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asakaida/schemareg/internal/entities"
	"github.com/asakaida/schemareg/internal/stage"
)

var jointTypes = []string{"RevoluteJoint", "PrismaticJoint", "SphericalJoint", "GenericJoint"}

func sceneAPI() *entities.SchemaDefinition {
	return &entities.SchemaDefinition{
		Name:          "NewtonSceneAPI",
		Alias:         "NewtonPhysicsSceneAPI",
		Applicability: &entities.TypeSetRule{Types: []string{"Scene"}},
		Attributes: []*entities.AttributeDescriptor{
			{Namespace: "newton", Name: "maxSolverIterations", Type: entities.ValueTypeInt, Fallback: int64(100)},
			{Namespace: "newton", Name: "timeStep", Type: entities.ValueTypeDouble, Fallback: 0.005},
			{Namespace: "newton", Name: "timeStepsPerSecond", Type: entities.ValueTypeInt, Fallback: int64(60)},
		},
	}
}

func kaminoSceneAPI() *entities.SchemaDefinition {
	return &entities.SchemaDefinition{
		Name:          "NewtonKaminoSceneAPI",
		Alias:         "NewtonPhysicsKaminoSceneAPI",
		Applicability: &entities.TypeSetRule{Types: []string{"Scene"}},
		Prerequisites: []string{"NewtonSceneAPI"},
		Attributes: []*entities.AttributeDescriptor{
			{Namespace: "newton:kamino:padmm", Name: "primalTolerance", Type: entities.ValueTypeDouble, Fallback: 1e-6},
			{
				Namespace:     "newton:kamino:padmm",
				Name:          "warmstart",
				Type:          entities.ValueTypeToken,
				Fallback:      "containers",
				AllowedTokens: []string{"none", "internal", "containers"},
			},
		},
	}
}

func mimicAPI() *entities.SchemaDefinition {
	return &entities.SchemaDefinition{
		Name:          "NewtonMimicAPI",
		Alias:         "NewtonPhysicsMimicAPI",
		Applicability: &entities.TypeSetRule{Types: jointTypes},
		Attributes: []*entities.AttributeDescriptor{
			{Namespace: "newton", Name: "mimicEnabled", Type: entities.ValueTypeBool, Fallback: true},
			{Namespace: "newton", Name: "mimicCoef0", Type: entities.ValueTypeDouble, Fallback: 0.0},
			{Namespace: "newton", Name: "mimicCoef1", Type: entities.ValueTypeDouble, Fallback: 1.0},
		},
		Relationships: []*entities.RelationshipDescriptor{
			{Namespace: "newton", Name: "mimicJoint"},
		},
	}
}

func collisionGroupAPI() *entities.SchemaDefinition {
	return &entities.SchemaDefinition{
		Name:           "NewtonCollisionGroupAPI",
		Kind:           entities.ApplyMulti,
		InstancePrefix: "newton:collisionGroup",
		Applicability:  &entities.ExpressionRule{Expression: `typeName.endsWith("Joint")`},
		Attributes: []*entities.AttributeDescriptor{
			{Name: "group", Type: entities.ValueTypeInt},
		},
		Relationships: []*entities.RelationshipDescriptor{
			{Name: "filteredPairs"},
		},
	}
}

// newtonRegistry registers the Newton fixtures in dependency order
func newtonRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	require.NoError(t, r.RegisterAll(kaminoSceneAPI(), sceneAPI(), mimicAPI(), collisionGroupAPI()))
	return r
}

func definePrim(t *testing.T, path, typeName string) *stage.Prim {
	t.Helper()
	prim, err := stage.New().DefinePrim(path, typeName)
	require.NoError(t, err)
	return prim
}

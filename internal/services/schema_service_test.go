package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asakaida/schemareg/internal/catalog"
	"github.com/asakaida/schemareg/internal/entities"
	"github.com/asakaida/schemareg/internal/repositories"
	"github.com/asakaida/schemareg/pkg/cache/memorycache"
)

// mockCatalogRepository keeps catalog versions in memory
type mockCatalogRepository struct {
	mu       sync.Mutex
	catalogs map[string][]*entities.Catalog
	seq      int
}

func newMockCatalogRepository() *mockCatalogRepository {
	return &mockCatalogRepository{catalogs: make(map[string][]*entities.Catalog)}
}

func (m *mockCatalogRepository) Create(ctx context.Context, name string, dsl string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	version := fmt.Sprintf("v%03d", m.seq)
	m.catalogs[name] = append(m.catalogs[name], &entities.Catalog{
		Name:      name,
		Version:   version,
		DSL:       dsl,
		CreatedAt: time.Now(),
	})
	return version, nil
}

func (m *mockCatalogRepository) GetLatestVersion(ctx context.Context, name string) (*entities.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.catalogs[name]
	if len(versions) == 0 {
		return nil, repositories.ErrNotFound
	}
	return versions[len(versions)-1], nil
}

func (m *mockCatalogRepository) GetByVersion(ctx context.Context, name string, version string) (*entities.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.catalogs[name] {
		if c.Version == version {
			return c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockCatalogRepository) ListVersions(ctx context.Context, name string, limit int) ([]*entities.CatalogVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entities.CatalogVersion
	versions := m.catalogs[name]
	for i := len(versions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, &entities.CatalogVersion{Version: versions[i].Version, CreatedAt: versions[i].CreatedAt})
	}
	return out, nil
}

func (m *mockCatalogRepository) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.catalogs[name]) == 0 {
		return repositories.ErrNotFound
	}
	delete(m.catalogs, name)
	return nil
}

// recordingMetrics counts events
type recordingMetrics struct {
	mu     sync.Mutex
	ops    map[string]int
	hits   int
	misses int
}

func (r *recordingMetrics) RecordOperation(operation string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.ops[operation+"/"+outcome]++
}

func (r *recordingMetrics) RecordCacheHit()  { r.hits++ }
func (r *recordingMetrics) RecordCacheMiss() { r.misses++ }

const extraCatalog = `schema ExtraSceneAPI single {
  applies_to Scene
  requires NewtonSceneAPI
  attribute double extra:gravity = -9.81
}`

func newService(t *testing.T, opts ...Option) *SchemaService {
	t.Helper()
	reg, err := catalog.NewRegistry()
	require.NoError(t, err)
	return NewSchemaService(reg, opts...)
}

func TestSchemaService_WriteCatalog(t *testing.T) {
	repo := newMockCatalogRepository()
	service := newService(t, WithCatalogRepository(repo))
	ctx := context.Background()

	version, err := service.WriteCatalog(ctx, "extra", extraCatalog)
	require.NoError(t, err)
	assert.Equal(t, "v001", version)

	stored, err := repo.GetLatestVersion(ctx, "extra")
	require.NoError(t, err)
	assert.Equal(t, extraCatalog, stored.DSL)
}

func TestSchemaService_WriteCatalog_Errors(t *testing.T) {
	ctx := context.Background()
	service := newService(t, WithCatalogRepository(newMockCatalogRepository()))

	tests := []struct {
		name    string
		catalog string
		dsl     string
		want    string
	}{
		{"empty name", "", extraCatalog, "catalog name is required"},
		{"empty dsl", "extra", "", "catalog DSL is required"},
		{"syntax error", "extra", "schema {", "failed to parse catalog extra"},
		{"unknown prerequisite", "extra", "schema A single { applies_to any\n requires Missing }", "requires undefined schema: Missing"},
		{"redefines built-in schema", "extra", "schema NewtonSceneAPI single { applies_to Scene }", "schema already registered: NewtonSceneAPI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.WriteCatalog(ctx, tt.catalog, tt.dsl)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := newService(t).WriteCatalog(ctx, "extra", extraCatalog)
	assert.ErrorIs(t, err, ErrStorageNotConfigured)
}

func TestSchemaService_ValidateCatalog(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	assert.NoError(t, service.ValidateCatalog(ctx, extraCatalog))
	assert.ErrorIs(t, service.ValidateCatalog(ctx, catalog.NewtonDSL()), entities.ErrDuplicateSchema)
	assert.Error(t, service.ValidateCatalog(ctx, ""))
	assert.Error(t, service.ValidateCatalog(ctx, `schema A single { applies_to any attribute int n = 1.5 }`))
}

func TestSchemaService_ReadCatalog(t *testing.T) {
	repo := newMockCatalogRepository()
	service := newService(t, WithCatalogRepository(repo))
	ctx := context.Background()

	v1, err := service.WriteCatalog(ctx, "extra", extraCatalog)
	require.NoError(t, err)
	v2, err := service.WriteCatalog(ctx, "extra", "schema OtherAPI single { applies_to any }")
	require.NoError(t, err)

	latest, err := service.ReadCatalog(ctx, "extra", "")
	require.NoError(t, err)
	assert.Equal(t, v2, latest.Version)
	require.Len(t, latest.Schemas, 1)
	assert.Equal(t, "OtherAPI", latest.Schemas[0].Name)

	first, err := service.ReadCatalog(ctx, "extra", v1)
	require.NoError(t, err)
	require.NotNil(t, first.GetSchema("ExtraSceneAPI"))
	assert.Equal(t, -9.81, first.GetSchema("ExtraSceneAPI").Attributes[0].Fallback)

	_, err = service.ReadCatalog(ctx, "missing", "")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	versions, err := service.ListCatalogVersions(ctx, "extra", 1)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, v2, versions[0].Version)

	require.NoError(t, service.DeleteCatalog(ctx, "extra"))
	assert.ErrorIs(t, service.DeleteCatalog(ctx, "extra"), repositories.ErrNotFound)
}

func TestSchemaService_DescribeSchema(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	def, err := service.DescribeSchema(ctx, "NewtonMimicAPI")
	require.NoError(t, err)
	assert.Equal(t, "NewtonPhysicsMimicAPI", def.Alias)

	byAlias, err := service.DescribeSchema(ctx, "NewtonPhysicsMimicAPI")
	require.NoError(t, err)
	assert.Same(t, def, byAlias)

	_, err = service.DescribeSchema(ctx, "MissingAPI")
	assert.ErrorIs(t, err, entities.ErrNotFound)

	assert.Len(t, service.ListSchemas(ctx), 4)
}

func TestSchemaService_CanApplyCachesVerdicts(t *testing.T) {
	c, err := memorycache.New(&memorycache.Config{MaxSizeBytes: 1024 * 1024, DefaultTTL: time.Minute, EnableMetrics: true})
	require.NoError(t, err)
	metrics := &recordingMetrics{}
	service := newService(t, WithCache(c, time.Minute), WithMetrics(metrics))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := service.CanApply(ctx, "NewtonMimicAPI", "RevoluteJoint")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := service.CanApply(ctx, "NewtonMimicAPI", "Xform")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 2, metrics.hits)
	assert.Equal(t, 2, metrics.misses)
	assert.Equal(t, 2, c.Len())

	// unknown schemas are not cached
	_, err = service.CanApply(ctx, "MissingAPI", "Scene")
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, metrics.ops["can_apply/error"])
}

func TestSchemaService_SceneWorkflow(t *testing.T) {
	metrics := &recordingMetrics{}
	service := newService(t, WithMetrics(metrics))
	ctx := context.Background()

	_, err := service.DefinePrim(ctx, "/World/PhysicsScene", "Scene")
	require.NoError(t, err)

	require.NoError(t, service.Apply(ctx, "/World/PhysicsScene", "NewtonKaminoSceneAPI", ""))
	applied, err := service.ListApplied(ctx, "/World/PhysicsScene")
	require.NoError(t, err)
	assert.Equal(t, []string{"NewtonSceneAPI", "NewtonKaminoSceneAPI"}, applied)

	has, err := service.HasSchema(ctx, "/World/PhysicsScene", "NewtonSceneAPI")
	require.NoError(t, err)
	assert.True(t, has)

	v, err := service.Get(ctx, "/World/PhysicsScene", "NewtonSceneAPI", "newton:timeStep")
	require.NoError(t, err)
	assert.Equal(t, 0.005, v.Value)
	assert.False(t, v.Authored)

	require.NoError(t, service.Set(ctx, "/World/PhysicsScene", "NewtonSceneAPI", "newton:timeStep", 0.001))
	authored, err := service.HasAuthoredValue(ctx, "/World/PhysicsScene", "newton:timeStep")
	require.NoError(t, err)
	assert.True(t, authored)

	props, err := service.Properties(ctx, "/World/PhysicsScene")
	require.NoError(t, err)
	assert.Len(t, props, 14)

	err = service.Remove(ctx, "/World/PhysicsScene", "NewtonSceneAPI", "")
	assert.ErrorIs(t, err, entities.ErrDependency)
	require.NoError(t, service.Remove(ctx, "/World/PhysicsScene", "NewtonKaminoSceneAPI", ""))
	require.NoError(t, service.Remove(ctx, "/World/PhysicsScene", "NewtonSceneAPI", ""))

	authored, err = service.HasAuthoredValue(ctx, "/World/PhysicsScene", "newton:timeStep")
	require.NoError(t, err)
	assert.False(t, authored)

	assert.Equal(t, 1, metrics.ops["apply/ok"])
	assert.Equal(t, 1, metrics.ops["set/ok"])
	assert.Equal(t, 1, metrics.ops["remove/error"])
	assert.Equal(t, 2, metrics.ops["remove/ok"])
}

func TestSchemaService_MimicWorkflow(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	_, err := service.DefinePrim(ctx, "/World/Leader", "RevoluteJoint")
	require.NoError(t, err)
	_, err = service.DefinePrim(ctx, "/World/Follower", "RevoluteJoint")
	require.NoError(t, err)
	_, err = service.DefinePrim(ctx, "/World/Body", "Xform")
	require.NoError(t, err)

	err = service.Apply(ctx, "/World/Body", "NewtonMimicAPI", "")
	var notApplicable *entities.NotApplicableError
	require.True(t, errors.As(err, &notApplicable))
	assert.Equal(t, "Xform", notApplicable.BaseType)

	require.NoError(t, service.Apply(ctx, "/World/Follower", "NewtonMimicAPI", ""))
	require.NoError(t, service.SetTargets(ctx, "/World/Follower", "NewtonMimicAPI", "newton:mimicJoint", []string{"/World/Leader", "/World/Leader"}))

	targets, err := service.GetTargets(ctx, "/World/Follower", "NewtonMimicAPI", "newton:mimicJoint")
	require.NoError(t, err)
	assert.Equal(t, []string{"/World/Leader"}, targets)
}

func TestSchemaService_UnknownPrim(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, service.Apply(ctx, "/Missing", "NewtonSceneAPI", ""), entities.ErrNotFound)
	_, err := service.Get(ctx, "/Missing", "NewtonSceneAPI", "newton:timeStep")
	assert.ErrorIs(t, err, entities.ErrNotFound)
	_, err = service.ListApplied(ctx, "/Missing")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestSchemaService_ReloadCatalog(t *testing.T) {
	c, err := memorycache.New(&memorycache.Config{MaxSizeBytes: 1024 * 1024, DefaultTTL: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	repo := newMockCatalogRepository()
	service := newService(t, WithCatalogRepository(repo), WithCache(c, time.Minute))
	ctx := context.Background()

	_, err = service.ReloadCatalog(ctx, "extra")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = service.DefinePrim(ctx, "/World/PhysicsScene", "Scene")
	require.NoError(t, err)
	require.NoError(t, service.Apply(ctx, "/World/PhysicsScene", "NewtonSceneAPI", ""))

	_, err = service.CanApply(ctx, "NewtonSceneAPI", "Scene")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	version, err := service.WriteCatalog(ctx, "extra", extraCatalog)
	require.NoError(t, err)

	before := service.Registry()
	reloaded, err := service.ReloadCatalog(ctx, "extra")
	require.NoError(t, err)
	assert.Equal(t, version, reloaded)
	assert.NotSame(t, before, service.Registry())
	assert.True(t, service.Registry().Frozen())
	assert.Equal(t, 0, c.Len())

	// verdicts computed after the reload live under the next generation
	_, err = service.CanApply(ctx, "NewtonSceneAPI", "Scene")
	require.NoError(t, err)
	_, found := c.Get(ctx, "1|NewtonSceneAPI|Scene")
	assert.True(t, found)
	_, found = c.Get(ctx, "0|NewtonSceneAPI|Scene")
	assert.False(t, found)

	def, err := service.DescribeSchema(ctx, "ExtraSceneAPI")
	require.NoError(t, err)
	assert.Equal(t, []string{"NewtonSceneAPI"}, def.Prerequisites)

	// prims applied before the reload keep working
	v, err := service.Get(ctx, "/World/PhysicsScene", "NewtonSceneAPI", "newton:timeStep")
	require.NoError(t, err)
	assert.Equal(t, 0.005, v.Value)

	require.NoError(t, service.Apply(ctx, "/World/PhysicsScene", "ExtraSceneAPI", ""))
	v, err = service.Get(ctx, "/World/PhysicsScene", "ExtraSceneAPI", "extra:gravity")
	require.NoError(t, err)
	assert.Equal(t, -9.81, v.Value)
}

func TestSchemaService_ReloadCatalog_KeepsRegistryOnConflict(t *testing.T) {
	repo := newMockCatalogRepository()
	service := newService(t, WithCatalogRepository(repo))
	ctx := context.Background()

	// stored directly so the write-time validation is bypassed
	_, err := repo.Create(ctx, "clash", "schema NewtonSceneAPI single {\n  applies_to Scene\n}")
	require.NoError(t, err)

	before := service.Registry()
	_, err = service.ReloadCatalog(ctx, "clash")
	assert.Error(t, err)
	assert.Same(t, before, service.Registry())
}

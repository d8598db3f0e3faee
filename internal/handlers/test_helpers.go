package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asakaida/schemareg/internal/entities"
	"github.com/asakaida/schemareg/internal/repositories"
	"github.com/asakaida/schemareg/internal/services"
)

// Mock SchemaService. Methods without a func field panic through the nil embedded interface.
type mockSchemaService struct {
	services.SchemaServiceInterface
	writeCatalogFunc func(ctx context.Context, name string, dsl string) (string, error)
	canApplyFunc     func(ctx context.Context, name string, baseType string) (bool, error)
	applyFunc        func(ctx context.Context, path string, name string, instance string) error
	setFunc          func(ctx context.Context, path string, schemaID string, key string, value interface{}) error
}

func (m *mockSchemaService) WriteCatalog(ctx context.Context, name string, dsl string) (string, error) {
	if m.writeCatalogFunc != nil {
		return m.writeCatalogFunc(ctx, name, dsl)
	}
	return "v1", nil
}

func (m *mockSchemaService) CanApply(ctx context.Context, name string, baseType string) (bool, error) {
	if m.canApplyFunc != nil {
		return m.canApplyFunc(ctx, name, baseType)
	}
	return false, nil
}

func (m *mockSchemaService) Apply(ctx context.Context, path string, name string, instance string) error {
	if m.applyFunc != nil {
		return m.applyFunc(ctx, path, name, instance)
	}
	return nil
}

func (m *mockSchemaService) Set(ctx context.Context, path string, schemaID string, key string, value interface{}) error {
	if m.setFunc != nil {
		return m.setFunc(ctx, path, schemaID, key, value)
	}
	return nil
}

// memoryCatalogRepository keeps catalog versions in memory
type memoryCatalogRepository struct {
	mu       sync.Mutex
	catalogs map[string][]*entities.Catalog
	seq      int
}

func newMemoryCatalogRepository() *memoryCatalogRepository {
	return &memoryCatalogRepository{catalogs: make(map[string][]*entities.Catalog)}
}

func (m *memoryCatalogRepository) Create(ctx context.Context, name string, dsl string) (string, error) {
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

func (m *memoryCatalogRepository) GetLatestVersion(ctx context.Context, name string) (*entities.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.catalogs[name]
	if len(versions) == 0 {
		return nil, repositories.ErrNotFound
	}
	return versions[len(versions)-1], nil
}

func (m *memoryCatalogRepository) GetByVersion(ctx context.Context, name string, version string) (*entities.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.catalogs[name] {
		if c.Version == version {
			return c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memoryCatalogRepository) ListVersions(ctx context.Context, name string, limit int) ([]*entities.CatalogVersion, error) {
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

func (m *memoryCatalogRepository) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.catalogs[name]) == 0 {
		return repositories.ErrNotFound
	}
	delete(m.catalogs, name)
	return nil
}

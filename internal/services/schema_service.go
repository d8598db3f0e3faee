// Package services exposes the registry, resolver and catalog storage to transports.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asakaida/schemareg/internal/catalog"
	"github.com/asakaida/schemareg/internal/entities"
	"github.com/asakaida/schemareg/internal/logging"
	"github.com/asakaida/schemareg/internal/repositories"
	"github.com/asakaida/schemareg/internal/services/parser"
	"github.com/asakaida/schemareg/internal/services/registry"
	"github.com/asakaida/schemareg/internal/services/resolver"
	"github.com/asakaida/schemareg/internal/stage"
	"github.com/asakaida/schemareg/pkg/cache"
)

// ErrStorageNotConfigured is returned by catalog document operations without a repository
var ErrStorageNotConfigured = errors.New("catalog storage is not configured")

// SchemaServiceInterface defines the caller API of the schema registry
type SchemaServiceInterface interface {
	// Catalog documents
	WriteCatalog(ctx context.Context, name string, dsl string) (string, error)
	ValidateCatalog(ctx context.Context, dsl string) error
	ReadCatalog(ctx context.Context, name string, version string) (*entities.Catalog, error)
	ListCatalogVersions(ctx context.Context, name string, limit int) ([]*entities.CatalogVersion, error)
	DeleteCatalog(ctx context.Context, name string) error

	// Registry
	DescribeSchema(ctx context.Context, name string) (*entities.SchemaDefinition, error)
	ListSchemas(ctx context.Context) []*entities.SchemaDefinition
	CanApply(ctx context.Context, name string, baseType string) (bool, error)

	// Prims
	DefinePrim(ctx context.Context, path string, typeName string) (*stage.Prim, error)
	Apply(ctx context.Context, path string, name string, instance string) error
	Remove(ctx context.Context, path string, name string, instance string) error
	HasSchema(ctx context.Context, path string, schemaID string) (bool, error)
	ListApplied(ctx context.Context, path string) ([]string, error)

	// Values
	Get(ctx context.Context, path string, schemaID string, key string) (*entities.AttributeValue, error)
	Set(ctx context.Context, path string, schemaID string, key string, value interface{}) error
	HasAuthoredValue(ctx context.Context, path string, key string) (bool, error)
	GetTargets(ctx context.Context, path string, schemaID string, key string) ([]string, error)
	SetTargets(ctx context.Context, path string, schemaID string, key string, targets []string) error
	Properties(ctx context.Context, path string) ([]*entities.AttributeValue, error)
}

// MetricsRecorder receives operation and cache events
type MetricsRecorder interface {
	RecordOperation(operation string, err error)
	RecordCacheHit()
	RecordCacheMiss()
}

// SchemaService handles catalog management and schema application
type SchemaService struct {
	catalogRepo repositories.CatalogRepository
	installed   atomic.Pointer[installedRegistry]
	reloadMu    sync.Mutex
	extra       []*entities.Catalog
	resolver    *resolver.Resolver
	stage       *stage.Stage
	cache       cache.Cache
	cacheTTL    time.Duration
	metrics     MetricsRecorder
}

// Option configures a SchemaService
type Option func(*SchemaService)

// WithCatalogRepository enables catalog document operations
func WithCatalogRepository(repo repositories.CatalogRepository) Option {
	return func(s *SchemaService) {
		s.catalogRepo = repo
	}
}

// WithCache caches canApply verdicts. Verdicts are only cached once the registry is frozen.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *SchemaService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithMetrics records operation outcomes
func WithMetrics(m MetricsRecorder) Option {
	return func(s *SchemaService) {
		s.metrics = m
	}
}

// WithExtraCatalogs names the catalogs installed next to the built-in one when the registry is rebuilt
func WithExtraCatalogs(catalogs ...*entities.Catalog) Option {
	return func(s *SchemaService) {
		s.extra = catalogs
	}
}

// WithStage uses an existing stage instead of an empty one
func WithStage(st *stage.Stage) Option {
	return func(s *SchemaService) {
		s.stage = st
	}
}

// NewSchemaService creates a new SchemaService over a populated registry
func NewSchemaService(reg *registry.Registry, opts ...Option) *SchemaService {
	s := &SchemaService{
		resolver: resolver.New(),
	}
	s.installed.Store(&installedRegistry{registry: reg})
	for _, opt := range opts {
		opt(s)
	}
	if s.stage == nil {
		s.stage = stage.New()
	}
	return s
}

// installedRegistry pairs a registry with the number of reloads before it.
// Cached verdicts are keyed by generation.
type installedRegistry struct {
	registry   *registry.Registry
	generation uint64
}

func (s *SchemaService) current() *registry.Registry {
	return s.installed.Load().registry
}

// Registry returns the registry currently serving lookups
func (s *SchemaService) Registry() *registry.Registry {
	return s.current()
}

// ReloadCatalog rebuilds the registry from the built-in catalog, the extra catalogs and the
// latest stored version of the named catalog, then swaps it in.
// Prims keep the definitions captured when their schemas were applied.
func (s *SchemaService) ReloadCatalog(ctx context.Context, name string) (string, error) {
	if s.catalogRepo == nil {
		return "", ErrStorageNotConfigured
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	stored, err := s.catalogRepo.GetLatestVersion(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to get catalog: %w", err)
	}

	parsed, err := catalog.Load(name, stored.DSL, parser.WithKnownSchemas(catalog.SchemaNames(s.baseCatalogs()...)...))
	if err != nil {
		return "", err
	}
	parsed.Version = stored.Version
	parsed.CreatedAt = stored.CreatedAt

	reg, err := s.buildRegistry(parsed)
	if err != nil {
		return "", fmt.Errorf("failed to build registry for %s@%s: %w", name, stored.Version, err)
	}

	prev := s.installed.Load()
	s.installed.Store(&installedRegistry{registry: reg, generation: prev.generation + 1})
	if s.cache != nil {
		if err := s.cache.Clear(ctx); err != nil {
			logging.Warn().Err(err).Msg("failed to clear applicability cache")
		}
	}

	logging.Info().
		Str("catalog", name).
		Str("version", stored.Version).
		Int("schemas", len(reg.Names())).
		Msg("registry reloaded")
	return stored.Version, nil
}

// loadInstallable parses a document and checks it registers cleanly next to the base catalogs
func (s *SchemaService) loadInstallable(name, dsl string) (*entities.Catalog, error) {
	parsed, err := catalog.Load(name, dsl, parser.WithKnownSchemas(catalog.SchemaNames(s.baseCatalogs()...)...))
	if err != nil {
		return nil, err
	}
	if _, err := s.buildRegistry(parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func (s *SchemaService) buildRegistry(stored *entities.Catalog) (*registry.Registry, error) {
	return catalog.NewRegistry(append(append([]*entities.Catalog{}, s.extra...), stored)...)
}

func (s *SchemaService) baseCatalogs() []*entities.Catalog {
	base := make([]*entities.Catalog, 0, len(s.extra)+1)
	if newton, err := catalog.Newton(); err == nil {
		base = append(base, newton)
	}
	return append(base, s.extra...)
}

// WriteCatalog checks that a catalog document installs next to the built-in and extra catalogs,
// then stores it as a new version. Stored versions are installed by ReloadCatalog.
func (s *SchemaService) WriteCatalog(ctx context.Context, name string, dsl string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("catalog name is required")
	}
	if dsl == "" {
		return "", fmt.Errorf("catalog DSL is required")
	}
	if s.catalogRepo == nil {
		return "", ErrStorageNotConfigured
	}

	if _, err := s.loadInstallable(name, dsl); err != nil {
		return "", err
	}

	version, err := s.catalogRepo.Create(ctx, name, dsl)
	if err != nil {
		return "", fmt.Errorf("failed to create catalog version: %w", err)
	}

	logging.Info().Str("catalog", name).Str("version", version).Msg("catalog version stored")
	return version, nil
}

// ValidateCatalog checks a DSL document without storing it
func (s *SchemaService) ValidateCatalog(ctx context.Context, dsl string) error {
	if dsl == "" {
		return fmt.Errorf("catalog DSL is required")
	}
	_, err := s.loadInstallable("validate", dsl)
	return err
}

// ReadCatalog retrieves a stored catalog with its schemas parsed.
// version="" means the latest version.
func (s *SchemaService) ReadCatalog(ctx context.Context, name string, version string) (*entities.Catalog, error) {
	if name == "" {
		return nil, fmt.Errorf("catalog name is required")
	}
	if s.catalogRepo == nil {
		return nil, ErrStorageNotConfigured
	}

	var stored *entities.Catalog
	var err error
	if version == "" {
		stored, err = s.catalogRepo.GetLatestVersion(ctx, name)
	} else {
		stored, err = s.catalogRepo.GetByVersion(ctx, name, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	parsed, err := catalog.Load(name, stored.DSL, parser.WithKnownSchemas(catalog.SchemaNames(s.baseCatalogs()...)...))
	if err != nil {
		return nil, err
	}

	// Preserve metadata from storage
	parsed.Version = stored.Version
	parsed.CreatedAt = stored.CreatedAt
	return parsed, nil
}

// ListCatalogVersions lists stored versions, newest first
func (s *SchemaService) ListCatalogVersions(ctx context.Context, name string, limit int) ([]*entities.CatalogVersion, error) {
	if name == "" {
		return nil, fmt.Errorf("catalog name is required")
	}
	if s.catalogRepo == nil {
		return nil, ErrStorageNotConfigured
	}
	versions, err := s.catalogRepo.ListVersions(ctx, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog versions: %w", err)
	}
	return versions, nil
}

// DeleteCatalog deletes every stored version of a catalog
func (s *SchemaService) DeleteCatalog(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("catalog name is required")
	}
	if s.catalogRepo == nil {
		return ErrStorageNotConfigured
	}
	if err := s.catalogRepo.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete catalog: %w", err)
	}
	return nil
}

// DescribeSchema looks a schema up by name, then by alias
func (s *SchemaService) DescribeSchema(ctx context.Context, name string) (*entities.SchemaDefinition, error) {
	def, err := s.current().Lookup(name)
	if err == nil {
		return def, nil
	}
	if byAlias, aliasErr := s.current().LookupAlias(name); aliasErr == nil {
		return byAlias, nil
	}
	return nil, err
}

// ListSchemas returns every registered definition in registration order
func (s *SchemaService) ListSchemas(ctx context.Context) []*entities.SchemaDefinition {
	names := s.current().Names()
	defs := make([]*entities.SchemaDefinition, 0, len(names))
	for _, name := range names {
		if def, err := s.current().Lookup(name); err == nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// CanApply reports whether the schema and its prerequisites apply to baseType
func (s *SchemaService) CanApply(ctx context.Context, name string, baseType string) (bool, error) {
	installed := s.installed.Load()
	reg := installed.registry
	cacheable := s.cache != nil && reg.Frozen()
	key := fmt.Sprintf("%d|%s|%s", installed.generation, name, baseType)

	if cacheable {
		if v, ok := s.cache.Get(ctx, key); ok {
			s.recordCache(true)
			return v.(bool), nil
		}
		s.recordCache(false)
	}

	allowed, err := reg.CanApply(name, baseType)
	s.record("can_apply", err)
	if err != nil {
		return false, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, key, allowed, s.cacheTTL); err != nil {
			logging.Warn().Err(err).Str("key", key).Msg("failed to cache applicability verdict")
		}
	}
	return allowed, nil
}

// DefinePrim creates a prim, or returns the existing one when the type matches
func (s *SchemaService) DefinePrim(ctx context.Context, path string, typeName string) (*stage.Prim, error) {
	prim, err := s.stage.DefinePrim(path, typeName)
	s.record("define_prim", err)
	return prim, err
}

// Apply records a schema instance, and its missing prerequisites, on a prim
func (s *SchemaService) Apply(ctx context.Context, path string, name string, instance string) error {
	prim, err := s.stage.GetPrim(path)
	if err != nil {
		return err
	}
	err = s.current().Apply(prim, name, instance)
	s.record("apply", err)
	if err != nil {
		return err
	}

	logging.Debug().
		Str("prim", path).
		Str("schema", entities.SchemaID(name, instance)).
		Msg("schema applied")
	return nil
}

// Remove drops a schema instance and its authored values from a prim
func (s *SchemaService) Remove(ctx context.Context, path string, name string, instance string) error {
	prim, err := s.stage.GetPrim(path)
	if err != nil {
		return err
	}
	err = s.current().Remove(prim, name, instance)
	s.record("remove", err)
	return err
}

// HasSchema reports whether the schema id is applied to the prim
func (s *SchemaService) HasSchema(ctx context.Context, path string, schemaID string) (bool, error) {
	prim, err := s.stage.GetPrim(path)
	if err != nil {
		return false, err
	}
	return s.current().HasSchema(prim, schemaID), nil
}

// ListApplied returns the applied schema ids in application order
func (s *SchemaService) ListApplied(ctx context.Context, path string) ([]string, error) {
	prim, err := s.stage.GetPrim(path)
	if err != nil {
		return nil, err
	}
	return s.current().AppliedSchemas(prim), nil
}

// Get resolves an attribute to its authored value or fallback
func (s *SchemaService) Get(ctx context.Context, path string, schemaID string, key string) (*entities.AttributeValue, error) {
	prim, err := s.stage.GetPrim(path)
	if err != nil {
		return nil, err
	}
	v, err := s.resolver.Resolve(prim, schemaID, key)
	s.record("get", err)
	return v, err
}

// Set coerces and authors an attribute value
func (s *SchemaService) Set(ctx context.Context, path string, schemaID string, key string, value interface{}) error {
	prim, err := s.stage.GetPrim(path)
	if err != nil {
		return err
	}
	err = s.resolver.Set(prim, schemaID, key, value)
	s.record("set", err)
	return err
}

// HasAuthoredValue reports whether key was explicitly written on the prim
func (s *SchemaService) HasAuthoredValue(ctx context.Context, path string, key string) (bool, error) {
	prim, err := s.stage.GetPrim(path)
	if err != nil {
		return false, err
	}
	return s.resolver.HasAuthoredValue(prim, key), nil
}

// GetTargets returns relationship targets
func (s *SchemaService) GetTargets(ctx context.Context, path string, schemaID string, key string) ([]string, error) {
	prim, err := s.stage.GetPrim(path)
	if err != nil {
		return nil, err
	}
	targets, err := s.resolver.GetTargets(prim, schemaID, key)
	s.record("get_targets", err)
	return targets, err
}

// SetTargets authors relationship targets
func (s *SchemaService) SetTargets(ctx context.Context, path string, schemaID string, key string, targets []string) error {
	prim, err := s.stage.GetPrim(path)
	if err != nil {
		return err
	}
	err = s.resolver.SetTargets(prim, schemaID, key, targets)
	s.record("set_targets", err)
	return err
}

// Properties resolves every attribute contributed by the prim's applied schemas
func (s *SchemaService) Properties(ctx context.Context, path string) ([]*entities.AttributeValue, error) {
	prim, err := s.stage.GetPrim(path)
	if err != nil {
		return nil, err
	}
	return s.resolver.Properties(prim), nil
}

func (s *SchemaService) record(operation string, err error) {
	if s.metrics != nil {
		s.metrics.RecordOperation(operation, err)
	}
}

func (s *SchemaService) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit()
	} else {
		s.metrics.RecordCacheMiss()
	}
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/asakaida/schemareg/internal/entities"
	"github.com/asakaida/schemareg/internal/repositories"
)

// PostgresCatalogRepository implements CatalogRepository using PostgreSQL
type PostgresCatalogRepository struct {
	db       *sql.DB
	versions *versionSource
	now      func() time.Time
}

// NewPostgresCatalogRepository creates a new PostgreSQL catalog repository
func NewPostgresCatalogRepository(db *sql.DB) repositories.CatalogRepository {
	return &PostgresCatalogRepository{
		db:       db,
		versions: newVersionSource(),
		now:      time.Now,
	}
}

// Create stores a new catalog version
func (r *PostgresCatalogRepository) Create(ctx context.Context, name string, dsl string) (string, error) {
	now := r.now()
	version, err := r.versions.next(now)
	if err != nil {
		return "", fmt.Errorf("failed to generate catalog version: %w", err)
	}

	query := `
		INSERT INTO catalogs (name, version, catalog_dsl, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, name, version, dsl, now); err != nil {
		return "", fmt.Errorf("failed to create catalog: %w", err)
	}
	return version, nil
}

// GetLatestVersion retrieves the most recent catalog version
func (r *PostgresCatalogRepository) GetLatestVersion(ctx context.Context, name string) (*entities.Catalog, error) {
	query := `
		SELECT version, catalog_dsl, created_at
		FROM catalogs
		WHERE name = $1
		ORDER BY version DESC
		LIMIT 1
	`
	catalog, err := r.scanCatalog(r.db.QueryRowContext(ctx, query, name), name)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}
	return catalog, err
}

// GetByVersion retrieves a specific catalog version
func (r *PostgresCatalogRepository) GetByVersion(ctx context.Context, name string, version string) (*entities.Catalog, error) {
	query := `
		SELECT version, catalog_dsl, created_at
		FROM catalogs
		WHERE name = $1 AND version = $2
	`
	catalog, err := r.scanCatalog(r.db.QueryRowContext(ctx, query, name, version), name)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("catalog %s version %s: %w", name, version, err)
	}
	return catalog, err
}

// ListVersions lists catalog versions, newest first. A non-positive limit lists all.
func (r *PostgresCatalogRepository) ListVersions(ctx context.Context, name string, limit int) ([]*entities.CatalogVersion, error) {
	query := `
		SELECT version, created_at
		FROM catalogs
		WHERE name = $1
		ORDER BY version DESC
	`
	args := []interface{}{name}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog versions: %w", err)
	}
	defer rows.Close()

	var versions []*entities.CatalogVersion
	for rows.Next() {
		v := &entities.CatalogVersion{}
		if err := rows.Scan(&v.Version, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog versions: %w", err)
	}
	return versions, nil
}

// Delete deletes every version of a catalog
func (r *PostgresCatalogRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM catalogs WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete catalog: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("catalog %s: %w", name, repositories.ErrNotFound)
	}
	return nil
}

func (r *PostgresCatalogRepository) scanCatalog(row *sql.Row, name string) (*entities.Catalog, error) {
	catalog := &entities.Catalog{Name: name}
	err := row.Scan(&catalog.Version, &catalog.DSL, &catalog.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}
	// Schemas are populated by the parser in the service layer
	return catalog, nil
}

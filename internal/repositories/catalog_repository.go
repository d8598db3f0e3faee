package repositories

import (
	"context"
	"errors"

	"github.com/asakaida/schemareg/internal/entities"
)

// ErrNotFound is returned when a catalog or catalog version does not exist
var ErrNotFound = errors.New("not found")

// CatalogRepository stores versioned catalog documents.
// Every write creates a new version; versions are never updated in place.
type CatalogRepository interface {
	// Create stores a new version of the named catalog and returns the version ID
	Create(ctx context.Context, name string, dsl string) (string, error)

	// GetLatestVersion retrieves the most recent version of a catalog
	GetLatestVersion(ctx context.Context, name string) (*entities.Catalog, error)

	// GetByVersion retrieves a specific catalog version
	GetByVersion(ctx context.Context, name string, version string) (*entities.Catalog, error)

	// ListVersions lists catalog versions, newest first
	ListVersions(ctx context.Context, name string, limit int) ([]*entities.CatalogVersion, error)

	// Delete deletes every version of a catalog
	Delete(ctx context.Context, name string) error
}

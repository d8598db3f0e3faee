package postgres

import (
	"database/sql"
	"testing"

	_ "github.com/lib/pq"

	"github.com/asakaida/schemareg/internal/infrastructure/config"
	"github.com/asakaida/schemareg/internal/infrastructure/database"
)

// SetupTestDB connects to the test database and runs migrations.
// The test is skipped when no database is reachable.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if err := config.InitConfig("test"); err != nil {
		t.Fatalf("Failed to init config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.Password == "" {
		t.Skip("DB_PASSWORD not set, skipping PostgreSQL integration test")
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}

	if err := pg.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return pg.DB
}

// CleanupTestDB removes test data and closes the connection
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()

	if _, err := db.Exec("DELETE FROM catalogs"); err != nil {
		t.Logf("Warning: Failed to clean up table catalogs: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Logf("Warning: Failed to close database: %v", err)
	}
}

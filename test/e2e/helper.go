package e2e

import (
	"context"
	"database/sql"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/asakaida/schemareg/internal/catalog"
	"github.com/asakaida/schemareg/internal/handlers"
	"github.com/asakaida/schemareg/internal/infrastructure/config"
	"github.com/asakaida/schemareg/internal/repositories/postgres"
	"github.com/asakaida/schemareg/internal/services"
	"github.com/asakaida/schemareg/pkg/cache/memorycache"
)

const bufSize = 1024 * 1024

// E2ETestServer represents an E2E test server backed by the test database
type E2ETestServer struct {
	Server   *grpc.Server
	Client   *handlers.Client
	Service  *services.SchemaService
	Conn     *grpc.ClientConn
	DB       *sql.DB
	ConnStr  string
	Listener *bufconn.Listener
	cache    *memorycache.Cache
}

// SetupE2ETest sets up an E2E test environment.
// The test is skipped when the test database is not reachable.
func SetupE2ETest(t *testing.T) *E2ETestServer {
	t.Helper()

	db := postgres.SetupTestDB(t)
	cleanupDatabase(t, db)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	reg, err := catalog.NewRegistry()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	c, err := memorycache.New(&memorycache.Config{
		MaxSizeBytes:  1024 * 1024,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	service := services.NewSchemaService(reg,
		services.WithCatalogRepository(postgres.NewPostgresCatalogRepository(db)),
		services.WithCache(c, time.Minute),
	)

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	handlers.RegisterSchemaRegistryServer(server, handlers.NewSchemaRegistryHandler(service))

	go func() {
		if err := server.Serve(listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	bufDialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}

	conn, err := grpc.NewClient(
		"passthrough://bufconn",
		grpc.WithContextDialer(bufDialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to create client connection: %v", err)
	}

	return &E2ETestServer{
		Server:   server,
		Client:   handlers.NewClient(conn),
		Service:  service,
		Conn:     conn,
		DB:       db,
		ConnStr:  cfg.Database.ConnectionString(),
		Listener: listener,
		cache:    c,
	}
}

// Teardown cleans up the E2E test environment
func (e *E2ETestServer) Teardown(t *testing.T) {
	t.Helper()

	if e.Conn != nil {
		e.Conn.Close()
	}
	if e.Server != nil {
		e.Server.Stop()
	}
	if e.Listener != nil {
		e.Listener.Close()
	}
	if e.cache != nil {
		e.cache.Close()
	}
	if e.DB != nil {
		postgres.CleanupTestDB(t, e.DB)
	}
}

// Call invokes a SchemaRegistry method with a map request
func (e *E2ETestServer) Call(ctx context.Context, t *testing.T, method string, fields map[string]interface{}) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("failed to build %s request: %v", method, err)
	}
	return e.Client.Call(ctx, method, req)
}

// MustCall is Call that fails the test on error
func (e *E2ETestServer) MustCall(ctx context.Context, t *testing.T, method string, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	resp, err := e.Call(ctx, t, method, fields)
	if err != nil {
		t.Fatalf("%s failed: %v", method, err)
	}
	return resp
}

// cleanupDatabase removes all catalog versions from the test database
func cleanupDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "DELETE FROM catalogs"); err != nil {
		t.Logf("warning: failed to clean up table catalogs: %v", err)
	}
}

package e2e

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/asakaida/schemareg/internal/infrastructure/notify"
)

// TestScenario_CatalogVersioning stores two catalog versions and follows them with a watcher
func TestScenario_CatalogVersioning(t *testing.T) {
	testServer := SetupE2ETest(t)
	defer testServer.Teardown(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	watcher := notify.NewCatalogWatcher(testServer.DB, testServer.ConnStr, "drives", time.Minute)
	reloaded := make(chan string, 4)
	watcher.OnChange(func(version string) {
		v, err := testServer.Service.ReloadCatalog(context.Background(), "drives")
		if err != nil {
			t.Errorf("reload failed: %v", err)
			return
		}
		if v != version {
			t.Logf("reloaded %s while notified of %s", v, version)
		}
		reloaded <- v
	})
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	t.Log("Step 1: write v1")
	v1Resp := testServer.MustCall(ctx, t, "WriteCatalog", map[string]interface{}{
		"name": "drives",
		"dsl": `schema DriveAPI single {
  applies_to RevoluteJoint | PrismaticJoint
  attribute double drive:stiffness = 0 range [0, *]
}`,
	})
	v1 := v1Resp.GetFields()["version"].GetStringValue()
	if len(v1) != 26 {
		t.Fatalf("expected a ULID version, got %q", v1)
	}

	select {
	case got := <-reloaded:
		if got != v1 {
			t.Errorf("expected reload of %s, got %s", v1, got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for the v1 notification")
	}

	resp := testServer.MustCall(ctx, t, "CanApply", map[string]interface{}{"schema": "DriveAPI", "type": "RevoluteJoint"})
	if !resp.GetFields()["applicable"].GetBoolValue() {
		t.Error("expected DriveAPI to apply to RevoluteJoint")
	}

	t.Log("Step 2: write v2 adding damping and prismatic removal")
	v2Resp := testServer.MustCall(ctx, t, "WriteCatalog", map[string]interface{}{
		"name": "drives",
		"dsl": `schema DriveAPI single {
  version 2
  applies_to RevoluteJoint
  attribute double drive:stiffness = 0 range [0, *]
  attribute double drive:damping = 0 range [0, *]
}`,
	})
	v2 := v2Resp.GetFields()["version"].GetStringValue()
	if v2 <= v1 {
		t.Fatalf("expected v2 %s to sort after v1 %s", v2, v1)
	}

	select {
	case got := <-reloaded:
		if got != v2 {
			t.Errorf("expected reload of %s, got %s", v2, got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for the v2 notification")
	}

	// cached verdicts from v1 are dropped on reload
	resp = testServer.MustCall(ctx, t, "CanApply", map[string]interface{}{"schema": "DriveAPI", "type": "PrismaticJoint"})
	if resp.GetFields()["applicable"].GetBoolValue() {
		t.Error("expected DriveAPI v2 not to apply to PrismaticJoint")
	}

	resp = testServer.MustCall(ctx, t, "DescribeSchema", map[string]interface{}{"schema": "DriveAPI"})
	if n := len(resp.GetFields()["attributes"].GetListValue().GetValues()); n != 2 {
		t.Errorf("expected 2 attributes in v2, got %d", n)
	}

	t.Log("Step 3: read both versions back")
	resp = testServer.MustCall(ctx, t, "ReadCatalog", map[string]interface{}{"name": "drives", "version": v1})
	if resp.GetFields()["version"].GetStringValue() != v1 {
		t.Errorf("expected version %s, got %v", v1, resp.GetFields()["version"])
	}

	resp = testServer.MustCall(ctx, t, "ListCatalogVersions", map[string]interface{}{"name": "drives"})
	versions := resp.GetFields()["versions"].GetListValue().GetValues()
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if got := versions[0].GetStructValue().GetFields()["version"].GetStringValue(); got != v2 {
		t.Errorf("expected newest version %s first, got %s", v2, got)
	}

	_, err := testServer.Call(ctx, t, "ReadCatalog", map[string]interface{}{"name": "drives", "version": "01ARZ3NDEKTSV4RRFFQ69G5FAV"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound for unknown version, got %v", err)
	}
}

package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"shopassist/internal/domain"
)

func TestOpen_WhenDriverUnknown_ShouldReturnError(t *testing.T) {
	_, err := Open(context.Background(), domain.CatalogConfig{Driver: "redis"}, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Errorf("want unknown driver error, got %v", err)
	}
}

func TestOpen_WhenMemoryDriverWithSeed_ShouldLoadProducts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := WriteSeedFile(path, sampleProducts()); err != nil {
		t.Fatal(err)
	}
	store, err := Open(context.Background(), domain.CatalogConfig{Driver: DriverMemory, SeedFile: path}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close(context.Background())

	got, _ := store.FindByNameSubstring(context.Background(), "hero", 5)
	if len(got) != 1 {
		t.Errorf("want 1 product, got %d", len(got))
	}
}

func TestOpen_WhenSQLDriver_ShouldCreateSchema(t *testing.T) {
	store, err := Open(context.Background(), domain.CatalogConfig{Driver: DriverSQL, URI: "file:catalog_open.db?mode=memory&cache=shared"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close(context.Background())
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestUnavailable_ShouldMatchSentinelAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := unavailable("find products", cause)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, cause) {
		t.Errorf("want both sentinel and cause in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "find products") {
		t.Errorf("want op in message, got %v", err)
	}
}

// =============================================================================
// Mongo helpers (no server needed)
// =============================================================================

func TestNameFilter_ShouldQuoteRegexMetacharacters(t *testing.T) {
	f := nameFilter("c++ (pro)")
	inner := f["name"].(bson.M)
	if inner["$regex"] != `c\+\+ \(pro\)` {
		t.Errorf("unexpected regex %v", inner["$regex"])
	}
	if inner["$options"] != "i" {
		t.Errorf("want case-insensitive option, got %v", inner["$options"])
	}
}

func TestDatabaseFromURI(t *testing.T) {
	cases := map[string]string{
		"mongodb://localhost:27025/store":      "store",
		"mongodb://localhost:27017/shop?tls=1": "shop",
		"mongodb://localhost:27017":            defaultMongoDatabase,
		"mongodb://localhost:27017/":           defaultMongoDatabase,
	}
	for uri, want := range cases {
		if got := databaseFromURI(uri); got != want {
			t.Errorf("databaseFromURI(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestNewMongoStore_WhenURIEmpty_ShouldReturnError(t *testing.T) {
	if _, err := NewMongoStore(context.Background(), "", "", "", 0); err == nil {
		t.Error("expected error for empty uri")
	}
}

func TestNewMongoStore_WhenURIMalformed_ShouldReturnErrUnavailable(t *testing.T) {
	_, err := NewMongoStore(context.Background(), "not-a-mongo-uri", "", "", 0)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("want ErrUnavailable, got %v", err)
	}
}

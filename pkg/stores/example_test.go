package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/convoyops/convoy/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	// Create store configuration
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	// Initialize the database connection
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	// Store is now ready to use
	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_PutInvocation demonstrates caching a module result.
func ExampleSQLiteStore_PutInvocation() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	// Cache a module invocation result for ten minutes
	args := map[string]interface{}{"name": "nginx", "state": "present"}
	inv := &stores.CachedInvocation{
		Key:        stores.InvocationKey("/usr/lib/modules/pkg", args, "web1"),
		Executable: "/usr/lib/modules/pkg",
		Host:       "web1",
		Result:     `{"changed":true,"name":"nginx"}`,
		TTL:        600,
	}

	if err := store.PutInvocation(ctx, inv); err != nil {
		log.Fatal(err)
	}

	// A repeated invocation with the same arguments hits the cache
	retrieved, err := store.GetInvocation(ctx, inv.Key)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Executable: %s, Host: %s\n", retrieved.Executable, retrieved.Host)
	// Output: Executable: /usr/lib/modules/pkg, Host: web1
}

// ExampleSQLiteStore_PutHostVars demonstrates caching resolved host variables.
func ExampleSQLiteStore_PutHostVars() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	hv := &stores.CachedHostVars{
		Host:      "web1.example.com",
		Vars:      `{"http_port":8080}`,
		SourceSet: "static.yml",
		TTL:       300,
	}

	if err := store.PutHostVars(ctx, hv); err != nil {
		log.Fatal(err)
	}

	retrieved, err := store.GetHostVars(ctx, "web1.example.com")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Host: %s, Vars: %s\n", retrieved.Host, retrieved.Vars)
	// Output: Host: web1.example.com, Vars: {"http_port":8080}
}

// ExampleSQLiteStore_Purge demonstrates emptying the cache.
func ExampleSQLiteStore_Purge() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	inv := &stores.CachedInvocation{
		Key:        "example-key",
		Executable: "/usr/lib/modules/ping",
		Result:     `{"changed":false}`,
	}
	_ = store.PutInvocation(ctx, inv)

	purged, err := store.Purge(ctx, nil)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Purged %d entries\n", purged)
	// Output: Purged 1 entries
}

// Package dbtest opens throwaway migrated sqlite databases for repository tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-shopper/pkg/config"
	"github.com/angelmondragon/packfinderz-shopper/pkg/db"
	"github.com/angelmondragon/packfinderz-shopper/pkg/migrate"
)

// NewSQLite returns a client bound to a private in-memory database with every
// migration applied. The database is closed when the test ends.
func NewSQLite(t testing.TB) *db.Client {
	t.Helper()

	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := migrate.Up(ctx, client); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return client
}

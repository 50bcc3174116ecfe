// Package storetest opens migrated throwaway databases for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/forgebot/core/database"
	"github.com/m3rciful/forgebot/forge/store"
	"github.com/m3rciful/forgebot/migrations"
)

// New returns a store backed by a fresh SQLite file in t.TempDir.
func New(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()

	cfg := coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "forge.db"),
	}
	require.NoError(t, coredatabase.RunMigrationsFS(cfg, migrations.FS))

	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return store.New(db, opts...)
}

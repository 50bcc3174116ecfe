package bootstrap

import (
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/forgebot/core/config"
	coredatabase "github.com/m3rciful/forgebot/core/database"
)

func sqliteConfig(t *testing.T) coredatabase.Config {
	return coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "boot.db"),
	}
}

func noLogger(*coreconfig.Config) error { return nil }

func TestRunAppliesMigrations(t *testing.T) {
	migrations := fstest.MapFS{
		"sqlite/000001_init.up.sql":   {Data: []byte("CREATE TABLE probe (id INTEGER PRIMARY KEY);")},
		"sqlite/000001_init.down.sql": {Data: []byte("DROP TABLE probe;")},
	}
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   sqliteConfig(t),
		Migrations: migrations,
		LoggerInit: noLogger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.DB.Close() })

	var n int
	require.NoError(t, res.DB.Get(&n, "SELECT COUNT(*) FROM probe"))
	require.Zero(t, n)
}

func TestRunReportsStageFailures(t *testing.T) {
	_, err := Run(Options{})
	require.ErrorContains(t, err, "nil config")

	boom := errors.New("boom")
	_, err = Run(Options{Config: &coreconfig.Config{}, LoggerInit: func(*coreconfig.Config) error { return boom }})
	require.ErrorIs(t, err, boom)

	_, err = Run(Options{
		Config:     &coreconfig.Config{},
		Database:   sqliteConfig(t),
		LoggerInit: noLogger,
		Migrate:    func(coredatabase.Config) error { return boom },
	})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "migrations failed")
}

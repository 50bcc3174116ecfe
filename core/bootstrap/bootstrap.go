package bootstrap

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/forgebot/core/config"
	coredatabase "github.com/m3rciful/forgebot/core/database"
	"github.com/m3rciful/forgebot/core/logger"
)

// Options control the bootstrap pipeline: logger, database, migrations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Migrations holds one directory per driver; ./migrations on disk when nil.
	Migrations fs.FS

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

func (o Options) withDefaults() Options {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		src := o.Migrations
		if src == nil {
			src = os.DirFS("migrations")
		}
		o.Migrate = coredatabase.Migrator(src)
	}
	return o
}

// Run initializes the logger, connects to the database and applies
// migrations. The connection is closed again when migrations fail.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	opts = opts.withDefaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	db, err := opts.Connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	if err := opts.Migrate(opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	return &Result{DB: db}, nil
}

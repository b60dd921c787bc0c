// Package bootstrap prepares shared infrastructure: logger, database and migrations.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/cmdbus/core/config"
	coredatabase "github.com/m3rciful/cmdbus/core/database"
	"github.com/m3rciful/cmdbus/core/logger"
)

// Options control the bootstrap pipeline. Nil hooks use the core implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Consumer keys the stored update offset; defaults to "bot".
	Consumer string

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, *sqlx.DB, coredatabase.Config) error
}

// Result exposes the initialized infrastructure. Storage fields are nil when
// no database is configured.
type Result struct {
	DB      *sqlx.DB
	Offsets *coredatabase.OffsetStore
	Journal *coredatabase.Journal
}

// Close releases the database, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger, connects to the database and applies migrations.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if !opts.Database.Enabled() {
		logger.Info(ctx, logger.CompDB, "db.disabled", slog.String("status", "skip"))
		return &Result{}, nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.Migrate
	}
	if err := migrate(ctx, db, opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	consumer := opts.Consumer
	if consumer == "" {
		consumer = "bot"
	}
	return &Result{
		DB:      db,
		Offsets: coredatabase.NewOffsetStore(db, consumer),
		Journal: coredatabase.NewJournal(db),
	}, nil
}

package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cmdbus/core/logger"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrate applies all up migrations on db. Migrations come from cfg.MigrationsDir when set,
// otherwise from the embedded set.
func Migrate(ctx context.Context, db *sqlx.DB, cfg Config) error {
	if db == nil {
		return errors.New("migrate: nil db")
	}
	files, srcName, src, err := migrationSource(cfg.MigrationsDir)
	if err != nil {
		return err
	}
	preview, truncated := logger.SummarizeStrings(files, 6)
	logger.Debug(ctx, logger.CompMigrate, "db.migrate.resolve",
		slog.String("source", srcName),
		slog.Int("count", len(files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
	)

	driver, err := databaseDriver(db, cfg.Driver)
	if err != nil {
		return err
	}

	var m *migrate.Migrate
	if src != nil {
		m, err = migrate.NewWithInstance("iofs", src, cfg.Driver, driver)
	} else {
		m, err = migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsDir, cfg.Driver, driver)
	}
	if err != nil {
		logger.Error(ctx, logger.CompMigrate, "db.migrate.init",
			slog.String("status", "fail"),
			slog.Any("err", err),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	// The postgres driver pins a pooled connection and releases it on Close;
	// the sqlite3 driver closes db itself, which the caller owns.
	if cfg.Driver == DriverPostgres {
		defer m.Close()
	}

	fromVer, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.Took(start)

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(ctx, logger.CompMigrate, "db.migrate.apply",
			slog.String("status", "fail"),
			slog.Duration("duration", took),
			slog.Any("err", upErr),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	logger.Info(ctx, logger.CompMigrate, "db.migrate.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("count", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func databaseDriver(db *sqlx.DB, name string) (database.Driver, error) {
	switch name {
	case DriverPostgres:
		return postgres.WithInstance(db.DB, &postgres.Config{})
	case DriverSQLite:
		return sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	default:
		return nil, fmt.Errorf("migrate: unsupported driver %q", name)
	}
}

// migrationSource lists up files and returns an iofs source for the embedded set.
// A nil source means the file driver should read dir.
func migrationSource(dir string) ([]string, string, source.Driver, error) {
	if dir = strings.TrimSpace(dir); dir != "" {
		return listMigrationFiles(os.DirFS(dir)), "file://" + dir, nil, nil
	}
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return nil, "", nil, fmt.Errorf("migrate: embedded migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, "", nil, fmt.Errorf("migrate: embedded migrations: %w", err)
	}
	return listMigrationFiles(sub), "embedded", src, nil
}

func listMigrationFiles(fsys fs.FS) []string {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"gator/internal/database/migrations"
)

// DB represents the database connection
type DB struct {
	*sqlx.DB
}

// NewDB opens a SQLite or Postgres connection and, unless read-only, runs
// pending migrations.
func NewDB(cfg *Config) (*DB, error) {
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}

	driver := cfg.Driver()
	var dsn string
	switch driver {
	case DriverPostgres:
		dsn = cfg.URL
	case DriverSQLite:
		var err error
		if dsn, err = sqliteDSN(cfg); err != nil {
			return nil, err
		}
	}

	log.Info().Str("driver", driver).Str("mode", modeStr(cfg.ReadOnly)).Msg("Opening database")

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if driver == DriverSQLite {
		// Journal/Sync/Timeout/foreign keys are set via DSN so every pooled
		// connection gets them.
		pragmas := []string{
			fmt.Sprintf("PRAGMA cache_size = %d;", cfg.CacheSizeKB),
			"PRAGMA temp_store = MEMORY;",
		}
		if cfg.ReadOnly {
			pragmas = append(pragmas, "PRAGMA query_only = ON;")
		}
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				log.Warn().Err(err).Str("pragma", pragma).Str("mode", modeStr(cfg.ReadOnly)).Msg("Failed to set PRAGMA")
			}
		}
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db (%s): %w", modeStr(cfg.ReadOnly), err)
	}

	if !cfg.ReadOnly {
		log.Info().Msg("Running database migrations...")
		migrationFiles, err := migrations.LoadMigrations(migrations.Files, ".")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load migrations: %w", err)
		}

		if err := migrations.RunMigrations(db, migrationFiles); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed successfully")
	} else {
		log.Info().Msg("Skipping migrations for read-only connection (from config).")
	}

	log.Info().Str("mode", modeStr(cfg.ReadOnly)).Msg("Database connection successful")
	return &DB{db}, nil
}

// sqliteDSN builds a mattn/go-sqlite3 DSN from a file path, creating the
// parent directory when needed.
func sqliteDSN(cfg *Config) (string, error) {
	path := sqlitePath(cfg.URL)

	dir := filepath.Dir(path)
	if dir != "." && !cfg.ReadOnly {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", fmt.Sprint(cfg.BusyTimeoutMS))
	params.Set("_foreign_keys", "on")
	if cfg.ReadOnly {
		params.Set("mode", "ro")
	}

	return "file:" + path + "?" + params.Encode(), nil
}

// sqlitePath strips the file: scheme and any query string from a SQLite URL.
func sqlitePath(dbURL string) string {
	path := strings.TrimPrefix(dbURL, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Helper for logging
func modeStr(readOnly bool) string {
	if readOnly {
		return "read-only"
	}
	return "read-write"
}

// DeleteDB removes a SQLite database file (and its WAL side files) if it
// exists. For Postgres it rolls back every migration instead.
func DeleteDB(cfg *Config) error {
	if cfg.Driver() != DriverSQLite {
		return ResetSchema(cfg)
	}
	path := sqlitePath(cfg.URL)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if _, err := os.Stat(p); err == nil {
			if err := os.Remove(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResetSchema rolls back every applied migration, leaving an empty database.
func ResetSchema(cfg *Config) error {
	db, err := NewDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrationFiles, err := migrations.LoadMigrations(migrations.Files, ".")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := migrations.RollbackMigrations(db.DB, migrationFiles, len(migrationFiles)); err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	log.Info().Int("migrations", len(migrationFiles)).Msg("Database schema reset")
	return nil
}

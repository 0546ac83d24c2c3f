package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"surfsup/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

// Open returns a pooled handle to the observation store. Requests take
// dedicated connections from it for their lifetime; the handle itself is
// shared read-only process state.
func Open(cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.Driver == "sqlite3" {
		connector, err := NewLoggingConnector(dsn, logger, cfg.LogSQL)
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(cfg.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// DSN returns the data source name Open would use for cfg.
func DSN(cfg config.Config) (string, error) {
	return buildDSN(cfg)
}

func buildDSN(cfg config.Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	path := cfg.Path
	var params []string
	if cfg.ReadOnly {
		// The store is populated externally; a missing file is a config error,
		// not something to create.
		if !strings.HasPrefix(path, "file:") {
			if _, err := os.Stat(path); err != nil {
				return "", fmt.Errorf("sqlite path %s: %w", path, err)
			}
		}
		params = []string{
			"mode=ro",
			"_query_only=1",
			"_busy_timeout=5000",
		}
	} else {
		dir := filepath.Dir(path)
		if dir != "." && !strings.HasPrefix(path, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
		params = []string{
			"_foreign_keys=on",
			"_busy_timeout=5000",
			"_journal_mode=WAL",
		}
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

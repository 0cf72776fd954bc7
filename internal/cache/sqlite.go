//go:build sqlite
// +build sqlite

package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "caresync/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteCache struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Cache, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &sqliteCache{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := c.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *sqliteCache) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, string(b))
	return err
}

func (c *sqliteCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *sqliteCache) Get(ctx context.Context, key string) (string, bool, error) {
	if c == nil || c.db == nil {
		return "", false, ErrDisabled
	}
	if key == "" {
		return "", false, nil
	}
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *sqliteCache) Set(ctx context.Context, key, value string) error {
	if c == nil || c.db == nil {
		return ErrDisabled
	}
	if key == "" {
		return nil
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO kv(key, value, updated_at) VALUES(?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	return err
}

func (c *sqliteCache) Remove(ctx context.Context, key string) error {
	if c == nil || c.db == nil {
		return ErrDisabled
	}
	if key == "" {
		return nil
	}
	_, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

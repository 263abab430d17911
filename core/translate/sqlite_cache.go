// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package translate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS translations (
	key         TEXT PRIMARY KEY,
	translation TEXT NOT NULL,
	created_at  TEXT NOT NULL
)`

// sqliteTimeout bounds a single cache query.
const sqliteTimeout = 2 * time.Second

// SQLiteCache is a Cache persisted to a SQLite database, so translations
// survive restarts. Database errors are logged and treated as misses.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens or creates the database at path.
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open translation cache: %w", err)
	}

	// One writer at a time; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL", sqliteSchema} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("failed to prepare translation cache (%s): %w", stmt, err)
		}
	}

	return &SQLiteCache{db: db}, nil
}

func (c *SQLiteCache) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	var translation string

	err := c.db.QueryRowContext(ctx, `SELECT translation FROM translations WHERE key = ?`, key).Scan(&translation)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false
	case err != nil:
		log.Warn().Err(err).Str("sys", "translate").Msg("Translation cache read failed")

		return "", false
	}

	return translation, true
}

func (c *SQLiteCache) Set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO translations (key, translation, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET translation = excluded.translation, created_at = excluded.created_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		log.Warn().Err(err).Str("sys", "translate").Msg("Translation cache write failed")
	}
}

// Len returns the number of stored translations, or -1 when the count fails.
func (c *SQLiteCache) Len() int {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM translations`).Scan(&n); err != nil {
		return -1
	}

	return n
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

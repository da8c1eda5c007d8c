// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS caches (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	cache     TEXT    NOT NULL REFERENCES caches(name) ON DELETE CASCADE,
	key       TEXT    NOT NULL,
	status    INTEGER NOT NULL,
	header    TEXT    NOT NULL,
	url       TEXT    NOT NULL,
	body      BLOB    NOT NULL,
	stored_at INTEGER NOT NULL,
	PRIMARY KEY (cache, key)
);`

const upsertEntry = `
INSERT INTO entries (cache, key, status, header, url, body, stored_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (cache, key) DO UPDATE SET
	status = excluded.status,
	header = excluded.header,
	url = excluded.url,
	body = excluded.body,
	stored_at = excluded.stored_at`

// SQLite is a Storage kept in a single SQLite database file.
type SQLite struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLite) Open(ctx context.Context, name string) (Cache, error) {
	if name == "" {
		return nil, ErrNoName
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO caches (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		name, toMillis(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", name, err)
	}
	return &sqliteCache{name: name, db: s.sqlDB, now: s.now}, nil
}

func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM caches ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan cache name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE cache = ?`, name); err != nil {
		return false, fmt.Errorf("delete entries of %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM caches WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete cache %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete cache %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return n > 0, nil
}

type sqliteCache struct {
	name string
	db   *sql.DB
	now  func() time.Time
}

func (c *sqliteCache) Name() string { return c.name }

func (c *sqliteCache) Match(ctx context.Context, req *http.Request) (*Response, bool, error) {
	key, ok := matchKey(req)
	if !ok {
		return nil, false, nil
	}

	var (
		status   int
		header   string
		u        string
		body     []byte
		storedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT status, header, url, body, stored_at FROM entries WHERE cache = ? AND key = ?`,
		c.name, key,
	).Scan(&status, &header, &u, &body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("match %s: %w", key, err)
	}

	r, err := scanResponse(status, header, u, body, storedAt)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (c *sqliteCache) Put(ctx context.Context, req *http.Request, resp *Response) error {
	rec, err := putRecord(req, resp)
	if err != nil {
		return err
	}
	return c.PutAll(ctx, []Record{rec})
}

func (c *sqliteCache) PutAll(ctx context.Context, records []Record) error {
	if err := checkRecords(records); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := c.now()
	for _, r := range records {
		resp := stamp(r.Response, now)
		header, err := json.Marshal(resp.Header)
		if err != nil {
			return fmt.Errorf("encode header of %s: %w", r.Key, err)
		}
		body := resp.Body
		if body == nil {
			body = []byte{}
		}
		if _, err := tx.ExecContext(ctx, upsertEntry,
			c.name, r.Key, resp.Status, string(header), resp.URL, body, toMillis(resp.StoredAt),
		); err != nil {
			return fmt.Errorf("put %s: %w", r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (c *sqliteCache) Entries(ctx context.Context) ([]Record, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT key, status, header, url, body, stored_at FROM entries WHERE cache = ? ORDER BY key`,
		c.name,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			key      string
			status   int
			header   string
			u        string
			body     []byte
			storedAt int64
		)
		if err := rows.Scan(&key, &status, &header, &u, &body, &storedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		r, err := scanResponse(status, header, u, body, storedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{Key: key, Response: r})
	}
	return out, rows.Err()
}

func scanResponse(status int, header, u string, body []byte, storedAt int64) (*Response, error) {
	h := http.Header{}
	if err := json.Unmarshal([]byte(header), &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return &Response{
		Status:   status,
		Header:   h,
		Body:     body,
		URL:      u,
		StoredAt: fromMillis(storedAt),
	}, nil
}

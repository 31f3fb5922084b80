// SPDX-FileCopyrightText: 2026 The panrec authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package catalog keeps an index of captured recordings in a SQLite
// database, so repeated capture runs stay auditable.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	arch        TEXT NOT NULL,
	command     TEXT NOT NULL,
	snapshot    TEXT NOT NULL,
	captured_at TEXT NOT NULL,
	size_bytes  INTEGER NOT NULL
);
`

// Entry describes one captured recording.
type Entry struct {
	ID         int64
	Name       string
	Arch       string
	Command    string
	Snapshot   string
	CapturedAt time.Time
	SizeBytes  int64
}

// Catalog is an open recording index.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at the given path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog pragma: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Add inserts the given entry and returns its ID.
func (c *Catalog) Add(ctx context.Context, entry Entry) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		`INSERT INTO recordings
			(name, arch, command, snapshot, captured_at, size_bytes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Name,
		entry.Arch,
		entry.Command,
		entry.Snapshot,
		entry.CapturedAt.UTC().Format(time.RFC3339Nano),
		entry.SizeBytes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert recording: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert recording id: %w", err)
	}

	return id, nil
}

// List returns all entries, newest first.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, arch, command, snapshot, captured_at, size_bytes
		 FROM recordings
		 ORDER BY captured_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			entry      Entry
			capturedAt string
		)

		err := rows.Scan(
			&entry.ID,
			&entry.Name,
			&entry.Arch,
			&entry.Command,
			&entry.Snapshot,
			&capturedAt,
			&entry.SizeBytes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}

		entry.CapturedAt, err = time.Parse(time.RFC3339Nano, capturedAt)
		if err != nil {
			return nil, fmt.Errorf("parse captured_at: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}

	return entries, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	err := c.db.Close()
	if err != nil {
		return fmt.Errorf("close catalog: %w", err)
	}

	return nil
}

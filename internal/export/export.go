// Package export writes a one-way SQLite snapshot of the index for offline
// inspection: grep-able symbol tables for code review tooling and metrics.
// Snapshots are never read back; the live index is always rebuilt from
// source.
package export

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rubicon-ls/rubicon/internal/entry"
	"github.com/rubicon-ls/rubicon/internal/index"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS entries (
  id              INTEGER PRIMARY KEY,
  fq_name         TEXT NOT NULL,
  kind            TEXT NOT NULL,
  uri             TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  visibility      TEXT,
  owner           TEXT,
  alias_target    TEXT,
  in_project      BOOLEAN NOT NULL,
  doc             TEXT
);

CREATE TABLE IF NOT EXISTS mixins (
  id              INTEGER PRIMARY KEY,
  entry_id        INTEGER NOT NULL REFERENCES entries(id),
  operator        TEXT NOT NULL,
  name            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_fq_name ON entries(fq_name);
CREATE INDEX IF NOT EXISTS idx_entries_uri ON entries(uri);
`

// Snapshot writes every indexed entry to a SQLite database at dbPath,
// replacing any previous snapshot.
func Snapshot(ix *index.Index, dbPath string) error {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return fmt.Errorf("export: open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("export: migrate: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("export: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM mixins`); err != nil {
		return fmt.Errorf("export: clear mixins: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("export: clear entries: %w", err)
	}

	for _, name := range ix.Names() {
		for _, e := range ix.EntriesFor(name) {
			if err := insertEntry(tx, e); err != nil {
				return fmt.Errorf("export: %s: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("export: commit: %w", err)
	}
	return nil
}

func insertEntry(tx *sql.Tx, e entry.Entry) error {
	kind, visibility, owner, aliasTarget := classify(e)
	loc := e.Location()

	res, err := tx.Exec(
		`INSERT INTO entries
		   (fq_name, kind, uri, start_line, start_col, end_line, end_col,
		    visibility, owner, alias_target, in_project, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Name(), kind, string(e.URI()),
		loc.Range.Start.Line, loc.Range.Start.Character,
		loc.Range.End.Line, loc.Range.End.Character,
		visibility, owner, aliasTarget, e.InProject(), e.Comments(),
	)
	if err != nil {
		return err
	}

	ns, ok := e.(*entry.Namespace)
	if !ok || len(ns.Mixins) == 0 {
		return nil
	}
	entryID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, m := range ns.Mixins {
		if _, err := tx.Exec(
			`INSERT INTO mixins (entry_id, operator, name) VALUES (?, ?, ?)`,
			entryID, string(m.Operator), m.Name,
		); err != nil {
			return err
		}
	}
	return nil
}

func classify(e entry.Entry) (kind, visibility, owner, aliasTarget string) {
	switch v := e.(type) {
	case *entry.Namespace:
		return string(v.Kind), "", "", ""
	case *entry.Method:
		return "method_" + string(v.Kind), string(v.Visibility), v.Owner, v.AliasTarget
	case *entry.Constant:
		return "constant", string(v.Visibility), "", ""
	}
	return "unknown", "", "", ""
}

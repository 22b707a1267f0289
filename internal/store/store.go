// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the local replica of the remote library: items,
// notes, attachments, sync state, and the derived search documents.
// Every record write happens in its own transaction so an interrupted sync
// never leaves a half-written entry.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/pkg/types"
)

const (
	dbFile   = "zotnote.db"
	lockFile = "sync.lock"
)

// Store manages the local cache database.
type Store struct {
	db  *sql.DB
	dir string
	now func() time.Time
}

// Open opens or creates the cache database at cfg.Dir/zotnote.db and
// creates the schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("store directory not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LockPath is the advisory lock file guarding writes to this store.
func (s *Store) LockPath() string {
	return filepath.Join(s.dir, lockFile)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS items (
			key TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			item_type TEXT,
			title TEXT,
			creators TEXT,
			date TEXT,
			abstract TEXT,
			citekey TEXT,
			synced_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			key TEXT PRIMARY KEY,
			parent_key TEXT,
			version INTEGER NOT NULL,
			html TEXT NOT NULL,
			markup TEXT,
			dialect TEXT,
			markup_version INTEGER,
			synced_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_parent ON notes(parent_key)`,
		`CREATE TABLE IF NOT EXISTS attachments (
			key TEXT PRIMARY KEY,
			parent_key TEXT,
			version INTEGER NOT NULL,
			title TEXT,
			filename TEXT,
			link_mode TEXT,
			path TEXT,
			synced_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_parent ON attachments(parent_key)`,
		`CREATE TABLE IF NOT EXISTS sync_state (
			id INTEGER PRIMARY KEY CHECK (id = 0),
			library_version INTEGER NOT NULL,
			last_sync TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS search_docs (
			item_key TEXT PRIMARY KEY,
			terms TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS postings (
			term TEXT NOT NULL,
			item_key TEXT NOT NULL,
			tf INTEGER NOT NULL,
			PRIMARY KEY (term, item_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_item ON postings(item_key)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	// Caches created before linked-file paths were stored.
	return s.addColumn("attachments", "path", "TEXT")
}

// addColumn adds column to table unless it is already there.
func (s *Store) addColumn(table, column, decl string) error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning column of %s: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()
	if _, err := s.db.Exec(`ALTER TABLE ` + table + ` ADD COLUMN ` + column + ` ` + decl); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, column, err)
	}
	return nil
}

// ApplyResult reports what Apply did with a record.
type ApplyResult int

const (
	Unchanged ApplyResult = iota
	Created
	Updated
)

func (r ApplyResult) String() string {
	switch r {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Apply writes rec when its version is newer than the cached one. It
// returns what happened and the key of the item whose search document the
// change affects (the item itself, or the parent of a child record).
func (s *Store) Apply(ctx context.Context, rec types.Record) (ApplyResult, string, error) {
	table, err := tableFor(rec.Kind)
	if err != nil {
		return Unchanged, "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Unchanged, "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var cached int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM `+table+` WHERE key = ?`, rec.Key).Scan(&cached)
	result := Updated
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result = Created
	case err != nil:
		return Unchanged, "", fmt.Errorf("reading cached version of %s: %w", rec.Key, err)
	case rec.Version <= cached:
		// Still confirm freshness so stale checks see a recent sync.
		if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET synced_at = ? WHERE key = ?`, s.stamp(), rec.Key); err != nil {
			return Unchanged, "", fmt.Errorf("touching %s: %w", rec.Key, err)
		}
		return Unchanged, "", tx.Commit()
	}

	affected := rec.Key
	switch rec.Kind {
	case types.KindItem:
		err = s.writeItem(ctx, tx, rec)
	case types.KindNote:
		err = s.writeNote(ctx, tx, rec)
		affected = rec.ParentKey
	case types.KindAttachment:
		err = s.writeAttachment(ctx, tx, rec)
		affected = rec.ParentKey
	}
	if err != nil {
		return Unchanged, "", err
	}

	if err := tx.Commit(); err != nil {
		return Unchanged, "", fmt.Errorf("committing %s: %w", rec.Key, err)
	}
	return result, affected, nil
}

func tableFor(kind types.RecordKind) (string, error) {
	switch kind {
	case types.KindItem:
		return "items", nil
	case types.KindNote:
		return "notes", nil
	case types.KindAttachment:
		return "attachments", nil
	default:
		return "", fmt.Errorf("unknown record kind %q", kind)
	}
}

func (s *Store) writeItem(ctx context.Context, tx *sql.Tx, rec types.Record) error {
	it := rec.Item
	if it == nil {
		return fmt.Errorf("item record %s has no item", rec.Key)
	}
	creatorsJSON, err := json.Marshal(it.Creators)
	if err != nil {
		return fmt.Errorf("encoding creators of %s: %w", rec.Key, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (key, version, item_type, title, creators, date, abstract, citekey, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			version=excluded.version, item_type=excluded.item_type, title=excluded.title,
			creators=excluded.creators, date=excluded.date, abstract=excluded.abstract,
			citekey=excluded.citekey, synced_at=excluded.synced_at`,
		rec.Key, rec.Version, it.ItemType, it.Title, string(creatorsJSON),
		it.Date, it.Abstract, it.CiteKey, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("upserting item %s: %w", rec.Key, err)
	}
	return nil
}

// writeNote replaces the note body. The markup cache is kept only when the
// incoming record carries one; a remote change invalidates it through the
// version check in Note.CachedMarkup.
func (s *Store) writeNote(ctx context.Context, tx *sql.Tx, rec types.Record) error {
	n := rec.Note
	if n == nil {
		return fmt.Errorf("note record %s has no note", rec.Key)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO notes (key, parent_key, version, html, markup, dialect, markup_version, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			parent_key=excluded.parent_key, version=excluded.version, html=excluded.html,
			markup=CASE WHEN excluded.markup IS NOT NULL THEN excluded.markup ELSE notes.markup END,
			dialect=CASE WHEN excluded.markup IS NOT NULL THEN excluded.dialect ELSE notes.dialect END,
			markup_version=CASE WHEN excluded.markup IS NOT NULL THEN excluded.markup_version ELSE notes.markup_version END,
			synced_at=excluded.synced_at`,
		rec.Key, rec.ParentKey, rec.Version, n.HTML,
		nullString(n.Markup), nullString(n.Dialect), n.MarkupVersion, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("upserting note %s: %w", rec.Key, err)
	}
	return nil
}

func (s *Store) writeAttachment(ctx context.Context, tx *sql.Tx, rec types.Record) error {
	a := rec.Attachment
	if a == nil {
		return fmt.Errorf("attachment record %s has no attachment", rec.Key)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO attachments (key, parent_key, version, title, filename, link_mode, path, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			parent_key=excluded.parent_key, version=excluded.version, title=excluded.title,
			filename=excluded.filename, link_mode=excluded.link_mode, path=excluded.path,
			synced_at=excluded.synced_at`,
		rec.Key, rec.ParentKey, rec.Version, a.Title, a.Filename, a.LinkMode, nullString(a.LocalPath), s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("upserting attachment %s: %w", rec.Key, err)
	}
	return nil
}

// Delete removes the entry with key from whichever table holds it, along
// with the search document of a deleted item. It returns the key of the
// item whose search document must be rebuilt (the parent of a deleted
// child), or "" when none.
func (s *Store) Delete(ctx context.Context, key string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	for _, table := range []string{"notes", "attachments"} {
		err := tx.QueryRowContext(ctx, `SELECT parent_key FROM `+table+` WHERE key = ?`, key).Scan(&parent)
		if err == nil {
			break
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("looking up %s: %w", key, err)
		}
	}

	for _, stmt := range []string{
		`DELETE FROM items WHERE key = ?`,
		`DELETE FROM notes WHERE key = ?`,
		`DELETE FROM attachments WHERE key = ?`,
		`DELETE FROM search_docs WHERE item_key = ?`,
		`DELETE FROM postings WHERE item_key = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, key); err != nil {
			return "", fmt.Errorf("deleting %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing delete of %s: %w", key, err)
	}
	return parent.String, nil
}

// Keys returns every cached record key with its kind.
func (s *Store) Keys(ctx context.Context) (map[string]types.RecordKind, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, 'item' FROM items
		 UNION ALL SELECT key, 'note' FROM notes
		 UNION ALL SELECT key, 'attachment' FROM attachments`)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]types.RecordKind)
	for rows.Next() {
		var key, kind string
		if err := rows.Scan(&key, &kind); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys[key] = types.RecordKind(kind)
	}
	return keys, rows.Err()
}

// CachedVersion returns the stored version of the record with key and
// whether it exists.
func (s *Store) CachedVersion(ctx context.Context, kind types.RecordKind, key string) (types.Version, bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, false, err
	}
	var v int64
	err = s.db.QueryRowContext(ctx, `SELECT version FROM `+table+` WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading version of %s: %w", key, err)
	}
	return v, true, nil
}

// SyncState is the library-wide synchronization bookkeeping.
type SyncState struct {
	// LibraryVersion is the high-water mark of the last complete sync pass.
	LibraryVersion types.Version

	// LastSync is when that pass finished; zero if never.
	LastSync time.Time
}

// SyncState reads the stored sync state. A fresh store returns the zero value.
func (s *Store) SyncState(ctx context.Context) (SyncState, error) {
	var (
		st       SyncState
		lastSync sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT library_version, last_sync FROM sync_state WHERE id = 0`,
	).Scan(&st.LibraryVersion, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncState{}, nil
	}
	if err != nil {
		return SyncState{}, fmt.Errorf("reading sync state: %w", err)
	}
	if lastSync.Valid {
		st.LastSync, _ = time.Parse(time.RFC3339Nano, lastSync.String)
	}
	return st, nil
}

// SetSyncState records a completed sync pass.
func (s *Store) SetSyncState(ctx context.Context, st SyncState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_state (id, library_version, last_sync) VALUES (0, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET library_version=excluded.library_version, last_sync=excluded.last_sync`,
		st.LibraryVersion, st.LastSync.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing sync state: %w", err)
	}
	return nil
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// notFound wraps apperr.ErrNotFound with the missing key.
func notFound(kind, key string) error {
	return fmt.Errorf("%s %s: %w", kind, key, apperr.ErrNotFound)
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}

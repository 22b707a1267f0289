// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/zotnote/pkg/types"
)

const itemColumns = `key, version, item_type, title, creators, date, abstract, citekey`

// Item returns the cached item with key, including its attachment and
// child note references. Returns an error matching apperr.ErrNotFound when
// the key is not cached.
func (s *Store) Item(ctx context.Context, key string) (types.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE key = ?`, key)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Item{}, notFound("item", key)
	}
	if err != nil {
		return types.Item{}, fmt.Errorf("reading item %s: %w", key, err)
	}
	if err := s.loadChildren(ctx, &it); err != nil {
		return types.Item{}, err
	}
	return it, nil
}

// HasItem reports whether an item with key is cached.
func (s *Store) HasItem(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.CachedVersion(ctx, types.KindItem, key)
	return ok, err
}

// Items returns every cached item ordered by key, children included.
func (s *Store) Items(ctx context.Context) ([]types.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	var items []types.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range items {
		if err := s.loadChildren(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// ItemsByKey returns the cached items for keys in the same order. Keys that
// are not cached are skipped.
func (s *Store) ItemsByKey(ctx context.Context, keys []string) ([]types.Item, error) {
	items := make([]types.Item, 0, len(keys))
	for _, k := range keys {
		it, err := s.Item(ctx, k)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (types.Item, error) {
	var (
		it                                            types.Item
		itemType, title, creators, date, abs, citekey sql.NullString
	)
	if err := row.Scan(&it.Key, &it.Version, &itemType, &title, &creators, &date, &abs, &citekey); err != nil {
		return types.Item{}, err
	}
	it.ItemType = itemType.String
	it.Title = title.String
	it.Date = date.String
	it.Abstract = abs.String
	it.CiteKey = citekey.String
	if creators.Valid && creators.String != "" {
		if err := json.Unmarshal([]byte(creators.String), &it.Creators); err != nil {
			return types.Item{}, fmt.Errorf("decoding creators of %s: %w", it.Key, err)
		}
	}
	return it, nil
}

func (s *Store) loadChildren(ctx context.Context, it *types.Item) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, title, filename, link_mode, path FROM attachments WHERE parent_key = ? ORDER BY key`, it.Key)
	if err != nil {
		return fmt.Errorf("listing attachments of %s: %w", it.Key, err)
	}
	for rows.Next() {
		var (
			a                               types.Attachment
			title, filename, linkMode, path sql.NullString
		)
		if err := rows.Scan(&a.Key, &title, &filename, &linkMode, &path); err != nil {
			rows.Close()
			return fmt.Errorf("scanning attachment: %w", err)
		}
		a.Title, a.Filename, a.LinkMode, a.LocalPath = title.String, filename.String, linkMode.String, path.String
		it.Attachments = append(it.Attachments, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	keys, err := s.noteKeys(ctx, it.Key)
	if err != nil {
		return err
	}
	it.NoteKeys = keys
	return nil
}

func (s *Store) noteKeys(ctx context.Context, parent string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM notes WHERE parent_key = ? ORDER BY key`, parent)
	if err != nil {
		return nil, fmt.Errorf("listing notes of %s: %w", parent, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning note key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

const noteColumns = `key, parent_key, version, html, markup, dialect, markup_version, synced_at`

// Note returns the cached note with key.
func (s *Store) Note(ctx context.Context, key string) (types.Note, error) {
	n, err := scanNote(s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Note{}, notFound("note", key)
	}
	if err != nil {
		return types.Note{}, fmt.Errorf("reading note %s: %w", key, err)
	}
	return n, nil
}

// NotesFor returns the child notes of the item with key, ordered by key.
func (s *Store) NotesFor(ctx context.Context, itemKey string) ([]types.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE parent_key = ? ORDER BY key`, itemKey)
	if err != nil {
		return nil, fmt.Errorf("listing notes of %s: %w", itemKey, err)
	}
	defer rows.Close()

	var notes []types.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func scanNote(row scanner) (types.Note, error) {
	var (
		n                                 types.Note
		parent, markup, dialect, syncedAt sql.NullString
		markupVersion                     sql.NullInt64
	)
	if err := row.Scan(&n.Key, &parent, &n.Version, &n.HTML, &markup, &dialect, &markupVersion, &syncedAt); err != nil {
		return types.Note{}, err
	}
	n.ParentKey = parent.String
	n.Markup = markup.String
	n.Dialect = dialect.String
	n.MarkupVersion = markupVersion.Int64
	if syncedAt.Valid {
		n.SyncedAt, _ = time.Parse(time.RFC3339Nano, syncedAt.String)
	}
	return n, nil
}

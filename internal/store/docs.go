// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SearchDoc is the derived term-frequency document of one item.
type SearchDoc map[string]int

// PutSearchDoc replaces the search document of itemKey and its postings.
func (s *Store) PutSearchDoc(ctx context.Context, itemKey string, doc SearchDoc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := putDoc(ctx, tx, itemKey, doc); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceSearchDocs drops every search document and writes docs in a single
// transaction, so a reader never sees a half-rebuilt index.
func (s *Store) ReplaceSearchDocs(ctx context.Context, docs map[string]SearchDoc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM search_docs`, `DELETE FROM postings`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing search documents: %w", err)
		}
	}
	for key, doc := range docs {
		if err := putDoc(ctx, tx, key, doc); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func putDoc(ctx context.Context, tx *sql.Tx, itemKey string, doc SearchDoc) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE item_key = ?`, itemKey); err != nil {
		return fmt.Errorf("clearing postings of %s: %w", itemKey, err)
	}

	// encoding/json sorts map keys, so equal documents serialize identically.
	termsJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding search document %s: %w", itemKey, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO search_docs (item_key, terms) VALUES (?, ?)
		 ON CONFLICT(item_key) DO UPDATE SET terms=excluded.terms`,
		itemKey, string(termsJSON))
	if err != nil {
		return fmt.Errorf("writing search document %s: %w", itemKey, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO postings (term, item_key, tf) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing postings insert: %w", err)
	}
	defer stmt.Close()
	for term, tf := range doc {
		if _, err := stmt.ExecContext(ctx, term, itemKey, tf); err != nil {
			return fmt.Errorf("inserting posting %q for %s: %w", term, itemKey, err)
		}
	}
	return nil
}

// DeleteSearchDoc removes the search document of itemKey.
func (s *Store) DeleteSearchDoc(ctx context.Context, itemKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM search_docs WHERE item_key = ?`,
		`DELETE FROM postings WHERE item_key = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, itemKey); err != nil {
			return fmt.Errorf("deleting search document %s: %w", itemKey, err)
		}
	}
	return tx.Commit()
}

// SearchDoc returns the stored search document of itemKey.
func (s *Store) SearchDoc(ctx context.Context, itemKey string) (SearchDoc, bool, error) {
	var termsJSON string
	err := s.db.QueryRowContext(ctx, `SELECT terms FROM search_docs WHERE item_key = ?`, itemKey).Scan(&termsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading search document %s: %w", itemKey, err)
	}
	doc := SearchDoc{}
	if err := json.Unmarshal([]byte(termsJSON), &doc); err != nil {
		return nil, false, fmt.Errorf("decoding search document %s: %w", itemKey, err)
	}
	return doc, true, nil
}

// SearchDocKeys returns the keys of every stored search document, sorted.
func (s *Store) SearchDocKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_key FROM search_docs ORDER BY item_key`)
	if err != nil {
		return nil, fmt.Errorf("listing search documents: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning search document key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Postings returns, per item key, the frequency of term in that item's
// document. With prefix set, frequencies of every term starting with term
// are summed.
func (s *Store) Postings(ctx context.Context, term string, prefix bool) (map[string]int, error) {
	query := `SELECT item_key, tf FROM postings WHERE term = ?`
	args := []any{term}
	if prefix {
		query = `SELECT item_key, SUM(tf) FROM postings WHERE substr(term, 1, length(?)) = ? GROUP BY item_key`
		args = []any{term, term}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", term, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			key string
			tf  int
		)
		if err := rows.Scan(&key, &tf); err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		out[key] = tf
	}
	return out, rows.Err()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index maintains the full-text search index over cached items.
// Search documents are pure projections of the local store: they can be
// dropped and rebuilt at any time without touching anything else.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/internal/store"
)

// Index evaluates boolean queries over the search documents in a store.
type Index struct {
	store  *store.Store
	logger *slog.Logger
}

// New returns an index backed by st.
func New(st *store.Store, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{store: st, logger: logger}
}

// Rebuild recomputes every search document from the store and replaces
// the stored ones in one transaction. It returns the number of documents.
func (ix *Index) Rebuild(ctx context.Context) (int, error) {
	items, err := ix.store.Items(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading items: %w", err)
	}

	docs := make(map[string]store.SearchDoc, len(items))
	for _, it := range items {
		notes, err := ix.store.NotesFor(ctx, it.Key)
		if err != nil {
			return 0, fmt.Errorf("loading notes of %s: %w", it.Key, err)
		}
		docs[it.Key] = BuildDoc(it, notes)
	}

	if err := ix.store.ReplaceSearchDocs(ctx, docs); err != nil {
		return 0, err
	}
	ix.logger.Debug("index: rebuilt", slog.Int("documents", len(docs)))
	return len(docs), nil
}

// Update rebuilds the search documents of the given item keys. A key whose
// item is no longer cached has its document removed.
func (ix *Index) Update(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if key == "" {
			continue
		}
		it, err := ix.store.Item(ctx, key)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				if err := ix.store.DeleteSearchDoc(ctx, key); err != nil {
					return err
				}
				continue
			}
			return err
		}
		notes, err := ix.store.NotesFor(ctx, key)
		if err != nil {
			return fmt.Errorf("loading notes of %s: %w", key, err)
		}
		if err := ix.store.PutSearchDoc(ctx, key, BuildDoc(it, notes)); err != nil {
			return err
		}
		ix.logger.Debug("index: updated", slog.String("key", key))
	}
	return nil
}

// Query evaluates text and returns matching item keys, best first. Items
// are ranked by the summed frequency of the matched terms; ties are broken
// by key so equal inputs always give the same order. A limit of zero or
// less returns every match.
func (ix *Index) Query(ctx context.Context, text string, limit int) ([]string, error) {
	expr, err := parseQuery(text)
	if err != nil {
		return nil, err
	}

	ev := &evaluator{ctx: ctx, store: ix.store}
	scores, err := ev.eval(expr)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		si, sj := scores[keys[i]], scores[keys[j]]
		if si != sj {
			return si > sj
		}
		return keys[i] < keys[j]
	})

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	ix.logger.Debug("index: query", slog.String("query", text), slog.String("parsed", expr.String()), slog.Int("matches", len(keys)))
	return keys, nil
}

// evaluator computes, for each expression, the matching item keys and their
// scores. The universe of all documents is loaded once, on the first NOT.
type evaluator struct {
	ctx      context.Context
	store    *store.Store
	universe []string
}

func (ev *evaluator) eval(n node) (map[string]int, error) {
	switch n := n.(type) {
	case termNode:
		return ev.store.Postings(ev.ctx, n.term, n.prefix)

	case andNode:
		var acc map[string]int
		for _, child := range n.children {
			scores, err := ev.eval(child)
			if err != nil {
				return nil, err
			}
			if acc == nil {
				acc = scores
				continue
			}
			for k, s := range acc {
				if cs, ok := scores[k]; ok {
					acc[k] = s + cs
				} else {
					delete(acc, k)
				}
			}
		}
		return acc, nil

	case orNode:
		acc := make(map[string]int)
		for _, child := range n.children {
			scores, err := ev.eval(child)
			if err != nil {
				return nil, err
			}
			for k, s := range scores {
				acc[k] += s
			}
		}
		return acc, nil

	case notNode:
		excluded, err := ev.eval(n.child)
		if err != nil {
			return nil, err
		}
		all, err := ev.all()
		if err != nil {
			return nil, err
		}
		acc := make(map[string]int)
		for _, k := range all {
			if _, ok := excluded[k]; !ok {
				acc[k] = 0
			}
		}
		return acc, nil

	default:
		return nil, fmt.Errorf("unknown query node %T", n)
	}
}

func (ev *evaluator) all() ([]string, error) {
	if ev.universe == nil {
		keys, err := ev.store.SearchDocKeys(ev.ctx)
		if err != nil {
			return nil, err
		}
		if keys == nil {
			keys = []string{}
		}
		ev.universe = keys
	}
	return ev.universe, nil
}

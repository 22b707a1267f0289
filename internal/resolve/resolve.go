// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns a user-supplied identifier or query into exactly
// one cached item. Ambiguity is settled by an injected Selector, so the
// resolution logic never touches the terminal itself.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/internal/store"
	"github.com/pdiddy/zotnote/pkg/types"
)

// Selector asks the user to pick one of labels. It returns the chosen
// index, or an error matching apperr.ErrSelectionAborted when the user
// declines.
type Selector interface {
	Select(ctx context.Context, prompt string, labels []string) (int, error)
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(ctx context.Context, prompt string, labels []string) (int, error)

// Select calls f.
func (f SelectorFunc) Select(ctx context.Context, prompt string, labels []string) (int, error) {
	return f(ctx, prompt, labels)
}

// Searcher runs full-text queries. *index.Index implements it.
type Searcher interface {
	Query(ctx context.Context, text string, limit int) ([]string, error)
}

// Resolver maps tokens to items.
type Resolver struct {
	store    *store.Store
	search   Searcher
	selector Selector
	logger   *slog.Logger
}

// New creates a resolver reading items from st.
func New(st *store.Store, search Searcher, selector Selector, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: st, search: search, selector: selector, logger: logger}
}

// Resolve returns the single item token designates. A token shaped like an
// item key that is cached resolves directly without a search. Anything
// else is a query: no match fails with apperr.ErrNoMatch, one match
// resolves silently, and several are handed to the selector in search
// order.
func (r *Resolver) Resolve(ctx context.Context, token string) (types.Item, error) {
	token = strings.TrimSpace(token)
	if types.IsKey(token) {
		it, err := r.store.Item(ctx, token)
		if err == nil {
			r.logger.Debug("resolve: exact key", slog.String("key", token))
			return it, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return types.Item{}, err
		}
	}

	keys, err := r.search.Query(ctx, token, 0)
	if err != nil {
		return types.Item{}, err
	}
	items, err := r.store.ItemsByKey(ctx, keys)
	if err != nil {
		return types.Item{}, err
	}

	switch len(items) {
	case 0:
		return types.Item{}, fmt.Errorf("%q: %w", token, apperr.ErrNoMatch)
	case 1:
		return items[0], nil
	}

	labels := make([]string, len(items))
	for i, it := range items {
		labels[i] = Label(it)
	}
	i, err := Choose(ctx, r.selector, fmt.Sprintf("%d items match %q", len(items), token), labels)
	if err != nil {
		return types.Item{}, err
	}
	return items[i], nil
}

// Choose picks one of labels: a single label is chosen without asking,
// several go to sel. An empty list or an out-of-range answer counts as
// an aborted selection.
func Choose(ctx context.Context, sel Selector, prompt string, labels []string) (int, error) {
	switch len(labels) {
	case 0:
		return 0, fmt.Errorf("nothing to choose from: %w", apperr.ErrSelectionAborted)
	case 1:
		return 0, nil
	}
	if sel == nil {
		return 0, fmt.Errorf("%d candidates and no way to ask: %w", len(labels), apperr.ErrSelectionAborted)
	}
	i, err := sel.Select(ctx, prompt, labels)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(labels) {
		return 0, fmt.Errorf("choice %d out of range: %w", i, apperr.ErrSelectionAborted)
	}
	return i, nil
}

// Label is the human-readable line shown for an item when disambiguating:
// "Creator summary: Title (year)".
func Label(it types.Item) string {
	var b strings.Builder
	if c := it.CreatorSummary(); c != "" {
		b.WriteString(c)
		b.WriteString(": ")
	}
	title := it.Title
	if title == "" {
		title = "Untitled"
	}
	b.WriteString(title)
	if y := it.Year(); y != "" {
		b.WriteString(" (" + y + ")")
	}
	return b.String()
}

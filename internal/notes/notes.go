// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notes runs note edit sessions: resolve the target item, render
// the note in the local dialect, hand it to the user's editor, and write
// the result back to the remote with a version check.
//
// A session never merges. When the remote rejects a write because the note
// moved on, the edited buffer is left on disk and the local store keeps
// its previous copy.
package notes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/internal/convert"
	"github.com/pdiddy/zotnote/internal/index"
	"github.com/pdiddy/zotnote/internal/resolve"
	"github.com/pdiddy/zotnote/internal/store"
	"github.com/pdiddy/zotnote/pkg/types"
)

// Resolver maps a user token to one cached item.
type Resolver interface {
	Resolve(ctx context.Context, token string) (types.Item, error)
}

// Committer is the store-writing side of the sync engine.
type Committer interface {
	RefreshOne(ctx context.Context, key string) (store.ApplyResult, error)
	CommitWrite(ctx context.Context, key string, version types.Version, markup, dialect string) (store.ApplyResult, error)
}

// NoteWriter performs conditional note writes on the remote.
type NoteWriter interface {
	// UpdateNote replaces the body of note key if the remote copy is still
	// at version expected, and returns the new version.
	UpdateNote(ctx context.Context, key, html string, expected types.Version) (types.Version, error)

	// CreateNote adds a child note to parent if the parent is still at
	// version expected, and returns the new note's key and version.
	CreateNote(ctx context.Context, parent, html string, expected types.Version) (string, types.Version, error)
}

// Editor runs the user's editor on a file and returns its exit code.
type Editor interface {
	Edit(ctx context.Context, path string) (int, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store    *store.Store
	Resolver Resolver
	Syncer   Committer
	Writer   NoteWriter
	Pipeline *convert.Pipeline
	Editor   Editor

	// Selector picks among several notes of one item. Nil means the
	// caller must name the note by number.
	Selector resolve.Selector

	// Confirmer decides between editing an existing note and starting a
	// new one in TakeNote. Nil always starts a new note.
	Confirmer Confirmer
}

// Orchestrator runs add, edit and export sessions.
type Orchestrator struct {
	Deps
	cfg    types.NotesConfig
	logger *slog.Logger
	now    func() time.Time
}

// New creates an orchestrator.
func New(cfg types.NotesConfig, d Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Orchestrator{Deps: d, cfg: cfg, logger: logger, now: time.Now}
}

// AddNote creates a new child note on the item target designates, starting
// from an empty buffer.
func (o *Orchestrator) AddNote(ctx context.Context, target string) (*Session, error) {
	s := newSession()
	it, err := o.Resolver.Resolve(ctx, target)
	if err != nil {
		return s, err
	}
	s.ItemKey = it.Key
	s.enter(StateResolved)
	// The parent's cached version is the precondition of the create.
	s.enter(StateFetched)
	s.enter(StateConverted)

	return o.editAndSubmit(ctx, s, "", func(html string) (string, types.Version, error) {
		return o.Writer.CreateNote(ctx, it.Key, html, it.Version)
	})
}

// EditNote edits note number noteIndex (1-based) of the item target
// designates. With noteIndex 0, a single note is picked directly and
// several are offered to the selector.
func (o *Orchestrator) EditNote(ctx context.Context, target string, noteIndex int) (*Session, error) {
	s := newSession()
	it, err := o.Resolver.Resolve(ctx, target)
	if err != nil {
		return s, err
	}
	s.ItemKey = it.Key
	s.enter(StateResolved)

	n, err := o.fetch(ctx, it, noteIndex, true)
	if err != nil {
		return s, err
	}
	s.NoteKey = n.Key
	s.enter(StateFetched)

	seed, err := o.render(ctx, n)
	if err != nil {
		return s, err
	}
	s.enter(StateConverted)

	return o.editAndSubmit(ctx, s, seed, func(html string) (string, types.Version, error) {
		v, err := o.Writer.UpdateNote(ctx, n.Key, html, n.Version)
		return n.Key, v, err
	})
}

// ExportNote writes note noteIndex of the item target designates to w in
// the local dialect.
func (o *Orchestrator) ExportNote(ctx context.Context, target string, noteIndex int, w io.Writer) (*Session, error) {
	s := newSession()
	it, err := o.Resolver.Resolve(ctx, target)
	if err != nil {
		return s, err
	}
	s.ItemKey = it.Key
	s.enter(StateResolved)

	n, err := o.fetch(ctx, it, noteIndex, false)
	if err != nil {
		return s, err
	}
	s.NoteKey = n.Key
	s.enter(StateFetched)

	markup, err := o.render(ctx, n)
	if err != nil {
		return s, err
	}
	s.enter(StateConverted)

	if _, err := io.WriteString(w, markup); err != nil {
		return s, fmt.Errorf("writing note %s: %w", n.Key, err)
	}
	return s, nil
}

// TakeNote starts a note session on the item with key, as when taking
// notes while reading: if the item already has notes and the confirmer
// agrees, one of them is edited, otherwise a new note is added.
func (o *Orchestrator) TakeNote(ctx context.Context, key string) (*Session, error) {
	notes, err := o.Store.NotesFor(ctx, key)
	if err != nil {
		return newSession(), err
	}
	if len(notes) > 0 && o.Confirmer != nil {
		edit, err := o.Confirmer.Confirm(ctx, "Edit existing note?")
		if err != nil {
			return newSession(), err
		}
		if edit {
			return o.EditNote(ctx, key, 0)
		}
	}
	return o.AddNote(ctx, key)
}

// fetch picks the note and refreshes it from the remote when the cached
// copy is older than the configured staleness window. An unreachable
// remote falls back to the cached copy. So does a remote that rejects the
// credentials, unless the note is about to be written back.
func (o *Orchestrator) fetch(ctx context.Context, it types.Item, noteIndex int, forWrite bool) (types.Note, error) {
	notes, err := o.Store.NotesFor(ctx, it.Key)
	if err != nil {
		return types.Note{}, err
	}
	n, err := o.pick(ctx, it, notes, noteIndex)
	if err != nil {
		return types.Note{}, err
	}

	if o.cfg.StaleAfter > 0 && o.now().Sub(n.SyncedAt) < o.cfg.StaleAfter {
		return n, nil
	}
	_, err = o.Syncer.RefreshOne(ctx, n.Key)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrNetwork), errors.Is(err, apperr.ErrAuth) && !forWrite:
		o.logger.Warn("notes: refresh failed, using cached copy", slog.String("note", n.Key), slog.String("error", err.Error()))
		return n, nil
	case errors.Is(err, apperr.ErrNotFound):
		return types.Note{}, fmt.Errorf("note %s was deleted remotely: %w", n.Key, err)
	default:
		return types.Note{}, err
	}
	return o.Store.Note(ctx, n.Key)
}

func (o *Orchestrator) pick(ctx context.Context, it types.Item, notes []types.Note, noteIndex int) (types.Note, error) {
	if len(notes) == 0 {
		return types.Note{}, fmt.Errorf("%s: %w", resolve.Label(it), apperr.ErrNoNotes)
	}
	if noteIndex > 0 {
		if noteIndex > len(notes) {
			return types.Note{}, fmt.Errorf("%s has %d note(s), there is no note %d", it.Key, len(notes), noteIndex)
		}
		return notes[noteIndex-1], nil
	}

	labels := make([]string, len(notes))
	for i, n := range notes {
		labels[i] = fmt.Sprintf("%d. %s", i+1, NoteLabel(n))
	}
	i, err := resolve.Choose(ctx, o.Selector, fmt.Sprintf("%s has %d notes", resolve.Label(it), len(notes)), labels)
	if err != nil {
		return types.Note{}, err
	}
	return notes[i], nil
}

// render returns the note in the local dialect, from the markup cache when
// it still matches the stored version.
func (o *Orchestrator) render(ctx context.Context, n types.Note) (string, error) {
	if markup, ok := n.CachedMarkup(o.Pipeline.Dialect()); ok {
		return markup, nil
	}
	return o.Pipeline.ToLocal(ctx, n.HTML)
}

type submitFunc func(html string) (key string, version types.Version, err error)

func (o *Orchestrator) editAndSubmit(ctx context.Context, s *Session, seed string, submit submitFunc) (*Session, error) {
	path := filepath.Join(o.cfg.TempDir, "zotnote-"+s.ID+convert.Extension(o.Pipeline.Dialect()))
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		return s, fmt.Errorf("writing edit buffer: %w", err)
	}
	s.Path = path
	s.enter(StateEditing)
	o.logger.Debug("notes: editing", slog.String("session", s.ID), slog.String("path", path))

	code, err := o.Editor.Edit(ctx, path)
	if err != nil {
		return s, fmt.Errorf("%w: %w (buffer kept at %s)", apperr.ErrEditorFailed, err, path)
	}
	if code != 0 {
		return s, fmt.Errorf("%w: exit status %d (buffer kept at %s)", apperr.ErrEditorFailed, code, path)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("reading edit buffer: %w", err)
	}
	if bytes.Equal(buf, []byte(seed)) {
		s.enter(StateUnchangedAbort)
		o.discard(s)
		return s, nil
	}
	markup := string(buf)

	html, err := o.Pipeline.ToRemote(ctx, markup)
	if err != nil {
		return s, fmt.Errorf("%w (buffer kept at %s)", err, path)
	}
	s.enter(StateConvertedBack)

	s.enter(StateSubmitting)
	key, version, err := submit(html)
	if errors.Is(err, apperr.ErrConflict) {
		s.enter(StateConflict)
		return s, fmt.Errorf("%w (buffer kept at %s)", err, path)
	}
	if err != nil {
		return s, fmt.Errorf("%w (buffer kept at %s)", err, path)
	}
	s.NoteKey = key

	if _, err := o.Syncer.CommitWrite(ctx, key, version, markup, o.Pipeline.Dialect()); err != nil {
		// The remote has the note; the next sync brings the store in line.
		return s, fmt.Errorf("note %s saved remotely, updating local cache: %w", key, err)
	}
	s.enter(StateCommitted)
	o.logger.Info("notes: committed", slog.String("session", s.ID), slog.String("note", key), slog.Int64("version", version))
	o.discard(s)
	return s, nil
}

func (o *Orchestrator) discard(s *Session) {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.Warn("notes: removing edit buffer", slog.String("path", s.Path), slog.String("error", err.Error()))
		return
	}
	s.Path = ""
}

// NoteLabel is the start of a note's text on one line, shortened for menus.
func NoteLabel(n types.Note) string {
	text := strings.Join(strings.Fields(index.PlainText(n.HTML)), " ")
	if text == "" {
		return "(empty note)"
	}
	if r := []rune(text); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return text
}

// newSession starts a session with a short random id.
func newSession() *Session {
	return &Session{ID: strings.ReplaceAll(uuid.NewString(), "-", "")[:12]}
}

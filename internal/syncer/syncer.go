// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package syncer reconciles the local store with the remote library. It is
// the only component that writes library records into the store: remote
// pulls, single-record refreshes, and the local copy of a successful note
// write all go through it.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/internal/fslock"
	"github.com/pdiddy/zotnote/internal/index"
	"github.com/pdiddy/zotnote/internal/store"
	"github.com/pdiddy/zotnote/pkg/types"
)

// Remote is the read side of the remote library.
type Remote interface {
	// ChangedSince calls fn for every record modified after version since
	// and returns the library version the listing reflects.
	ChangedSince(ctx context.Context, since types.Version, fn func(types.Record) error) (types.Version, error)

	// DeletedSince returns the keys of records deleted after version since.
	DeletedSince(ctx context.Context, since types.Version) ([]string, error)

	// FetchOne returns the current remote state of one record.
	FetchOne(ctx context.Context, key string) (types.Record, error)
}

// Mode selects how much of the library a sync pass requests.
type Mode int

const (
	// ModeIncremental requests only records changed since the stored
	// high-water version.
	ModeIncremental Mode = iota

	// ModeFull requests every record and drops local entries the remote
	// no longer lists.
	ModeFull
)

func (m Mode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "incremental"
}

// Summary counts what a sync pass did.
type Summary struct {
	Mode      Mode
	Created   int
	Updated   int
	Unchanged int
	Deleted   int

	// LibraryVersion is the high-water mark after the pass. It is only
	// advanced when the pass completes.
	LibraryVersion types.Version
}

func (s Summary) String() string {
	return fmt.Sprintf("%d created, %d updated, %d unchanged, %d deleted",
		s.Created, s.Updated, s.Unchanged, s.Deleted)
}

// Syncer pulls remote changes into the store and keeps the search index
// in step with every write.
type Syncer struct {
	store  *store.Store
	index  *index.Index
	remote Remote
	logger *slog.Logger
	now    func() time.Time
}

// New creates a syncer writing into st and ix from remote.
func New(st *store.Store, ix *index.Index, remote Remote, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{store: st, index: ix, remote: remote, logger: logger, now: time.Now}
}

// Sync runs one pass. An incremental pass against a store that has never
// completed a sync runs as a full pass.
//
// Records are applied one transaction at a time as they arrive, so when
// the remote fails midway everything received so far stays cached and the
// affected search documents are still rebuilt. The high-water mark only
// moves, and full-pass deletions only happen, after the listing finished.
func (s *Syncer) Sync(ctx context.Context, mode Mode) (Summary, error) {
	lock, err := fslock.Acquire(ctx, s.store.LockPath())
	if err != nil {
		return Summary{}, err
	}
	defer lock.Release()

	state, err := s.store.SyncState(ctx)
	if err != nil {
		return Summary{}, err
	}
	if state.LibraryVersion == 0 {
		mode = ModeFull
	}
	since := state.LibraryVersion
	if mode == ModeFull {
		since = 0
	}

	sum := Summary{Mode: mode, LibraryVersion: state.LibraryVersion}
	dirty := make(map[string]struct{})
	seen := make(map[string]struct{})

	s.logger.Info("sync: starting", slog.String("mode", mode.String()), slog.Int64("since", since))

	libVersion, err := s.remote.ChangedSince(ctx, since, func(rec types.Record) error {
		seen[rec.Key] = struct{}{}
		res, affected, err := s.store.Apply(ctx, rec)
		if err != nil {
			return err
		}
		s.count(&sum, res)
		if res != store.Unchanged && affected != "" {
			dirty[affected] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return sum, s.abort(ctx, dirty, fmt.Errorf("fetching changes: %w", err))
	}

	var deleted []string
	if mode == ModeFull {
		local, err := s.store.Keys(ctx)
		if err != nil {
			return sum, s.abort(ctx, dirty, err)
		}
		for key := range local {
			if _, ok := seen[key]; !ok {
				deleted = append(deleted, key)
			}
		}
		sort.Strings(deleted)
	} else {
		deleted, err = s.remote.DeletedSince(ctx, since)
		if err != nil {
			return sum, s.abort(ctx, dirty, fmt.Errorf("fetching deletions: %w", err))
		}
	}

	n, err := s.deleteLocal(ctx, deleted, dirty)
	sum.Deleted = n
	if err != nil {
		return sum, s.abort(ctx, dirty, err)
	}

	if err := s.reindex(ctx, dirty); err != nil {
		return sum, err
	}

	if libVersion < state.LibraryVersion && mode != ModeFull {
		libVersion = state.LibraryVersion
	}
	if err := s.store.SetSyncState(ctx, store.SyncState{LibraryVersion: libVersion, LastSync: s.now()}); err != nil {
		return sum, err
	}
	sum.LibraryVersion = libVersion

	s.logger.Info("sync: done",
		slog.String("mode", mode.String()),
		slog.Int("created", sum.Created),
		slog.Int("updated", sum.Updated),
		slog.Int("unchanged", sum.Unchanged),
		slog.Int("deleted", sum.Deleted),
		slog.Int64("library_version", libVersion))
	return sum, nil
}

// SyncIfDue runs an incremental pass when at least interval has passed
// since the last completed one. It reports whether a pass ran. A network
// failure is logged and swallowed so callers carry on with cached data;
// authentication failures are returned.
func (s *Syncer) SyncIfDue(ctx context.Context, interval time.Duration) (Summary, bool, error) {
	state, err := s.store.SyncState(ctx)
	if err != nil {
		return Summary{}, false, err
	}
	if !state.LastSync.IsZero() && s.now().Sub(state.LastSync) < interval {
		return Summary{}, false, nil
	}

	sum, err := s.Sync(ctx, ModeIncremental)
	if errors.Is(err, apperr.ErrNetwork) {
		s.logger.Warn("sync: remote unreachable, using cached data", slog.String("error", err.Error()))
		return sum, true, nil
	}
	return sum, true, err
}

// RefreshOne re-fetches a single record and applies it with the same
// version rules as a sync pass. A record the remote no longer has is
// removed locally and ErrNotFound is returned.
func (s *Syncer) RefreshOne(ctx context.Context, key string) (store.ApplyResult, error) {
	rec, err := s.remote.FetchOne(ctx, key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			lock, lerr := fslock.Acquire(ctx, s.store.LockPath())
			if lerr != nil {
				return store.Unchanged, lerr
			}
			defer lock.Release()
			dirty := make(map[string]struct{})
			if _, derr := s.deleteLocal(ctx, []string{key}, dirty); derr != nil {
				return store.Unchanged, derr
			}
			if rerr := s.reindex(ctx, dirty); rerr != nil {
				return store.Unchanged, rerr
			}
		}
		return store.Unchanged, fmt.Errorf("refreshing %s: %w", key, err)
	}

	res, err := s.ApplyLocalWrite(ctx, rec)
	if err != nil {
		return store.Unchanged, err
	}
	s.logger.Debug("sync: refreshed", slog.String("key", key), slog.String("result", res.String()))
	return res, nil
}

// ApplyLocalWrite stores a record the caller obtained from the remote,
// such as the acknowledged result of a note write, and updates the search
// document of the item it belongs to.
func (s *Syncer) ApplyLocalWrite(ctx context.Context, rec types.Record) (store.ApplyResult, error) {
	lock, err := fslock.Acquire(ctx, s.store.LockPath())
	if err != nil {
		return store.Unchanged, err
	}
	defer lock.Release()

	res, affected, err := s.store.Apply(ctx, rec)
	if err != nil {
		return store.Unchanged, err
	}
	if res != store.Unchanged && affected != "" {
		if err := s.index.Update(ctx, affected); err != nil {
			return res, err
		}
	}
	return res, nil
}

// CommitWrite records a note the caller has just written to the remote at
// version. The remote normalizes note HTML on write, so the stored body is
// re-fetched rather than taken from the caller; markup, the local text the
// write came from, is attached as the cached rendering of that version. If
// the remote has already moved past version, the fetched copy is stored
// without the markup.
func (s *Syncer) CommitWrite(ctx context.Context, key string, version types.Version, markup, dialect string) (store.ApplyResult, error) {
	rec, err := s.remote.FetchOne(ctx, key)
	if err != nil {
		return store.Unchanged, fmt.Errorf("fetching written note %s: %w", key, err)
	}
	if rec.Kind != types.KindNote || rec.Note == nil {
		return store.Unchanged, fmt.Errorf("%s is not a note", key)
	}
	if rec.Version == version {
		rec.Note.Markup, rec.Note.Dialect, rec.Note.MarkupVersion = markup, dialect, version
	} else {
		s.logger.Debug("sync: note moved on after write",
			slog.String("key", key), slog.Int64("written", version), slog.Int64("remote", rec.Version))
	}
	return s.ApplyLocalWrite(ctx, rec)
}

// Reindex rebuilds every search document from the store.
func (s *Syncer) Reindex(ctx context.Context) (int, error) {
	lock, err := fslock.Acquire(ctx, s.store.LockPath())
	if err != nil {
		return 0, err
	}
	defer lock.Release()
	return s.index.Rebuild(ctx)
}

func (s *Syncer) count(sum *Summary, res store.ApplyResult) {
	switch res {
	case store.Created:
		sum.Created++
	case store.Updated:
		sum.Updated++
	default:
		sum.Unchanged++
	}
}

// deleteLocal removes keys from the store and marks the items whose search
// documents change. Keys that are not cached are skipped.
func (s *Syncer) deleteLocal(ctx context.Context, keys []string, dirty map[string]struct{}) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	local, err := s.store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, key := range keys {
		if _, ok := local[key]; !ok {
			continue
		}
		parent, err := s.store.Delete(ctx, key)
		if err != nil {
			return n, err
		}
		n++
		delete(dirty, key)
		if parent != "" {
			dirty[parent] = struct{}{}
		}
		s.logger.Debug("sync: deleted", slog.String("key", key))
	}
	return n, nil
}

// reindex rebuilds the search documents of the dirty items and clears the set.
func (s *Syncer) reindex(ctx context.Context, dirty map[string]struct{}) error {
	if len(dirty) == 0 {
		return nil
	}
	keys := make([]string, 0, len(dirty))
	for k := range dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := s.index.Update(ctx, keys...); err != nil {
		return fmt.Errorf("updating search index: %w", err)
	}
	for _, k := range keys {
		delete(dirty, k)
	}
	return nil
}

// abort rebuilds what was dirtied before cause and returns cause. The sync
// state is left untouched.
func (s *Syncer) abort(ctx context.Context, dirty map[string]struct{}, cause error) error {
	if err := s.reindex(context.WithoutCancel(ctx), dirty); err != nil {
		s.logger.Error("sync: reindex after failure", slog.String("error", err.Error()))
	}
	s.logger.Warn("sync: aborted", slog.String("error", cause.Error()))
	return cause
}

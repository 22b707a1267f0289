// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/internal/index"
	"github.com/pdiddy/zotnote/internal/store"
	"github.com/pdiddy/zotnote/pkg/types"
)

// --- fake remote ---

// fakeRemote is an in-memory library. Every change bumps the library
// version and stamps the changed record with it, as the real service does.
type fakeRemote struct {
	version int64
	records map[string]types.Record
	deleted map[string]int64

	// failAfter makes ChangedSince fail with failErr after that many
	// records; negative disables it.
	failAfter int
	failErr   error

	fetches int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: map[string]types.Record{}, deleted: map[string]int64{}, failAfter: -1}
}

func (f *fakeRemote) putItem(key, title string) {
	f.version++
	f.records[key] = types.Record{
		Kind: types.KindItem, Key: key, Version: f.version,
		Item: &types.Item{Key: key, Version: f.version, ItemType: "journalArticle", Title: title},
	}
}

func (f *fakeRemote) putNote(key, parent, html string) {
	f.version++
	f.records[key] = types.Record{
		Kind: types.KindNote, Key: key, Version: f.version, ParentKey: parent,
		Note: &types.Note{Key: key, ParentKey: parent, Version: f.version, HTML: html},
	}
}

func (f *fakeRemote) remove(key string) {
	f.version++
	delete(f.records, key)
	f.deleted[key] = f.version
	for k, rec := range f.records {
		if rec.ParentKey == key {
			delete(f.records, k)
			f.deleted[k] = f.version
		}
	}
}

func (f *fakeRemote) ChangedSince(_ context.Context, since types.Version, fn func(types.Record) error) (types.Version, error) {
	keys := make([]string, 0, len(f.records))
	for k, rec := range f.records {
		if rec.Version > since {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for i, k := range keys {
		if f.failAfter >= 0 && i >= f.failAfter {
			return 0, f.failErr
		}
		if err := fn(f.records[k]); err != nil {
			return 0, err
		}
	}
	return f.version, nil
}

func (f *fakeRemote) DeletedSince(_ context.Context, since types.Version) ([]string, error) {
	var keys []string
	for k, v := range f.deleted {
		if v > since {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeRemote) FetchOne(_ context.Context, key string) (types.Record, error) {
	f.fetches++
	rec, ok := f.records[key]
	if !ok {
		return types.Record{}, fmt.Errorf("item %s: %w", key, apperr.ErrNotFound)
	}
	return rec, nil
}

// --- helpers ---

func testSyncer(t testing.TB, remote Remote) (*Syncer, *store.Store, *index.Index) {
	t.Helper()
	st, err := store.Open(types.StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ix := index.New(st, nil)
	return New(st, ix, remote, nil), st, ix
}

type noteState struct {
	Key, ParentKey, HTML string
	Version              int64
}

type storeState struct {
	Items map[string]types.Item
	Notes map[string]noteState
	Docs  map[string]store.SearchDoc
}

func snapshot(t require.TestingT, st *store.Store) storeState {
	ctx := context.Background()
	out := storeState{Items: map[string]types.Item{}, Notes: map[string]noteState{}, Docs: map[string]store.SearchDoc{}}

	items, err := st.Items(ctx)
	require.NoError(t, err)
	for _, it := range items {
		out.Items[it.Key] = it
	}

	keys, err := st.Keys(ctx)
	require.NoError(t, err)
	for key, kind := range keys {
		if kind != types.KindNote {
			continue
		}
		n, err := st.Note(ctx, key)
		require.NoError(t, err)
		out.Notes[key] = noteState{Key: n.Key, ParentKey: n.ParentKey, HTML: n.HTML, Version: n.Version}
	}

	docKeys, err := st.SearchDocKeys(ctx)
	require.NoError(t, err)
	for _, k := range docKeys {
		doc, _, err := st.SearchDoc(ctx, k)
		require.NoError(t, err)
		out.Docs[k] = doc
	}
	return out
}

// --- tests ---

func TestSync_FirstRunIsFull(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.putItem("F5R83K6P", "Deep Learning")
	remote.putNote("NOTE0001", "F5R83K6P", "<p>chapter notes</p>")

	s, st, ix := testSyncer(t, remote)
	sum, err := s.Sync(ctx, ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, ModeFull, sum.Mode)
	assert.Equal(t, 2, sum.Created)
	assert.Equal(t, int64(2), sum.LibraryVersion)

	state, err := st.SyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.LibraryVersion)
	assert.False(t, state.LastSync.IsZero())

	got, err := ix.Query(ctx, "chapter", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"F5R83K6P"}, got)
}

func TestSync_IncrementalAppliesChangesAndDeletions(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.putItem("AAAA0001", "Graph Theory")
	remote.putItem("BBBB0002", "Category Theory")
	remote.putNote("NOTE0001", "AAAA0001", "<p>old</p>")

	s, st, ix := testSyncer(t, remote)
	_, err := s.Sync(ctx, ModeIncremental)
	require.NoError(t, err)

	remote.putNote("NOTE0001", "AAAA0001", "<p>revised</p>")
	remote.remove("BBBB0002")
	remote.putItem("CCCC0003", "Topology")

	sum, err := s.Sync(ctx, ModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, ModeIncremental, sum.Mode)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Deleted)

	n, err := st.Note(ctx, "NOTE0001")
	require.NoError(t, err)
	assert.Equal(t, "<p>revised</p>", n.HTML)

	_, err = st.Item(ctx, "BBBB0002")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	got, err := ix.Query(ctx, "revised", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA0001"}, got)
	got, err = ix.Query(ctx, "old", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = ix.Query(ctx, "theory", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA0001"}, got)
}

func TestSync_FullDropsEntriesMissingRemotely(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.putItem("AAAA0001", "Kept")
	remote.putItem("BBBB0002", "Dropped")

	s, st, _ := testSyncer(t, remote)
	_, err := s.Sync(ctx, ModeFull)
	require.NoError(t, err)

	// Lose the deletion log so only a full listing can notice.
	delete(remote.records, "BBBB0002")

	sum, err := s.Sync(ctx, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Unchanged)
	assert.Equal(t, 1, sum.Deleted)

	ok, err := st.HasItem(ctx, "BBBB0002")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSync_PartialFailureKeepsRetrievedRecords(t *testing.T) {
	tests := []struct {
		name    string
		failErr error
		is      error
	}{
		{"network", apperr.NetworkFailure(errors.New("connection refused")), apperr.ErrNetwork},
		{"auth", fmt.Errorf("status 403: %w", apperr.ErrAuth), apperr.ErrAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			remote := newFakeRemote()
			remote.putItem("AAAA0001", "first")
			remote.putItem("BBBB0002", "second")
			remote.putItem("CCCC0003", "third")
			remote.failAfter = 2
			remote.failErr = tt.failErr

			s, st, ix := testSyncer(t, remote)
			sum, err := s.Sync(ctx, ModeIncremental)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.is), "got %v", err)
			assert.Equal(t, 2, sum.Created)

			for _, key := range []string{"AAAA0001", "BBBB0002"} {
				ok, err := st.HasItem(ctx, key)
				require.NoError(t, err)
				assert.True(t, ok, key)
			}
			got, err := ix.Query(ctx, "second", 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"BBBB0002"}, got)

			state, err := st.SyncState(ctx)
			require.NoError(t, err)
			assert.Zero(t, state.LibraryVersion)

			// The next pass picks up where the failed one stopped.
			remote.failAfter = -1
			sum, err = s.Sync(ctx, ModeIncremental)
			require.NoError(t, err)
			assert.Equal(t, 1, sum.Created)
			assert.Equal(t, 2, sum.Unchanged)
		})
	}
}

func TestSync_FailureNeverDeletes(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.putItem("AAAA0001", "Kept")

	s, st, _ := testSyncer(t, remote)
	_, err := s.Sync(ctx, ModeFull)
	require.NoError(t, err)

	remote.failAfter = 0
	remote.failErr = apperr.NetworkFailure(errors.New("timeout"))
	_, err = s.Sync(ctx, ModeFull)
	require.Error(t, err)

	ok, err := st.HasItem(ctx, "AAAA0001")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncIfDue(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.putItem("AAAA0001", "Graph Theory")

	s, _, _ := testSyncer(t, remote)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, ran, err := s.SyncIfDue(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ran, "never synced, so a pass is due")

	now = now.Add(time.Minute)
	_, ran, err = s.SyncIfDue(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ran)

	now = now.Add(10 * time.Minute)
	remote.putItem("BBBB0002", "unreachable")
	remote.failAfter = 0
	remote.failErr = apperr.NetworkFailure(errors.New("no route to host"))
	_, ran, err = s.SyncIfDue(ctx, 5*time.Minute)
	require.NoError(t, err, "network failures degrade to cached data")
	assert.True(t, ran)

	remote.failErr = fmt.Errorf("status 401: %w", apperr.ErrAuth)
	_, _, err = s.SyncIfDue(ctx, 5*time.Minute)
	assert.True(t, errors.Is(err, apperr.ErrAuth))
}

func TestRefreshOne(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.putItem("AAAA0001", "Graph Theory")
	remote.putNote("NOTE0001", "AAAA0001", "<p>v1</p>")

	s, st, ix := testSyncer(t, remote)
	_, err := s.Sync(ctx, ModeFull)
	require.NoError(t, err)

	res, err := s.RefreshOne(ctx, "NOTE0001")
	require.NoError(t, err)
	assert.Equal(t, store.Unchanged, res)

	remote.putNote("NOTE0001", "AAAA0001", "<p>fresher</p>")
	res, err = s.RefreshOne(ctx, "NOTE0001")
	require.NoError(t, err)
	assert.Equal(t, store.Updated, res)

	got, err := ix.Query(ctx, "fresher", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA0001"}, got)

	remote.remove("NOTE0001")
	_, err = s.RefreshOne(ctx, "NOTE0001")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = st.Note(ctx, "NOTE0001")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	got, err = ix.Query(ctx, "fresher", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCommitWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the remote body with the markup of the write", func(t *testing.T) {
		remote := newFakeRemote()
		remote.putItem("AAAA0001", "Deep Learning")
		remote.putNote("NOTE0001", "AAAA0001", "<p>old</p>")
		s, st, ix := testSyncer(t, remote)
		_, err := s.Sync(ctx, ModeFull)
		require.NoError(t, err)

		// The remote keeps a normalized body, not the HTML that was sent.
		remote.putNote("NOTE0001", "AAAA0001", `<div data-schema-version="9"><p>rewritten</p></div>`)
		written := remote.version

		res, err := s.CommitWrite(ctx, "NOTE0001", written, "rewritten\n", "markdown")
		require.NoError(t, err)
		assert.Equal(t, store.Updated, res)

		n, err := st.Note(ctx, "NOTE0001")
		require.NoError(t, err)
		assert.Equal(t, `<div data-schema-version="9"><p>rewritten</p></div>`, n.HTML)
		markup, ok := n.CachedMarkup("markdown")
		require.True(t, ok)
		assert.Equal(t, "rewritten\n", markup)

		keys, err := ix.Query(ctx, "rewritten", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAAA0001"}, keys)

		// A later sync finds nothing to change.
		sum, err := s.Sync(ctx, ModeFull)
		require.NoError(t, err)
		assert.Zero(t, sum.Updated)
	})

	t.Run("drops the markup when the remote moved on", func(t *testing.T) {
		remote := newFakeRemote()
		remote.putItem("AAAA0001", "Deep Learning")
		remote.putNote("NOTE0001", "AAAA0001", "<p>ours</p>")
		written := remote.version
		remote.putNote("NOTE0001", "AAAA0001", "<p>theirs</p>")
		s, st, _ := testSyncer(t, remote)

		_, err := s.CommitWrite(ctx, "NOTE0001", written, "ours\n", "markdown")
		require.NoError(t, err)
		n, err := st.Note(ctx, "NOTE0001")
		require.NoError(t, err)
		assert.Equal(t, "<p>theirs</p>", n.HTML)
		_, ok := n.CachedMarkup("markdown")
		assert.False(t, ok)
	})

	t.Run("fetch failure", func(t *testing.T) {
		s, _, _ := testSyncer(t, newFakeRemote())
		_, err := s.CommitWrite(ctx, "NOTE0001", 3, "x", "markdown")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.putItem("AAAA0001", "Graph Theory")

	s, st, _ := testSyncer(t, remote)
	_, err := s.Sync(ctx, ModeFull)
	require.NoError(t, err)
	require.NoError(t, st.ReplaceSearchDocs(ctx, nil))

	n, err := s.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// Any interleaving of remote edits and incremental passes ends in the same
// store a single full pass produces.
func TestSync_IncrementalConvergesToFull(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		remote := newFakeRemote()
		incremental, incStore, _ := testSyncer(t, remote)

		var items, notes []string
		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			switch op := rapid.IntRange(0, 5).Draw(rt, "op"); {
			case op == 0 || len(items) == 0:
				key := fmt.Sprintf("ITEM%04d", i)
				items = append(items, key)
				remote.putItem(key, fmt.Sprintf("title %d", i))
			case op == 1:
				key := rapid.SampledFrom(items).Draw(rt, "item")
				if _, ok := remote.records[key]; ok {
					remote.putItem(key, fmt.Sprintf("retitled %d", i))
				}
			case op == 2:
				parent := rapid.SampledFrom(items).Draw(rt, "parent")
				if _, ok := remote.records[parent]; ok {
					key := fmt.Sprintf("NOTE%04d", i)
					notes = append(notes, key)
					remote.putNote(key, parent, fmt.Sprintf("<p>note %d</p>", i))
				}
			case op == 3 && len(notes) > 0:
				key := rapid.SampledFrom(notes).Draw(rt, "note")
				if rec, ok := remote.records[key]; ok {
					remote.putNote(key, rec.ParentKey, fmt.Sprintf("<p>edit %d</p>", i))
				}
			case op == 4:
				key := rapid.SampledFrom(append(append([]string{}, items...), notes...)).Draw(rt, "victim")
				if _, ok := remote.records[key]; ok {
					remote.remove(key)
				}
			default:
				_, err := incremental.Sync(ctx, ModeIncremental)
				require.NoError(rt, err)
			}
		}
		_, err := incremental.Sync(ctx, ModeIncremental)
		require.NoError(rt, err)

		full, fullStore, _ := testSyncer(t, remote)
		_, err = full.Sync(ctx, ModeFull)
		require.NoError(rt, err)

		require.Equal(rt, snapshot(rt, fullStore), snapshot(rt, incStore))
	})
}

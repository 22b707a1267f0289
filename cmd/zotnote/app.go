package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/pdiddy/zotnote/internal/config"
	"github.com/pdiddy/zotnote/internal/convert"
	"github.com/pdiddy/zotnote/internal/index"
	"github.com/pdiddy/zotnote/internal/launch"
	"github.com/pdiddy/zotnote/internal/notes"
	"github.com/pdiddy/zotnote/internal/prompt"
	"github.com/pdiddy/zotnote/internal/remote"
	"github.com/pdiddy/zotnote/internal/resolve"
	"github.com/pdiddy/zotnote/internal/store"
	"github.com/pdiddy/zotnote/internal/syncer"
	"github.com/pdiddy/zotnote/pkg/types"
)

// app wires the components one command needs.
type app struct {
	store    *store.Store
	index    *index.Index
	syncer   *syncer.Syncer
	resolver *resolve.Resolver
	selector prompt.Asker

	// client is nil when no credentials are configured.
	client *remote.Client
}

// offline stands in for the remote when credentials are missing, so
// cached commands keep working and remote ones fail with the reason.
type offline struct{ err error }

func (o offline) ChangedSince(context.Context, types.Version, func(types.Record) error) (types.Version, error) {
	return 0, o.err
}
func (o offline) DeletedSince(context.Context, types.Version) ([]string, error) { return nil, o.err }
func (o offline) FetchOne(context.Context, string) (types.Record, error) {
	return types.Record{}, o.err
}

// openApp opens the store and builds the components. With needRemote set,
// missing credentials are an error.
func openApp(needRemote bool) (*app, error) {
	var rem syncer.Remote
	var client *remote.Client
	if err := config.RequireRemote(cfg); err != nil {
		if needRemote {
			return nil, err
		}
		rem = offline{err: err}
	} else {
		c, err := remote.New(cfg.Zotero, logger)
		if err != nil {
			return nil, err
		}
		rem, client = c, c
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	ix := index.New(st, logger)
	sel := prompt.ForTerminal(os.Stdin, os.Stderr)
	return &app{
		store:    st,
		index:    ix,
		syncer:   syncer.New(st, ix, rem, logger),
		resolver: resolve.New(st, ix, sel, logger),
		selector: sel,
		client:   client,
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

// autoSync runs an incremental sync when the configured interval has
// passed. Being offline is not an error here.
func (a *app) autoSync(ctx context.Context) error {
	if a.client == nil || cfg.Sync.Interval <= 0 {
		return nil
	}
	sum, ran, err := a.syncer.SyncIfDue(ctx, cfg.Sync.Interval)
	if err != nil {
		return err
	}
	if ran {
		logger.Info("auto sync", slog.String("summary", sum.String()))
	}
	return nil
}

// orchestrator builds the note session runner for dialect.
func (a *app) orchestrator(ctx context.Context, dialect string) (*notes.Orchestrator, error) {
	nc := cfg.Notes
	if dialect != "" {
		nc.Dialect = dialect
	}
	conv, err := convert.New(ctx, nc, logger)
	if err != nil {
		return nil, err
	}
	return notes.New(nc, notes.Deps{
		Store:     a.store,
		Resolver:  a.resolver,
		Syncer:    a.syncer,
		Writer:    a.client,
		Pipeline:  convert.NewPipeline(conv, nc.Dialect),
		Editor:    launch.NewEditor(nc.Editor),
		Selector:  a.selector,
		Confirmer: a.selector,
	}, logger), nil
}

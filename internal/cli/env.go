package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/storesync/internal/catalog"
	"github.com/roach88/storesync/internal/checkout"
	"github.com/roach88/storesync/internal/config"
	"github.com/roach88/storesync/internal/engine"
	"github.com/roach88/storesync/internal/identity"
	"github.com/roach88/storesync/internal/remote"
	"github.com/roach88/storesync/internal/store"
)

// tiers is the pair of local stores an engine reads and writes.
type tiers struct {
	local   *store.Store
	session *store.Store
}

func openTiers(cfg config.Config) (*tiers, error) {
	slog.Debug("opening database", "path", cfg.Database)
	local, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	session, err := store.OpenSession()
	if err != nil {
		local.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open session store", err)
	}
	return &tiers{local: local, session: session}, nil
}

func (t *tiers) Close() {
	if err := t.session.Close(); err != nil {
		slog.Error("error closing session store", "error", err)
	}
	if err := t.local.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// accessToken reads the bearer token of the persisted session.
func (t *tiers) accessToken() string {
	sess, ok := identity.AuthSession.Load(context.Background(), t.local)
	if !ok {
		return ""
	}
	return sess.AccessToken
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load mission catalog", err)
	}
	return cat, nil
}

// newClient returns the remote client, or nil when no remote is configured.
func newClient(cfg config.Config, token func() string) (*remote.Client, error) {
	if cfg.RemoteURL == "" {
		return nil, nil
	}
	client, err := remote.NewClient(remote.Config{
		BaseURL: cfg.RemoteURL,
		Token:   token,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create remote client", err)
	}
	return client, nil
}

// engineOptions wires an engine to the local tiers and, when configured,
// to the remote service and realtime feed.
func engineOptions(cfg config.Config, t *tiers, offline bool) (engine.Options, error) {
	cat, err := loadCatalog(cfg.MissionCatalog)
	if err != nil {
		return engine.Options{}, err
	}
	opts := engine.Options{
		Local:          t.local,
		Session:        t.session,
		Catalog:        cat,
		WritebackDelay: cfg.WritebackDelay,
		SpinDuration:   cfg.SpinDuration,
	}
	if offline {
		return opts, nil
	}

	client, err := newClient(cfg, t.accessToken)
	if err != nil {
		return engine.Options{}, err
	}
	if client == nil {
		slog.Info("no remote configured, running offline")
		return opts, nil
	}
	opts.Profiles = client
	opts.Products = client
	opts.Checkout = checkout.NewService(client, client)

	feedURL, err := cfg.FeedURL()
	if err != nil {
		return engine.Options{}, WrapExitError(ExitCommandError, "invalid realtime endpoint", err)
	}
	if feedURL != "" {
		opts.Feed = remote.NewFeed(feedURL, t.accessToken)
	}
	return opts, nil
}

package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/storesync/internal/catalog"
	"github.com/roach88/storesync/internal/discount"
	"github.com/roach88/storesync/internal/identity"
	"github.com/roach88/storesync/internal/missions"
	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/remote"
	"github.com/roach88/storesync/internal/store"
)

// Login persists the authentication session and switches to its identity.
func (e *Engine) Login(ctx context.Context, sess identity.Session) error {
	ident, ok := identity.FromSession(sess)
	if !ok {
		return model.NewValidationError("login", errors.New("session carries no registered user"))
	}
	e.resolver.SaveSession(ctx, sess)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	slog.Info("login", "user", ident.ID)
	e.switchIdentity(ident)
	return nil
}

// Logout forgets the session and switches to a fresh guest.
func (e *Engine) Logout(ctx context.Context) error {
	e.resolver.Forget(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	slog.Info("logout", "user", e.ident.ID)
	e.switchIdentity(model.Guest())
	return nil
}

// SwitchIdentity replaces the active identity wholesale.
func (e *Engine) SwitchIdentity(ident model.Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.switchIdentity(ident)
	return nil
}

// switchIdentity tears down everything bound to the previous identity,
// loads the new identity's local slices and, for registered identities,
// starts remote reconciliation. Nothing is carried over from the previous
// identity, and a guest's state is never merged into a registered one.
func (e *Engine) switchIdentity(ident model.Identity) {
	e.teardownLocked()

	e.gen++
	e.ident = ident
	e.synced = false
	e.syncedCh = make(chan struct{})
	e.subs = newScope()
	e.inventory = nil
	e.resolver.Remember(e.ctx, ident)

	e.loadLocalLocked()
	e.tracker.Reset(!ident.IsGuest())
	// Offline there are no remote rows to protect.
	e.missionsLoaded = e.opts.Profiles == nil

	slog.Debug("identity switched", "user", ident.ID, "generation", e.gen)

	if ident.IsGuest() {
		e.markSyncedLocked()
		return
	}
	if e.opts.Profiles == nil {
		slog.Info("no remote profile store, running offline", "user", ident.ID)
		e.markSyncedLocked()
		return
	}

	gen, userID, subs := e.gen, ident.ID, e.subs
	e.exec.Go(func(ctx context.Context) {
		e.reconcile(ctx, gen, userID, subs)
	})
}

// loadLocalLocked replaces in-memory slices with the local tier's copy for
// the current identity.
func (e *Engine) loadLocalLocked() {
	id := e.ident.ID
	e.favorites = store.Favorites.Load(e.ctx, e.opts.Local, id)
	e.ledger.Replace(store.Cart.Load(e.ctx, e.opts.Local, id))
	e.wheel.Restore(model.Discount{
		Percent: store.Discount.Load(e.ctx, e.opts.Local, id),
		Spent:   store.SpinUsed.Load(e.ctx, e.opts.Local, id),
	})
}

// persistLocked mirrors the in-memory slices to the local tier.
func (e *Engine) persistLocked() {
	id := e.ident.ID
	store.Favorites.Save(e.ctx, e.opts.Local, id, e.favorites)
	store.Cart.Save(e.ctx, e.opts.Local, id, e.ledger.Lines())
	d := e.wheel.Discount()
	store.Discount.Save(e.ctx, e.opts.Local, id, d.Percent)
	store.SpinUsed.Save(e.ctx, e.opts.Local, id, d.Spent)
}

func (e *Engine) markSyncedLocked() {
	if e.synced {
		return
	}
	e.synced = true
	close(e.syncedCh)
}

// fetched is what one reconcile pass read from the remote tier. Each part
// fails independently.
type fetched struct {
	profile   map[string]any
	profileOK bool

	favorites   []string
	favoritesOK bool

	missions   []model.MissionProgress
	missionsOK bool
}

// reconcile fetches the remote state of userID, posts it for overlay and
// opens the identity's realtime subscriptions. Sync is marked initialized
// whatever happens.
func (e *Engine) reconcile(ctx context.Context, gen uint64, userID string, subs *scope) {
	defer e.post(gen, EventSyncReady, e.markSyncedLocked)

	var f fetched
	doc, err := e.opts.Profiles.GetProfile(ctx, userID)
	switch {
	case err == nil:
		f.profile, f.profileOK = doc, true
	case errors.Is(err, model.ErrNotFound):
		// First login: no document yet. Overlay nothing, still count a login.
		f.profileOK = true
	default:
		logTaskError("fetch profile", userID, model.NewRemoteFetchError("fetch profile", err))
	}

	if favs, err := e.opts.Profiles.ListFavorites(ctx, userID); err != nil {
		logTaskError("fetch favorites", userID, model.NewRemoteFetchError("fetch favorites", err))
	} else {
		f.favorites, f.favoritesOK = favs, true
	}

	if rows, err := e.opts.Profiles.ListMissions(ctx, userID); err != nil {
		logTaskError("fetch missions", userID, model.NewRemoteFetchError("fetch missions", err))
	} else {
		f.missions, f.missionsOK = rows, true
	}

	e.post(gen, EventOverlay, func() { e.applyOverlayLocked(f) })

	if e.opts.Feed == nil {
		return
	}
	e.subscribe(ctx, subs, remote.Topic{
		Table:  remote.TableProfiles,
		Event:  remote.EventUpdate,
		Filter: remote.ProfileFilter(userID),
	}, func(ch remote.Change) {
		e.post(gen, EventProfilePush, func() { e.applyProfilePushLocked(ch) })
	})
	e.subscribe(ctx, subs, remote.Topic{
		Table: remote.TableReviews,
		Event: remote.EventInsert,
	}, func(remote.Change) {
		e.post(gen, EventReviewInserted, e.refreshCatalog)
	})
}

func (e *Engine) subscribe(ctx context.Context, subs *scope, topic remote.Topic, handler func(remote.Change)) {
	sub, err := e.opts.Feed.Subscribe(ctx, topic, handler)
	if err != nil {
		slog.Warn("realtime subscribe failed", "table", topic.Table, "filter", topic.Filter, "error", err)
		return
	}
	subs.Add(sub)
}

// applyOverlayLocked overlays fetched remote state on the in-memory state.
// Remote values win only for fields that are present and well typed.
func (e *Engine) applyOverlayLocked(f fetched) {
	if f.profileOK && f.profile != nil {
		doc := model.DecodeProfile(f.profile)
		e.overlayIdentityLocked(doc)

		if doc.CartPresent {
			e.ledger.Replace(doc.Cart)
		}
		if e.wheel.State() != discount.Spinning && (doc.Discount != nil || doc.HasSpun != nil) {
			d := e.wheel.Discount()
			if doc.Discount != nil {
				d.Percent = *doc.Discount
			}
			if doc.HasSpun != nil {
				d.Spent = *doc.HasSpun
			}
			e.wheel.Restore(d)
		}
	}

	if f.favoritesOK {
		e.favorites = append([]string{}, f.favorites...)
		e.ident.Stats.ProductsFavorited = len(e.favorites)
	}

	if f.missionsOK {
		e.missionsLoaded = true
		for _, p := range e.tracker.Merge(f.missions) {
			e.upsertMissionLocked(p)
		}
	}

	if f.profileOK {
		e.registerLoginLocked()
	}

	e.persistLocked()
	e.resolver.Remember(e.ctx, e.ident)
	slog.Info("remote profile overlaid",
		"user", e.ident.ID,
		"profile", f.profileOK,
		"favorites", f.favoritesOK,
		"missions", f.missionsOK,
	)
}

func (e *Engine) overlayIdentityLocked(doc model.ProfileDoc) {
	id := &e.ident
	if doc.Coins != nil {
		id.Coins = *doc.Coins
	}
	if doc.LoginStreak != nil {
		id.Stats.LoginStreak = *doc.LoginStreak
	}
	if doc.LastLoginDate != nil {
		id.Stats.LastLoginDate = *doc.LastLoginDate
	}
	if doc.LoginDaysTotal != nil {
		id.Stats.LoginDaysTotal = *doc.LoginDaysTotal
	}
	if doc.Membership != nil {
		id.Membership = *doc.Membership
	}
	if doc.AvatarURL != nil && *doc.AvatarURL != "" {
		id.PhotoRef = *doc.AvatarURL
	}
	if doc.Location != nil {
		id.Location = *doc.Location
	}
	if doc.BirthDate != nil {
		id.BirthDate = *doc.BirthDate
	}
	if doc.Phone != nil {
		id.Phone = *doc.Phone
	}
	if doc.FullName != nil {
		id.FullName = *doc.FullName
		if *doc.FullName != "" {
			id.DisplayName = *doc.FullName
		}
	}
}

// registerLoginLocked advances the daily login streak once per calendar
// day and pushes the result to the profile and the login missions.
func (e *Engine) registerLoginLocked() {
	st := &e.ident.Stats
	lu := missions.RegisterLogin(st.LoginStreak, st.LoginDaysTotal, st.LastLoginDate, e.sched.Now())
	if !lu.NewDay {
		return
	}
	st.LoginStreak = lu.Streak
	st.LoginDaysTotal = lu.DaysTotal
	st.LastLoginDate = lu.LastLoginDate

	e.patchProfileLocked("record login", map[string]any{
		model.FieldLoginStreak:    lu.Streak,
		model.FieldLastLoginDate:  lu.LastLoginDate,
		model.FieldLoginDaysTotal: lu.DaysTotal,
	})
	e.advanceMissionsLocked(catalog.TriggerLoginStreak, lu.Streak, true, true)
	e.advanceMissionsLocked(catalog.TriggerLoginDays, 1, false, true)
}

// applyProfilePushLocked applies a realtime profile change. Only the
// favorites array is taken from pushes; the other fields of the document
// are owned by this engine's own writeback.
func (e *Engine) applyProfilePushLocked(ch remote.Change) {
	doc := model.DecodeProfile(ch.Record)
	if doc.ID != "" && doc.ID != e.ident.ID {
		return
	}
	if !doc.FavoritesPresent {
		return
	}
	e.favorites = append([]string{}, doc.Favorites...)
	e.ident.Stats.ProductsFavorited = len(e.favorites)
	store.Favorites.Save(e.ctx, e.opts.Local, e.ident.ID, e.favorites)
	slog.Debug("favorites replaced from push", "user", e.ident.ID, "count", len(e.favorites))
}

// refreshCatalog refetches products and reviews and recomputes ratings.
func (e *Engine) refreshCatalog() {
	svc := e.opts.Products
	if svc == nil {
		return
	}
	e.exec.Go(func(ctx context.Context) {
		products, perr := svc.ListProducts(ctx)
		if perr != nil {
			logTaskError("fetch products", "", model.NewRemoteFetchError("fetch products", perr))
		}
		reviews, rerr := svc.ListReviews(ctx)
		if rerr != nil {
			logTaskError("fetch reviews", "", model.NewRemoteFetchError("fetch reviews", rerr))
		}
		if perr != nil && rerr != nil {
			return
		}
		e.post(0, EventCatalog, func() {
			if perr == nil {
				e.rawProducts = products
			}
			if rerr == nil {
				e.reviews = reviews
			}
			e.products = catalog.AggregateRatings(e.rawProducts, e.reviews)
		})
	})
}

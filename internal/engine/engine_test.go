package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storesync/internal/checkout"
	"github.com/roach88/storesync/internal/clock"
	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/remote"
	"github.com/roach88/storesync/internal/store"
	"github.com/roach88/storesync/internal/testutil"
)

type fixture struct {
	eng    *Engine
	remote *testutil.FakeRemote
	clock  *clock.Manual
	local  *store.Store
}

func newFixture(t *testing.T, picks ...int) *fixture {
	t.Helper()
	local, session := testutil.OpenTiers(t)
	fake := testutil.NewFakeRemote()
	fake.Memory.SetProducts([]model.Product{
		{ID: "p1", Name: "Linen Shirt", PriceCents: 1000, Stock: 10},
		{ID: "p2", Name: "Wool Scarf", PriceCents: 2500, Stock: 10},
		{ID: "p3", Name: "Canvas Tote", PriceCents: 1500, Stock: 10},
	})
	mc := clock.NewManual(testutil.Epoch)

	eng := New(Options{
		Local:     local,
		Session:   session,
		Profiles:  fake,
		Products:  fake,
		Feed:      fake,
		Checkout:  checkout.NewService(fake, fake),
		Scheduler: mc,
		Picker:    testutil.NewPicker(picks...),
		IDs:       NewSequenceGenerator("id"),
		Inline:    true,
	})
	t.Cleanup(eng.Close)
	require.NoError(t, eng.Start(context.Background()))
	eng.Drain()
	return &fixture{eng: eng, remote: fake, clock: mc, local: local}
}

func (f *fixture) login(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, f.eng.Login(context.Background(), testutil.Session(t, userID, userID+"@example.com", "Ada Lovelace")))
}

func cartPatches(patches []testutil.Patch) []testutil.Patch {
	var out []testutil.Patch
	for _, p := range patches {
		if _, ok := p.Fields[model.FieldCart]; ok {
			out = append(out, p)
		}
	}
	return out
}

func TestEngine_StartsAsGuest(t *testing.T) {
	f := newFixture(t)

	snap := f.eng.Snapshot()
	assert.Equal(t, model.GuestID, snap.Identity.ID)
	assert.True(t, snap.Synced, "guests are initialized immediately")
	assert.Len(t, snap.Products, 3)
	assert.Zero(t, f.remote.CallCount("GetProfile"))
}

func TestEngine_RemoteFavoritesReplaceLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store.Favorites.Save(ctx, f.local, "u1", []string{"p1", "p2"})
	f.remote.Memory.SetFavorite("u1", "p3", true)

	f.login(t, "u1")
	assert.Equal(t, []string{"p1", "p2"}, f.eng.Snapshot().Favorites, "local copy shows until the overlay applies")
	assert.False(t, f.eng.Snapshot().Synced)

	f.eng.Drain()
	snap := f.eng.Snapshot()
	assert.Equal(t, []string{"p3"}, snap.Favorites)
	assert.True(t, snap.Synced)
	assert.Equal(t, []string{"p3"}, store.Favorites.Load(ctx, f.local, "u1"))
}

func TestEngine_OverlayTakesPresentFieldsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store.Cart.Save(ctx, f.local, "u1", []model.CartLine{{ProductID: "p1", Quantity: 2, PriceSnapshot: 1000}})
	f.remote.SetProfile("u1", map[string]any{
		model.FieldCoins:      120,
		model.FieldMembership: "gold",
		model.FieldDiscount:   "ten", // wrong type, ignored
		model.FieldHasSpun:    true,
	})

	f.login(t, "u1")
	f.eng.Drain()

	snap := f.eng.Snapshot()
	assert.Equal(t, int64(120), snap.Identity.Coins)
	assert.Equal(t, model.MembershipGold, snap.Identity.Membership)
	require.Len(t, snap.Cart, 1, "absent remote cart keeps the local cart")
	assert.Equal(t, "p1", snap.Cart[0].ProductID)
	assert.Equal(t, model.Discount{Percent: 0, Spent: true}, snap.Discount)
	assert.Equal(t, "resolved", snap.Wheel)
}

func TestEngine_FetchFailureStillMarksSynced(t *testing.T) {
	f := newFixture(t)
	store.Favorites.Save(context.Background(), f.local, "u1", []string{"p1"})
	f.remote.FailOn("GetProfile", errors.New("connection reset"))
	f.remote.FailOn("ListFavorites", errors.New("connection reset"))

	f.login(t, "u1")
	f.eng.Drain()

	snap := f.eng.Snapshot()
	assert.True(t, snap.Synced)
	assert.Equal(t, []string{"p1"}, snap.Favorites)
	assert.Zero(t, snap.Identity.Stats.LoginStreak, "no login is recorded without the profile")
}

func TestEngine_GuestNeverWritesRemote(t *testing.T) {
	f := newFixture(t)

	f.eng.AddToCart("p1", 1, nil)
	f.eng.ToggleFavorite("p2")
	f.clock.Advance(5 * time.Second)
	f.eng.Drain()

	for _, op := range []string{"GetProfile", "PatchProfile", "AddFavorite", "Subscribe", "UpsertMission"} {
		assert.Zero(t, f.remote.CallCount(op), op)
	}
	assert.Len(t, f.eng.Snapshot().Cart, 1)
	assert.Len(t, store.Cart.Load(context.Background(), f.local, model.GuestID), 1)
}

func TestEngine_WritebackIsDebounced(t *testing.T) {
	f := newFixture(t)
	f.login(t, "u1")
	f.eng.Drain()

	for i := 0; i < 3; i++ {
		f.eng.AddToCart("p1", 1, nil)
		f.clock.Advance(time.Second)
		f.eng.Drain()
	}
	assert.Empty(t, cartPatches(f.remote.Patches()), "quiet period not yet elapsed")

	f.clock.Advance(time.Second)
	f.eng.Drain()

	patches := cartPatches(f.remote.Patches())
	require.Len(t, patches, 1)
	cart, ok := model.DecodeCart(patches[0].Fields[model.FieldCart])
	require.True(t, ok)
	require.Len(t, cart, 1)
	assert.Equal(t, 3, cart[0].Quantity)
	assert.Equal(t, float64(0), patches[0].Fields[model.FieldDiscount])
	assert.Equal(t, false, patches[0].Fields[model.FieldHasSpun])
}

func TestEngine_WritebackSkippedBeforeSync(t *testing.T) {
	f := newFixture(t)
	f.login(t, "u1")

	f.eng.mu.Lock()
	require.False(t, f.eng.synced)
	f.eng.applyWriteback()
	f.eng.mu.Unlock()

	assert.Empty(t, cartPatches(f.remote.Patches()))
}

func TestEngine_StaleEventsDroppedAfterSwitch(t *testing.T) {
	f := newFixture(t)
	f.remote.Memory.SetFavorite("u1", "p3", true)

	f.login(t, "u1")
	require.NoError(t, f.eng.Logout(context.Background()))
	f.eng.Drain()

	snap := f.eng.Snapshot()
	assert.Equal(t, model.GuestID, snap.Identity.ID)
	assert.Empty(t, snap.Favorites)
	assert.Empty(t, store.Favorites.Load(context.Background(), f.local, model.GuestID))
	assert.Zero(t, f.remote.Subscribers(), "subscriptions of the previous identity are closed")
}

func TestEngine_GuestStateNotMergedOnLogin(t *testing.T) {
	f := newFixture(t)
	f.eng.AddToCart("p2", 1, nil)

	f.login(t, "u1")
	f.eng.Drain()
	assert.Empty(t, f.eng.Snapshot().Cart)

	require.NoError(t, f.eng.Logout(context.Background()))
	assert.Len(t, f.eng.Snapshot().Cart, 1, "guest cart survives in the local tier")
}

func TestEngine_SpinWheel(t *testing.T) {
	f := newFixture(t, 3, 2) // segment 3 (3%), 2 extra rotations

	spin, ok := f.eng.SpinWheel()
	require.True(t, ok)
	assert.Equal(t, 3, spin.Percent)
	assert.Equal(t, "spinning", f.eng.Snapshot().Wheel)

	_, ok = f.eng.SpinWheel()
	assert.False(t, ok, "cannot spin while spinning")

	f.clock.Advance(DefaultSpinDuration)
	f.eng.Drain()

	snap := f.eng.Snapshot()
	assert.Equal(t, model.Discount{Percent: 3, Spent: true}, snap.Discount)
	assert.Equal(t, "resolved", snap.Wheel)
	assert.True(t, store.SpinUsed.Load(context.Background(), f.local, model.GuestID))

	_, ok = f.eng.SpinWheel()
	assert.False(t, ok, "spent wheel cannot spin again")
}

func TestEngine_ZeroSegmentSpendsWheel(t *testing.T) {
	f := newFixture(t, 1)

	_, ok := f.eng.SpinWheel()
	require.True(t, ok)
	f.clock.Advance(DefaultSpinDuration)
	f.eng.Drain()

	assert.Equal(t, model.Discount{Percent: 0, Spent: true}, f.eng.Snapshot().Discount)
}

func TestEngine_LoginStreak(t *testing.T) {
	f := newFixture(t)
	f.remote.SetProfile("u1", map[string]any{
		model.FieldLoginStreak:    3,
		model.FieldLastLoginDate:  "2026-03-01",
		model.FieldLoginDaysTotal: 10,
	})

	f.login(t, "u1")
	f.eng.Drain()

	st := f.eng.Snapshot().Identity.Stats
	assert.Equal(t, 4, st.LoginStreak)
	assert.Equal(t, 11, st.LoginDaysTotal)
	assert.Equal(t, "2026-03-02", st.LastLoginDate)

	doc, ok := f.remote.Memory.Profile("u1")
	require.True(t, ok)
	assert.Equal(t, "2026-03-02", doc[model.FieldLastLoginDate])

	rows := f.remote.Memory.Missions("u1")
	progress := map[string]int{}
	for _, r := range rows {
		progress[r.MissionID] = r.Progress
	}
	assert.Equal(t, 4, progress["streak_week"])
	assert.Equal(t, 1, progress["regular"])

	// A second login on the same day changes nothing.
	require.NoError(t, f.eng.Logout(context.Background()))
	f.login(t, "u1")
	f.eng.Drain()
	assert.Equal(t, 4, f.eng.Snapshot().Identity.Stats.LoginStreak)
}

func TestEngine_ClaimMission(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.ClaimMission("first_step")
	assert.True(t, model.IsValidation(err))
	assert.ErrorIs(t, err, model.ErrNotRegistered)

	f.login(t, "u1")
	f.eng.Drain()

	p, err := f.eng.UpdateMission("first_step", 1, true, true)
	require.NoError(t, err)
	assert.True(t, p.Completed)

	reward, err := f.eng.ClaimMission("first_step")
	require.NoError(t, err)
	assert.Equal(t, int64(50), reward)
	assert.Equal(t, int64(50), f.eng.Snapshot().Identity.Coins)

	reward, err = f.eng.ClaimMission("first_step")
	require.NoError(t, err)
	assert.Zero(t, reward, "rewards pay once")

	var claimed bool
	for _, r := range f.remote.Memory.Missions("u1") {
		if r.MissionID == "first_step" {
			claimed = r.Claimed
		}
	}
	assert.True(t, claimed)

	_, err = f.eng.UpdateMission("nope", 1, false, false)
	assert.ErrorIs(t, err, model.ErrUnknownMission)
}

func TestEngine_PurchaseReward(t *testing.T) {
	f := newFixture(t)
	f.remote.SetProfile("u1", map[string]any{model.FieldCoins: 500})
	f.login(t, "u1")
	f.eng.Drain()
	ctx := context.Background()

	grant, err := f.eng.PurchaseReward(ctx, "free_shipping")
	require.NoError(t, err)
	assert.Equal(t, "u1", grant.UserID)
	assert.Equal(t, int64(400), f.eng.Snapshot().Identity.Coins)
	assert.Len(t, f.remote.Memory.Inventory("u1"), 1)

	_, err = f.eng.PurchaseReward(ctx, "founder_badge")
	assert.True(t, model.IsValidation(err))
	assert.ErrorIs(t, err, model.ErrInsufficientCoins)

	f.remote.FailOn("InsertInventory", errors.New("timeout"))
	_, err = f.eng.PurchaseReward(ctx, "free_shipping")
	var me *model.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, model.CodeRemoteWrite, me.Code)
	assert.Equal(t, int64(400), f.eng.Snapshot().Identity.Coins, "debit rolled back")
	doc, _ := f.remote.Memory.Profile("u1")
	assert.Equal(t, float64(400), doc[model.FieldCoins], "remote balance restored")
}

func TestEngine_Checkout(t *testing.T) {
	f := newFixture(t, 0)
	f.login(t, "u1")
	f.eng.Drain()
	ctx := context.Background()

	_, err := f.eng.Checkout(ctx)
	assert.ErrorIs(t, err, model.ErrEmptyCart)

	f.eng.AddToCart("p1", 2, nil)
	_, ok := f.eng.SpinWheel()
	require.True(t, ok)
	f.clock.Advance(DefaultSpinDuration)
	f.eng.Drain()
	require.Equal(t, 10, f.eng.Snapshot().Discount.Percent)

	f.remote.SetVerifiedUser("someone-else")
	_, err = f.eng.Checkout(ctx)
	assert.True(t, model.IsSessionExpired(err))
	assert.Len(t, f.eng.Snapshot().Cart, 1, "nothing changes on a session mismatch")
	assert.Empty(t, f.remote.Memory.Orders())

	f.remote.SetVerifiedUser("u1")
	receipt, err := f.eng.Checkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), receipt.TotalCents)

	snap := f.eng.Snapshot()
	assert.Empty(t, snap.Cart)
	assert.Equal(t, model.Discount{}, snap.Discount)
	assert.Equal(t, "idle", snap.Wheel)
	assert.Equal(t, 1, snap.Identity.Stats.TotalOrders)
	assert.Equal(t, int64(1800), snap.Identity.Stats.TotalSpent)
	assert.NotContains(t, snap.Overlays, "cart")

	first := model.MissionProgress{}
	for _, m := range snap.Missions {
		if m.MissionID == "first_step" {
			first = m
		}
	}
	assert.True(t, first.Completed)
}

func TestEngine_RealtimeFavoritesPush(t *testing.T) {
	f := newFixture(t)
	f.login(t, "u1")
	f.eng.Drain()

	f.remote.Publish(remote.Change{
		Table:  remote.TableProfiles,
		Event:  remote.EventUpdate,
		Record: map[string]any{"id": "u2", "favorites": []any{"p1"}},
	})
	f.remote.Publish(remote.Change{
		Table:  remote.TableProfiles,
		Event:  remote.EventUpdate,
		Record: map[string]any{"id": "u1", "favorites": []any{"p2", "p3"}},
	})
	f.eng.Drain()

	assert.Equal(t, []string{"p2", "p3"}, f.eng.Snapshot().Favorites)
}

func TestEngine_ToggleFavoriteWritesJoinRow(t *testing.T) {
	f := newFixture(t)
	f.login(t, "u1")
	f.eng.Drain()

	assert.True(t, f.eng.ToggleFavorite("p1"))
	assert.Equal(t, []string{"p1"}, f.remote.Memory.Favorites("u1"))
	assert.False(t, f.eng.ToggleFavorite("p1"))
	assert.Empty(t, f.remote.Memory.Favorites("u1"))
	assert.Equal(t, 1, f.remote.CallCount("AddFavorite"))
	assert.Equal(t, 1, f.remote.CallCount("RemoveFavorite"))
}

func TestEngine_SubmitReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.SubmitReview(ctx, "p1", 5, "lovely")
	assert.ErrorIs(t, err, model.ErrNotRegistered)

	f.login(t, "u1")
	f.eng.Drain()

	_, err = f.eng.SubmitReview(ctx, "p1", 5, "   ")
	assert.ErrorIs(t, err, model.ErrEmptyComment)
	_, err = f.eng.SubmitReview(ctx, "p1", 6, "too good")
	assert.ErrorIs(t, err, model.ErrInvalidRating)
	assert.Zero(t, f.remote.CallCount("InsertReview"))

	rv, err := f.eng.SubmitReview(ctx, "p1", 2, "  Frayed after one wash ")
	require.NoError(t, err)
	assert.Equal(t, "Frayed after one wash", rv.Comment)
	assert.Equal(t, "Ada Lovelace", rv.AuthorName)

	f.eng.Drain()
	reviews := f.eng.Reviews("p1")
	require.Len(t, reviews, 1)
	for _, p := range f.eng.Snapshot().Products {
		if p.ID == "p1" {
			assert.Equal(t, 2.0, p.Rating)
		}
	}
	assert.GreaterOrEqual(t, f.remote.CallCount("ListReviews"), 2, "review insert triggers a catalog refresh")
	assert.Equal(t, 1, f.eng.tracker.Progress("critic").Progress)
}

func TestEngine_OverlaysFollowActions(t *testing.T) {
	f := newFixture(t)

	f.eng.ViewProduct("p1")
	assert.Equal(t, []string{"product_detail"}, f.eng.Snapshot().Overlays)

	f.eng.AddToCart("p1", 1, nil)
	assert.Equal(t, []string{"cart"}, f.eng.Snapshot().Overlays)

	res := f.eng.Back()
	require.NotNil(t, res.Closed)
	assert.Empty(t, f.eng.Snapshot().Overlays)
}

func TestEngine_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.login(t, "u1")
	f.eng.Drain()

	name, city := "Grace Hopper", " Arlington "
	f.eng.UpdateProfile(ProfileEdit{FullName: &name, Location: &city})

	snap := f.eng.Snapshot()
	assert.Equal(t, "Grace Hopper", snap.Identity.DisplayName)
	assert.Equal(t, "Arlington", snap.Identity.Location)

	doc, ok := f.remote.Memory.Profile("u1")
	require.True(t, ok)
	assert.Equal(t, "Grace Hopper", doc[model.FieldFullName])
}

func TestEngine_WaitSynced(t *testing.T) {
	f := newFixture(t)
	f.login(t, "u1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.eng.WaitSynced(ctx), context.DeadlineExceeded)

	f.eng.Drain()
	assert.NoError(t, f.eng.WaitSynced(context.Background()))
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.login(t, "u1")
	f.eng.Drain()
	require.Equal(t, 2, f.remote.Subscribers())

	f.eng.Close()
	f.eng.Close()
	assert.Zero(t, f.remote.Subscribers())
	assert.ErrorIs(t, f.eng.Logout(context.Background()), ErrClosed)
}

func TestEngine_RunAppliesEvents(t *testing.T) {
	local, session := testutil.OpenTiers(t)
	fake := testutil.NewFakeRemote()
	fake.Memory.SetFavorite("u1", "p2", true)

	eng := New(Options{Local: local, Session: session, Profiles: fake, Feed: fake})
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	require.NoError(t, eng.Login(ctx, testutil.Session(t, "u1", "u1@example.com", "")))
	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	require.NoError(t, eng.WaitSynced(waitCtx))
	assert.Equal(t, []string{"p2"}, eng.Snapshot().Favorites)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

package engine

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/storesync/internal/catalog"
	"github.com/roach88/storesync/internal/checkout"
	"github.com/roach88/storesync/internal/discount"
	"github.com/roach88/storesync/internal/missions"
	"github.com/roach88/storesync/internal/modal"
	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/remote"
	"github.com/roach88/storesync/internal/store"
)

// AddToCart adds quantity of productID at the current catalog price. The
// cart overlay opens and the product detail overlay closes.
func (e *Engine) AddToCart(productID string, quantity int, metadata map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ledger.Add(productID, quantity, e.priceLocked(productID), metadata)
	e.cartChangedLocked()
	e.modals.Close(modal.ProductDetail)
	e.modals.Open(modal.Cart)
}

// UpdateQuantity changes a line's quantity by delta, never below 1.
func (e *Engine) UpdateQuantity(productID string, delta int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ledger.UpdateQuantity(productID, delta) {
		return false
	}
	e.cartChangedLocked()
	return true
}

// RemoveFromCart drops a line.
func (e *Engine) RemoveFromCart(productID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ledger.Remove(productID) {
		return false
	}
	e.cartChangedLocked()
	return true
}

func (e *Engine) cartChangedLocked() {
	store.Cart.Save(e.ctx, e.opts.Local, e.ident.ID, e.ledger.Lines())
	e.markDirtyLocked()
}

func (e *Engine) priceLocked(productID string) int64 {
	for _, p := range e.products {
		if p.ID == productID {
			return p.PriceCents
		}
	}
	return 0
}

// ToggleFavorite adds or removes productID from the favorite set and
// reports whether it is now a favorite. Registered identities also write
// the join row remotely.
func (e *Engine) ToggleFavorite(productID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := slices.Index(e.favorites, productID)
	added := idx < 0
	if added {
		e.favorites = append(e.favorites, productID)
	} else {
		e.favorites = slices.Delete(e.favorites, idx, idx+1)
	}
	e.ident.Stats.ProductsFavorited = len(e.favorites)
	store.Favorites.Save(e.ctx, e.opts.Local, e.ident.ID, e.favorites)
	e.advanceMissionsLocked(catalog.TriggerFavorites, len(e.favorites), true, true)

	if e.registeredLocked() && e.opts.Profiles != nil {
		profiles, userID := e.opts.Profiles, e.ident.ID
		e.exec.Go(func(ctx context.Context) {
			var err error
			if added {
				err = profiles.AddFavorite(ctx, userID, productID)
			} else {
				err = profiles.RemoveFavorite(ctx, userID, productID)
			}
			if err != nil {
				logTaskError("toggle favorite", userID, model.NewRemoteWriteError("toggle favorite", err))
			}
		})
	}
	return added
}

// SpinWheel starts a spin if the wheel is idle and unspent. The discount
// is decided now and applied once the spin duration has elapsed.
func (e *Engine) SpinWheel() (discount.Spin, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	spin, ok := e.wheel.Spin()
	if !ok {
		return discount.Spin{}, false
	}
	e.modals.Open(modal.SpinWheel)
	e.spinSeq++
	gen, seq := e.gen, e.spinSeq
	e.spinTimer = e.sched.AfterFunc(e.opts.SpinDuration, func() {
		e.post(gen, EventSpinResolved, func() { e.resolveSpinLocked(seq) })
	})
	slog.Debug("wheel spinning", "user", e.ident.ID, "segment", spin.Segment)
	return spin, true
}

// resolveSpinLocked applies spin seq. A spin cancelled by checkout or
// teardown is ignored.
func (e *Engine) resolveSpinLocked(seq uint64) {
	if seq != e.spinSeq {
		return
	}
	e.spinTimer = nil
	d, ok := e.wheel.Resolve()
	if !ok {
		return
	}
	id := e.ident.ID
	store.Discount.Save(e.ctx, e.opts.Local, id, d.Percent)
	store.SpinUsed.Save(e.ctx, e.opts.Local, id, d.Spent)
	e.markDirtyLocked()
	slog.Info("wheel resolved", "user", id, "percent", d.Percent)
}

// UpdateMission advances one mission directly. Guests are ignored. The
// new state is upserted remotely when syncRemote is set, and also when the
// update completes the mission, so a completion is never held only in
// memory.
func (e *Engine) UpdateMission(missionID string, value int, absolute, syncRemote bool) (model.MissionProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.catalog.Mission(missionID); !ok {
		return model.MissionProgress{}, model.NewValidationError("update mission", model.ErrUnknownMission)
	}
	p, changed := e.tracker.Update(missionID, value, absolute)
	if changed && (syncRemote || p.Completed) {
		e.upsertMissionLocked(p)
	}
	return p, nil
}

// ClaimMission pays out a completed, unclaimed mission. It returns the
// coins paid, zero when there was nothing to claim.
func (e *Engine) ClaimMission(missionID string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.registeredLocked() {
		return 0, notRegistered("claim mission")
	}
	if _, ok := e.catalog.Mission(missionID); !ok {
		return 0, model.NewValidationError("claim mission", model.ErrUnknownMission)
	}
	if !e.missionsLoaded {
		return 0, model.NewRemoteFetchError("claim mission", errMissionsNotLoaded)
	}
	reward, state, ok := e.tracker.Claim(missionID)
	if !ok {
		return 0, nil
	}
	e.ident.Coins += reward
	e.resolver.Remember(e.ctx, e.ident)
	e.patchProfileLocked("claim mission", map[string]any{model.FieldCoins: e.ident.Coins})
	e.upsertMissionLocked(state)
	slog.Info("mission claimed", "user", e.ident.ID, "mission", missionID, "reward", reward)
	return reward, nil
}

// PurchaseReward spends coins on a reward. Coins are debited immediately
// and restored if the remote write fails.
func (e *Engine) PurchaseReward(ctx context.Context, rewardID string) (model.InventoryGrant, error) {
	e.mu.Lock()
	if !e.registeredLocked() {
		e.mu.Unlock()
		return model.InventoryGrant{}, notRegistered("purchase reward")
	}
	reward, ok := e.catalog.Reward(rewardID)
	if !ok {
		e.mu.Unlock()
		return model.InventoryGrant{}, model.NewValidationError("purchase reward", model.ErrUnknownReward)
	}
	if err := missions.CheckPurchase(e.ident.Coins, reward, e.stock); err != nil {
		e.mu.Unlock()
		return model.InventoryGrant{}, err
	}
	if e.opts.Profiles == nil {
		e.mu.Unlock()
		return model.InventoryGrant{}, model.NewRemoteWriteError("purchase reward", errOffline)
	}

	e.ident.Coins -= reward.Cost
	gen, userID, coins := e.gen, e.ident.ID, e.ident.Coins
	grant := missions.NewGrant(e.ids.Generate(), userID, reward, e.sched.Now())
	profiles := e.opts.Profiles
	e.mu.Unlock()

	debited := false
	err := profiles.PatchProfile(ctx, userID, map[string]any{model.FieldCoins: coins})
	if err == nil {
		debited = true
		err = profiles.InsertInventory(ctx, grant)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		// The restore carries the balance after the rollback, so credits
		// that landed during the purchase are kept.
		balance := coins + reward.Cost
		if e.gen == gen {
			e.ident.Coins += reward.Cost
			balance = e.ident.Coins
			e.resolver.Remember(e.ctx, e.ident)
		}
		if debited {
			e.exec.Go(func(ctx context.Context) {
				restore := map[string]any{model.FieldCoins: balance}
				if rerr := profiles.PatchProfile(ctx, userID, restore); rerr != nil {
					logTaskError("restore coins", userID, model.NewRemoteWriteError("restore coins", rerr))
				}
			})
		}
		return model.InventoryGrant{}, model.NewRemoteWriteError("purchase reward", err)
	}
	e.stock.Take(rewardID)
	if e.gen == gen {
		e.inventory = append(e.inventory, grant)
		e.resolver.Remember(e.ctx, e.ident)
	}
	slog.Info("reward purchased", "user", userID, "reward", rewardID, "cost", reward.Cost)
	return grant, nil
}

// ViewProduct opens the product detail overlay and counts the view.
func (e *Engine) ViewProduct(productID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.modals.Open(modal.ProductDetail)
	e.ident.Stats.ProductsViewed++
	// Views are frequent; rows are only written when a mission completes.
	e.advanceMissionsLocked(catalog.TriggerProductViews, 1, false, false)
	slog.Debug("product viewed", "user", e.ident.ID, "product", productID)
}

// ShareProduct opens the share overlay and counts the share.
func (e *Engine) ShareProduct(productID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.modals.Open(modal.Share)
	e.ident.Stats.ProductsShared++
	e.advanceMissionsLocked(catalog.TriggerShares, 1, false, true)
	slog.Debug("product shared", "user", e.ident.ID, "product", productID)
}

// SubmitReview posts a review for productID. The comment is trimmed and
// NFC-normalized; an empty comment or a rating outside 1..5 is rejected
// before any I/O.
func (e *Engine) SubmitReview(ctx context.Context, productID string, rating int, comment string) (model.Review, error) {
	comment = norm.NFC.String(strings.TrimSpace(comment))
	if comment == "" {
		return model.Review{}, model.NewValidationError("submit review", model.ErrEmptyComment)
	}
	if rating < 1 || rating > 5 {
		return model.Review{}, model.NewValidationError("submit review", model.ErrInvalidRating)
	}

	e.mu.Lock()
	if !e.registeredLocked() {
		e.mu.Unlock()
		return model.Review{}, notRegistered("submit review")
	}
	svc := e.opts.Products
	if svc == nil {
		e.mu.Unlock()
		return model.Review{}, model.NewRemoteWriteError("submit review", errOffline)
	}
	review := model.Review{
		ID:         e.ids.Generate(),
		ProductID:  productID,
		Rating:     rating,
		Comment:    comment,
		AuthorName: e.ident.DisplayName,
		CreatedAt:  e.sched.Now().UTC().Truncate(time.Second),
	}
	gen := e.gen
	e.mu.Unlock()

	if err := svc.InsertReview(ctx, review); err != nil {
		return model.Review{}, model.NewRemoteWriteError("submit review", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !slices.ContainsFunc(e.reviews, func(r model.Review) bool { return r.ID == review.ID }) {
		e.reviews = append(e.reviews, review)
		e.products = catalog.AggregateRatings(e.rawProducts, e.reviews)
	}
	if e.gen == gen {
		e.advanceMissionsLocked(catalog.TriggerReviews, 1, false, true)
	}
	return review, nil
}

// ProfileEdit carries the editable profile fields. Nil fields are left
// unchanged.
type ProfileEdit struct {
	FullName  *string
	Location  *string
	BirthDate *string
	Phone     *string
	AvatarURL *string
}

// UpdateProfile applies edits locally and, for registered identities,
// patches the profile document.
func (e *Engine) UpdateProfile(edit ProfileEdit) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fields := make(map[string]any)
	set := func(dst *string, v *string, field string) {
		if v == nil {
			return
		}
		*dst = strings.TrimSpace(*v)
		fields[field] = *dst
	}
	set(&e.ident.FullName, edit.FullName, model.FieldFullName)
	set(&e.ident.Location, edit.Location, model.FieldLocation)
	set(&e.ident.BirthDate, edit.BirthDate, model.FieldBirthDate)
	set(&e.ident.Phone, edit.Phone, model.FieldPhone)
	set(&e.ident.PhotoRef, edit.AvatarURL, model.FieldAvatarURL)
	if edit.FullName != nil && e.ident.FullName != "" {
		e.ident.DisplayName = e.ident.FullName
	}
	if len(fields) == 0 {
		return
	}
	e.resolver.Remember(e.ctx, e.ident)
	e.patchProfileLocked("update profile", fields)
}

// Checkout charges the cart through the checkout service. On success the
// cart is cleared, the discount is consumed and the purchase missions
// advance.
func (e *Engine) Checkout(ctx context.Context) (remote.Receipt, error) {
	e.mu.Lock()
	if !e.registeredLocked() {
		e.mu.Unlock()
		return remote.Receipt{}, notRegistered("checkout")
	}
	if e.opts.Checkout == nil {
		e.mu.Unlock()
		return remote.Receipt{}, model.NewRemoteWriteError("checkout", errOffline)
	}
	if e.ledger.Len() == 0 {
		e.mu.Unlock()
		return remote.Receipt{}, model.NewValidationError("checkout", model.ErrEmptyCart)
	}
	req := checkout.Request{
		OrderID:         e.ids.Generate(),
		UserID:          e.ident.ID,
		Lines:           e.ledger.Lines(),
		DiscountPercent: e.wheel.Discount().Percent,
	}
	gen, svc := e.gen, e.opts.Checkout
	e.modals.Open(modal.Checkout)
	e.mu.Unlock()

	receipt, err := svc.Place(ctx, req)
	if err != nil {
		return remote.Receipt{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		slog.Warn("identity switched during checkout", "order", receipt.OrderID, "user", req.UserID)
		return receipt, nil
	}
	e.ledger.Clear()
	e.stopSpinLocked()
	e.wheel.Reset()
	e.persistLocked()
	e.markDirtyLocked()

	st := &e.ident.Stats
	st.TotalOrders++
	st.TotalSpent += receipt.TotalCents
	e.resolver.Remember(e.ctx, e.ident)

	e.advanceMissionsLocked(catalog.TriggerFirstPurchase, 1, true, true)
	e.advanceMissionsLocked(catalog.TriggerPurchaseCount, 1, false, true)

	e.modals.Close(modal.Checkout)
	e.modals.Close(modal.Cart)
	return receipt, nil
}

// OpenOverlay opens an overlay; it reports whether the flag changed.
func (e *Engine) OpenOverlay(o modal.Overlay) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modals.Open(o)
}

// CloseOverlay closes an overlay; it reports whether the flag changed.
func (e *Engine) CloseOverlay(o modal.Overlay) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modals.Close(o)
}

// Back handles a back signal.
func (e *Engine) Back() modal.BackResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modals.Back()
}

// Navigate moves to a new tab or collection.
func (e *Engine) Navigate(loc modal.Location) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modals.Navigate(loc)
}

// RefreshCatalog refetches products and reviews.
func (e *Engine) RefreshCatalog() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshCatalog()
}

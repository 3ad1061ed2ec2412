package engine

import (
	"github.com/roach88/storesync/internal/catalog"
	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/modal"
)

// Snapshot is a read-only copy of the engine state for rendering. It
// shares no memory with the engine.
type Snapshot struct {
	Identity  model.Identity          `json:"identity"`
	Synced    bool                    `json:"synced"`
	Cart      []model.CartLine        `json:"cart"`
	CartTotal int64                   `json:"cart_total_cents"`
	Favorites []string                `json:"favorites"`
	Discount  model.Discount          `json:"discount"`
	Wheel     string                  `json:"wheel"`
	Missions  []model.MissionProgress `json:"missions"`
	Inventory []model.InventoryGrant  `json:"inventory"`
	Overlays  []string                `json:"overlays"`
	Location  modal.Location          `json:"location"`
	Products  []model.Product         `json:"products,omitempty"`
}

// DiscountedTotal is the cart total after the wheel discount.
func (s Snapshot) DiscountedTotal() int64 {
	return model.ApplyDiscount(s.CartTotal, s.Discount.Percent)
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	overlays := make([]string, 0, 2)
	for _, o := range e.modals.OpenOverlays() {
		overlays = append(overlays, o.String())
	}
	return Snapshot{
		Identity:  e.ident,
		Synced:    e.synced,
		Cart:      e.ledger.Lines(),
		CartTotal: e.ledger.Total(),
		Favorites: append([]string{}, e.favorites...),
		Discount:  e.wheel.Discount(),
		Wheel:     e.wheel.State().String(),
		Missions:  e.tracker.Touched(),
		Inventory: append([]model.InventoryGrant{}, e.inventory...),
		Overlays:  overlays,
		Location:  e.modals.Location(),
		Products:  append([]model.Product{}, e.products...),
	}
}

// Reviews returns the reviews of productID, newest first.
func (e *Engine) Reviews(productID string) []model.Review {
	e.mu.Lock()
	defer e.mu.Unlock()
	return catalog.ReviewsFor(productID, e.reviews)
}

// Missions returns every mission's progress in catalog order.
func (e *Engine) Missions() []model.MissionProgress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.All()
}

// Catalog returns the mission and reward catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

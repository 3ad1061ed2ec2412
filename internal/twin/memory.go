package twin

import (
	"maps"
	"slices"
	"sync"

	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/remote"
)

// Memory holds all twin state.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	profiles  map[string]map[string]any
	favorites map[string][]string
	missions  map[string]map[string]model.MissionProgress
	inventory []model.InventoryGrant
	products  []model.Product
	reviews   []model.Review
	orders    []remote.Order
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		profiles:  make(map[string]map[string]any),
		favorites: make(map[string][]string),
		missions:  make(map[string]map[string]model.MissionProgress),
	}
}

// Profile returns a copy of the profile document.
func (m *Memory) Profile(userID string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.profiles[userID]
	if !ok {
		return nil, false
	}
	return m.profileCopyLocked(userID, doc), true
}

// PatchProfile merges fields into the document and returns the result.
// The id field cannot be overwritten.
func (m *Memory) PatchProfile(userID string, fields map[string]any) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.ensureProfileLocked(userID)
	for k, v := range fields {
		if k == "id" {
			continue
		}
		if k == model.FieldFavorites {
			if ids, ok := model.DecodeStringList(v); ok {
				m.favorites[userID] = ids
			}
			continue
		}
		doc[k] = v
	}
	return m.profileCopyLocked(userID, doc)
}

// Favorites returns the user's favorite product ids in insertion order.
func (m *Memory) Favorites(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.favorites[userID])
}

// SetFavorite inserts or deletes the (user, product) join row and returns
// the resulting profile document.
func (m *Memory) SetFavorite(userID, productID string, on bool) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.ensureProfileLocked(userID)
	cur := m.favorites[userID]
	idx := slices.Index(cur, productID)
	switch {
	case on && idx < 0:
		m.favorites[userID] = append(cur, productID)
	case !on && idx >= 0:
		m.favorites[userID] = slices.Delete(slices.Clone(cur), idx, idx+1)
	}
	return m.profileCopyLocked(userID, doc)
}

// Missions returns the user's mission rows sorted by mission id.
func (m *Memory) Missions(userID string) []model.MissionProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]model.MissionProgress, 0, len(m.missions[userID]))
	for _, id := range slices.Sorted(maps.Keys(m.missions[userID])) {
		rows = append(rows, m.missions[userID][id])
	}
	return rows
}

// UpsertMission writes the row keyed by (user, mission).
func (m *Memory) UpsertMission(userID string, p model.MissionProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missions[userID] == nil {
		m.missions[userID] = make(map[string]model.MissionProgress)
	}
	m.missions[userID][p.MissionID] = p
}

// InsertInventory stores a grant.
func (m *Memory) InsertInventory(g model.InventoryGrant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory = append(m.inventory, g)
}

// Inventory returns the grants of one user.
func (m *Memory) Inventory(userID string) []model.InventoryGrant {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.InventoryGrant
	for _, g := range m.inventory {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out
}

// Products returns the catalog.
func (m *Memory) Products() []model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.products)
}

// SetProducts replaces the catalog.
func (m *Memory) SetProducts(p []model.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = slices.Clone(p)
}

// Reviews returns every review in insertion order.
func (m *Memory) Reviews() []model.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.reviews)
}

// InsertReview appends a review.
func (m *Memory) InsertReview(r model.Review) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, r)
}

// PlaceOrder records the order and decrements stock of regular products.
func (m *Memory) PlaceOrder(o remote.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o)
	for _, line := range o.Lines {
		for i := range m.products {
			if m.products[i].ID == line.ProductID && m.products[i].Stock >= line.Quantity {
				m.products[i].Stock -= line.Quantity
			}
		}
	}
}

// Orders returns placed orders.
func (m *Memory) Orders() []remote.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.orders)
}

func (m *Memory) ensureProfileLocked(userID string) map[string]any {
	doc, ok := m.profiles[userID]
	if !ok {
		doc = map[string]any{}
		m.profiles[userID] = doc
	}
	return doc
}

// profileCopyLocked returns the document with id and the favorites array
// derived from the join rows, as realtime subscribers expect.
func (m *Memory) profileCopyLocked(userID string, doc map[string]any) map[string]any {
	out := maps.Clone(doc)
	out["id"] = userID
	favs := m.favorites[userID]
	list := make([]any, len(favs))
	for i, f := range favs {
		list[i] = f
	}
	out[model.FieldFavorites] = list
	return out
}

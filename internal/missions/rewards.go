package missions

import (
	"time"

	"github.com/roach88/storesync/internal/catalog"
	"github.com/roach88/storesync/internal/model"
)

// Stock tracks remaining reward stock for the session. Rewards with nil
// catalog stock are unlimited.
type Stock struct {
	remaining map[string]int
}

// NewStock seeds remaining stock from the catalog.
func NewStock(cat *catalog.Catalog) *Stock {
	s := &Stock{remaining: make(map[string]int)}
	for _, r := range cat.Rewards {
		if r.Stock != nil {
			s.remaining[r.ID] = *r.Stock
		}
	}
	return s
}

// Available reports whether one more unit of reward can be granted.
func (s *Stock) Available(rewardID string) bool {
	n, limited := s.remaining[rewardID]
	return !limited || n > 0
}

// Take consumes one unit of a limited reward.
func (s *Stock) Take(rewardID string) {
	if n, limited := s.remaining[rewardID]; limited && n > 0 {
		s.remaining[rewardID] = n - 1
	}
}

// Remaining returns the remaining stock, or nil when unlimited.
func (s *Stock) Remaining(rewardID string) *int {
	n, limited := s.remaining[rewardID]
	if !limited {
		return nil
	}
	return &n
}

// CheckPurchase validates a reward purchase before any I/O.
func CheckPurchase(coins int64, reward catalog.Reward, stock *Stock) error {
	if coins < reward.Cost {
		return model.NewValidationError("purchase reward", model.ErrInsufficientCoins)
	}
	if !stock.Available(reward.ID) {
		return model.NewValidationError("purchase reward", model.ErrOutOfStock)
	}
	return nil
}

// NewGrant builds the inventory grant for a purchase at now.
func NewGrant(id, userID string, reward catalog.Reward, now time.Time) model.InventoryGrant {
	now = now.UTC()
	return model.InventoryGrant{
		ID:        id,
		UserID:    userID,
		RewardID:  reward.ID,
		CostCoins: reward.Cost,
		GrantedAt: now.Format(time.RFC3339),
		ExpiresAt: now.AddDate(0, 0, reward.ValidDays).Format(time.RFC3339),
	}
}

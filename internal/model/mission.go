package model

// MissionProgress is the per-identity state of one mission.
//
// Completed always equals Progress >= target of the mission definition.
// Claimed only becomes true after Completed and never reverts.
type MissionProgress struct {
	MissionID string `json:"mission_id"`
	Progress  int    `json:"progress"`
	Completed bool   `json:"completed"`
	Claimed   bool   `json:"claimed"`
}

// InventoryGrant records a purchased reward held by an identity.
type InventoryGrant struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	RewardID  string `json:"reward_id"`
	CostCoins int64  `json:"cost_coins"`
	GrantedAt string `json:"granted_at"` // RFC 3339
	ExpiresAt string `json:"expires_at"` // RFC 3339
}

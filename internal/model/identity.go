package model

import "strings"

// GuestID is the sentinel identity id for anonymous users.
const GuestID = "guest"

// DefaultPhoto is the avatar asset used when an identity carries no photo.
const DefaultPhoto = "/assets/avatar-default.png"

// Membership is the loyalty tier of an identity.
type Membership string

const (
	MembershipBronze  Membership = "bronze"
	MembershipSilver  Membership = "silver"
	MembershipGold    Membership = "gold"
	MembershipFounder Membership = "founder"
)

// Valid reports whether m is one of the known tiers.
func (m Membership) Valid() bool {
	switch m {
	case MembershipBronze, MembershipSilver, MembershipGold, MembershipFounder:
		return true
	}
	return false
}

// Stats are the engagement counters carried on an identity.
type Stats struct {
	TotalSpent        int64  `json:"total_spent_cents"`
	TotalOrders       int    `json:"total_orders"`
	LoginStreak       int    `json:"login_streak"`
	LastLoginDate     string `json:"last_login_date,omitempty"` // YYYY-MM-DD
	LoginDaysTotal    int    `json:"login_days_total"`
	ProductsViewed    int    `json:"products_viewed"`
	ProductsFavorited int    `json:"products_favorited"`
	ProductsShared    int    `json:"products_shared"`
}

// Identity is the resolved current user.
//
// Exactly one Identity is active at a time. It is replaced wholesale on
// login/logout and never partially merged across a guest to registered switch.
type Identity struct {
	ID          string     `json:"id"`
	Registered  bool       `json:"is_registered"`
	Email       string     `json:"email,omitempty"`
	Membership  Membership `json:"membership,omitempty"`
	DisplayName string     `json:"display_name"`
	PhotoRef    string     `json:"photo_ref"`
	Coins       int64      `json:"coins"`

	FullName  string `json:"full_name,omitempty"`
	Location  string `json:"location,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
	Phone     string `json:"phone,omitempty"`

	Stats Stats `json:"stats"`
}

// Guest returns a fresh anonymous identity with default fields.
func Guest() Identity {
	return Identity{
		ID:          GuestID,
		Registered:  false,
		Membership:  MembershipBronze,
		DisplayName: "Guest",
		PhotoRef:    DefaultPhoto,
	}
}

// IsGuest reports whether the identity is the anonymous sentinel or otherwise
// not registered. Remote operations are only permitted when this is false.
func (i Identity) IsGuest() bool {
	return i.ID == GuestID || i.ID == "" || !i.Registered
}

// EmailLocalPart returns the portion of an email before '@'.
func EmailLocalPart(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found {
		return email
	}
	return local
}

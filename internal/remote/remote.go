// Package remote talks to the authoritative remote tier: the per-identity
// profile document store, the product catalog service and the realtime
// change feed.
//
// Every payload crossing this boundary is JSON. Profile documents are
// returned raw so that the engine can coerce them field by field with
// model.DecodeProfile.
package remote

import (
	"context"
	"time"

	"github.com/roach88/storesync/internal/model"
)

// Realtime tables and events.
const (
	TableProfiles = "profiles"
	TableReviews  = "reviews"

	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// ProfileStore is the per-identity document store.
type ProfileStore interface {
	// GetProfile returns the raw profile document, or model.ErrNotFound.
	GetProfile(ctx context.Context, userID string) (map[string]any, error)
	// PatchProfile merges fields into the document, creating it if needed.
	PatchProfile(ctx context.Context, userID string, fields map[string]any) error

	ListFavorites(ctx context.Context, userID string) ([]string, error)
	AddFavorite(ctx context.Context, userID, productID string) error
	RemoveFavorite(ctx context.Context, userID, productID string) error

	ListMissions(ctx context.Context, userID string) ([]model.MissionProgress, error)
	// UpsertMission writes the row keyed by (userID, MissionID).
	UpsertMission(ctx context.Context, userID string, p model.MissionProgress) error

	InsertInventory(ctx context.Context, g model.InventoryGrant) error
}

// CatalogService is the read-mostly product catalog.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListReviews(ctx context.Context) ([]model.Review, error)
	InsertReview(ctx context.Context, r model.Review) error
}

// Topic selects realtime changes. Filter is "column=eq.value" or empty for
// the whole table.
type Topic struct {
	Table  string `json:"table"`
	Event  string `json:"event"`
	Filter string `json:"filter,omitempty"`
}

// Change is one realtime notification.
type Change struct {
	Table  string         `json:"table"`
	Event  string         `json:"event"`
	Record map[string]any `json:"record"`
}

// Subscription is a live realtime subscription. Close stops delivery; no
// handler call starts after Close returns.
type Subscription interface {
	Close() error
}

// Feed opens realtime subscriptions. Handlers are invoked sequentially per
// subscription and must not block.
type Feed interface {
	Subscribe(ctx context.Context, topic Topic, handler func(Change)) (Subscription, error)
}

// Order is what the checkout collaborator charges.
type Order struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	Lines           []model.CartLine `json:"lines"`
	DiscountPercent int              `json:"discount_percent"`
	SubtotalCents   int64            `json:"subtotal_cents"`
	TotalCents      int64            `json:"total_cents"`
}

// Receipt confirms a charged order.
type Receipt struct {
	OrderID    string    `json:"order_id"`
	TotalCents int64     `json:"total_cents"`
	ChargedAt  time.Time `json:"charged_at"`
}

// TokenPair is an issued authentication session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

package model

import "time"

// Product is a read-only catalog entity.
type Product struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PriceCents   int64   `json:"price_cents"`
	Stock        int     `json:"stock"`
	Category     string  `json:"category"`
	CollectionID string  `json:"collection_id,omitempty"`
	Rating       float64 `json:"rating"`
}

// Review is a catalog review row.
type Review struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

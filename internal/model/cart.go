package model

import "strings"

// SubscriptionPrefix marks cart lines that represent a subscription plan.
// At most one such line may exist in a cart.
const SubscriptionPrefix = "sub:"

// CartLine is a single product line in the cart.
type CartLine struct {
	ProductID     string            `json:"product_id"`
	Quantity      int               `json:"quantity"`
	PriceSnapshot int64             `json:"price_cents"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// IsSubscription reports whether the line is a subscription plan line.
func (l CartLine) IsSubscription() bool {
	return IsSubscriptionID(l.ProductID)
}

// IsSubscriptionID reports whether productID names a subscription plan.
func IsSubscriptionID(productID string) bool {
	return strings.HasPrefix(productID, SubscriptionPrefix)
}

// CartTotal returns the undiscounted total of the lines in cents.
func CartTotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.PriceSnapshot * int64(l.Quantity)
	}
	return total
}

// ApplyDiscount returns total reduced by percent, rounded down to the cent.
func ApplyDiscount(total int64, percent int) int64 {
	if percent <= 0 {
		return total
	}
	return total - total*int64(percent)/100
}

// CloneLines returns a deep copy of lines so that read-only views handed to
// the rendering layer cannot alias engine state.
func CloneLines(lines []CartLine) []CartLine {
	if lines == nil {
		return nil
	}
	out := make([]CartLine, len(lines))
	for i, l := range lines {
		out[i] = l
		if l.Metadata != nil {
			md := make(map[string]string, len(l.Metadata))
			for k, v := range l.Metadata {
				md[k] = v
			}
			out[i].Metadata = md
		}
	}
	return out
}

package catalog

import (
	"math"
	"sort"

	"github.com/roach88/storesync/internal/model"
)

// DefaultRating is shown for products that have neither reviews nor a
// manual rating.
const DefaultRating = 5.0

// AggregateRatings returns a copy of products with Rating replaced by the
// mean of the product's reviews, rounded to one decimal. Products without
// reviews keep their manual rating, or DefaultRating when none is set.
func AggregateRatings(products []model.Product, reviews []model.Review) []model.Product {
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, r := range reviews {
		sums[r.ProductID] += r.Rating
		counts[r.ProductID]++
	}

	out := make([]model.Product, len(products))
	for i, p := range products {
		out[i] = p
		if n := counts[p.ID]; n > 0 {
			out[i].Rating = roundRating(float64(sums[p.ID]) / float64(n))
			continue
		}
		if p.Rating <= 0 {
			out[i].Rating = DefaultRating
		}
	}
	return out
}

// ReviewsFor returns the reviews of one product, newest first.
func ReviewsFor(productID string, reviews []model.Review) []model.Review {
	var out []model.Review
	for _, r := range reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func roundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

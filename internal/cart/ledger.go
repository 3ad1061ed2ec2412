// Package cart implements the cart ledger: at most one line per product id,
// quantities never below one, and a single subscription-plan line.
package cart

import "github.com/roach88/storesync/internal/model"

// Ledger owns the cart lines of the active identity.
//
// Ledger is not safe for concurrent use; the engine serializes access.
type Ledger struct {
	lines []model.CartLine
}

// NewLedger returns a ledger holding a copy of lines.
func NewLedger(lines []model.CartLine) *Ledger {
	l := &Ledger{}
	l.Replace(lines)
	return l
}

// Replace swaps the ledger contents, used when a namespace switch or a
// remote overlay supplies a new cart. Duplicate product lines are folded.
func (l *Ledger) Replace(lines []model.CartLine) {
	l.lines = nil
	for _, line := range model.CloneLines(lines) {
		if line.Quantity < 1 {
			line.Quantity = 1
		}
		if i := l.index(line.ProductID); i >= 0 {
			l.lines[i].Quantity += line.Quantity
			continue
		}
		l.lines = append(l.lines, line)
	}
}

// Add increments the line for productID by quantity, or appends a new line.
// A quantity below one is treated as one. Adding a subscription plan first
// drops any existing subscription line, so the new plan replaces it.
func (l *Ledger) Add(productID string, quantity int, price int64, metadata map[string]string) {
	if quantity < 1 {
		quantity = 1
	}

	if model.IsSubscriptionID(productID) {
		kept := l.lines[:0]
		for _, line := range l.lines {
			if !line.IsSubscription() {
				kept = append(kept, line)
			}
		}
		l.lines = kept
	} else if i := l.index(productID); i >= 0 {
		l.lines[i].Quantity += quantity
		return
	}

	line := model.CartLine{ProductID: productID, Quantity: quantity, PriceSnapshot: price}
	if len(metadata) > 0 {
		line.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			line.Metadata[k] = v
		}
	}
	l.lines = append(l.lines, line)
}

// UpdateQuantity adds delta to the line's quantity, clamped at one.
// It reports whether a line for productID exists.
func (l *Ledger) UpdateQuantity(productID string, delta int) bool {
	i := l.index(productID)
	if i < 0 {
		return false
	}
	q := l.lines[i].Quantity + delta
	if q < 1 {
		q = 1
	}
	l.lines[i].Quantity = q
	return true
}

// Remove deletes the line for productID. It reports whether one existed.
func (l *Ledger) Remove(productID string) bool {
	i := l.index(productID)
	if i < 0 {
		return false
	}
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
	return true
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.lines = nil
}

// Lines returns a copy of the lines in insertion order.
func (l *Ledger) Lines() []model.CartLine {
	out := model.CloneLines(l.lines)
	if out == nil {
		return []model.CartLine{}
	}
	return out
}

// Line returns the line for productID.
func (l *Ledger) Line(productID string) (model.CartLine, bool) {
	i := l.index(productID)
	if i < 0 {
		return model.CartLine{}, false
	}
	return model.CloneLines(l.lines[i : i+1])[0], true
}

// Len returns the number of lines.
func (l *Ledger) Len() int { return len(l.lines) }

// Total returns the undiscounted total in cents.
func (l *Ledger) Total() int64 { return model.CartTotal(l.lines) }

func (l *Ledger) index(productID string) int {
	for i, line := range l.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

package model

// Discount is the single active wheel discount of an identity.
type Discount struct {
	Percent int  `json:"percent"`
	Spent   bool `json:"spent"`
}

// ValidDiscountPercent reports whether p is a percent the wheel can award.
func ValidDiscountPercent(p int) bool {
	switch p {
	case 0, 3, 5, 10:
		return true
	}
	return false
}

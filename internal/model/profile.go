package model

import (
	"encoding/json"
	"math"
	"strconv"
)

// Profile document field names on the remote store.
const (
	FieldCoins          = "coins"
	FieldLoginStreak    = "login_streak"
	FieldLastLoginDate  = "last_login_date"
	FieldLoginDaysTotal = "login_days_total"
	FieldMembership     = "membership"
	FieldAvatarURL      = "avatar_url"
	FieldLocation       = "location"
	FieldBirthDate      = "birth_date"
	FieldPhone          = "phone"
	FieldFullName       = "full_name"
	FieldCart           = "cart"
	FieldDiscount       = "discount"
	FieldHasSpun        = "has_spun"
	FieldFavorites      = "favorites"
)

// ProfileDoc is the typed view of a remote profile document.
//
// Pointer and *Present fields distinguish "absent or null or wrong type"
// from a present zero value. Only present fields may overwrite local state.
type ProfileDoc struct {
	ID             string
	Coins          *int64
	LoginStreak    *int
	LastLoginDate  *string
	LoginDaysTotal *int
	Membership     *Membership
	AvatarURL      *string
	Location       *string
	BirthDate      *string
	Phone          *string
	FullName       *string

	Cart        []CartLine
	CartPresent bool
	Discount    *int
	HasSpun     *bool

	Favorites        []string
	FavoritesPresent bool
}

// DecodeProfile coerces a raw remote document into a ProfileDoc.
// Fields of an unexpected type are treated as absent.
func DecodeProfile(raw map[string]any) ProfileDoc {
	doc := ProfileDoc{}
	if id, ok := asString(raw["id"]); ok {
		doc.ID = id
	}
	if v, ok := asInt(raw[FieldCoins]); ok {
		c := int64(v)
		doc.Coins = &c
	}
	doc.LoginStreak = intPtr(raw[FieldLoginStreak])
	doc.LoginDaysTotal = intPtr(raw[FieldLoginDaysTotal])
	doc.LastLoginDate = stringPtr(raw[FieldLastLoginDate])
	doc.AvatarURL = stringPtr(raw[FieldAvatarURL])
	doc.Location = stringPtr(raw[FieldLocation])
	doc.BirthDate = stringPtr(raw[FieldBirthDate])
	doc.Phone = stringPtr(raw[FieldPhone])
	doc.FullName = stringPtr(raw[FieldFullName])

	if s, ok := asString(raw[FieldMembership]); ok {
		m := Membership(s)
		if m.Valid() {
			doc.Membership = &m
		}
	}

	if lines, ok := DecodeCart(raw[FieldCart]); ok {
		doc.Cart = lines
		doc.CartPresent = true
	}

	if v, ok := asInt(raw[FieldDiscount]); ok && ValidDiscountPercent(v) {
		doc.Discount = &v
	}
	if b, ok := raw[FieldHasSpun].(bool); ok {
		doc.HasSpun = &b
	}

	if favs, ok := DecodeStringList(raw[FieldFavorites]); ok {
		doc.Favorites = favs
		doc.FavoritesPresent = true
	}
	return doc
}

// DecodeCart coerces a raw cart array. It returns ok=false when v is not an
// array; malformed elements inside an array are skipped and duplicate product
// ids are folded into the first occurrence.
func DecodeCart(v any) ([]CartLine, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	lines := make([]CartLine, 0, len(arr))
	index := make(map[string]int, len(arr))
	for _, elem := range arr {
		obj, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		pid, ok := asString(obj["product_id"])
		if !ok || pid == "" {
			continue
		}
		qty, ok := asInt(obj["quantity"])
		if !ok || qty < 1 {
			continue
		}
		line := CartLine{ProductID: pid, Quantity: qty}
		if price, ok := asInt(obj["price_cents"]); ok {
			line.PriceSnapshot = int64(price)
		}
		if md, ok := obj["metadata"].(map[string]any); ok {
			line.Metadata = make(map[string]string, len(md))
			for k, mv := range md {
				if s, ok := mv.(string); ok {
					line.Metadata[k] = s
				}
			}
		}
		if i, dup := index[pid]; dup {
			lines[i].Quantity += qty
			continue
		}
		index[pid] = len(lines)
		lines = append(lines, line)
	}
	return lines, true
}

// DecodeStringList coerces a raw array of strings, skipping non-strings and
// duplicates while preserving first-seen order.
func DecodeStringList(v any) ([]string, bool) {
	arr, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return dedupe(ss), true
		}
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, elem := range arr {
		if s, ok := elem.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return dedupe(out), true
}

// EncodeCart converts lines into the remote wire representation.
func EncodeCart(lines []CartLine) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		m := map[string]any{
			"product_id":  l.ProductID,
			"quantity":    l.Quantity,
			"price_cents": l.PriceSnapshot,
		}
		if len(l.Metadata) > 0 {
			m["metadata"] = l.Metadata
		}
		out = append(out, m)
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func intPtr(v any) *int {
	i, ok := asInt(v)
	if !ok {
		return nil
	}
	return &i
}

func stringPtr(v any) *string {
	s, ok := asString(v)
	if !ok {
		return nil
	}
	return &s
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asInt accepts JSON numbers decoded as float64 or json.Number and Go ints.
// Non-integral values and values outside the int range are rejected.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n >= -math.MinInt {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, strconv.IntSize)
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

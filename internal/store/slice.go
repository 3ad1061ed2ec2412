package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/roach88/storesync/internal/model"
)

// Slice is one logical piece of identity-scoped persisted state.
//
// All slices follow the same pattern: the storage key is name + ":" + the
// identity id, values are JSON, loads fall back to the default, and saves are
// best-effort.
type Slice[T any] struct {
	name string
	def  func() T
}

// NewSlice declares a slice. def produces the value returned when nothing
// usable is persisted; it is called on every miss so callers may mutate it.
func NewSlice[T any](name string, def func() T) Slice[T] {
	return Slice[T]{name: name, def: def}
}

// The four per-identity slices.
var (
	Favorites = NewSlice("favorites", func() []string { return []string{} })
	Cart      = NewSlice("cart", func() []model.CartLine { return []model.CartLine{} })
	Discount  = NewSlice("discount", func() int { return 0 })
	SpinUsed  = NewSlice("spin_used", func() bool { return false })
)

// Name returns the slice name.
func (s Slice[T]) Name() string {
	return s.name
}

// Key returns the storage key for identityID.
func (s Slice[T]) Key(identityID string) string {
	return s.name + ":" + identityID
}

// Load reads the slice for identityID. Missing keys, read failures and parse
// failures all yield the default value.
func (s Slice[T]) Load(ctx context.Context, kv KV, identityID string) T {
	return loadJSON(ctx, kv, s.Key(identityID), s.def)
}

// Save writes the slice for identityID. Failures are logged and swallowed;
// the previously persisted value is unchanged.
func (s Slice[T]) Save(ctx context.Context, kv KV, identityID string, value T) {
	saveJSON(ctx, kv, s.Key(identityID), value)
}

// Record is a process-wide (not identity-scoped) persisted value.
type Record[T any] struct {
	key string
}

// NewRecord declares a process-wide record stored under key.
func NewRecord[T any](key string) Record[T] {
	return Record[T]{key: key}
}

// Key returns the storage key.
func (r Record[T]) Key() string {
	return r.key
}

// Load reads the record. ok is false if it is absent or unparseable.
func (r Record[T]) Load(ctx context.Context, kv KV) (T, bool) {
	var zero T
	data, found, err := kv.Get(ctx, r.key)
	if err != nil {
		slog.Warn("local record read failed", "key", r.key, "error", err)
		return zero, false
	}
	if !found {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Warn("local record unparseable", "key", r.key, "error", err)
		return zero, false
	}
	return v, true
}

// Save writes the record, logging and swallowing failures.
func (r Record[T]) Save(ctx context.Context, kv KV, value T) {
	saveJSON(ctx, kv, r.key, value)
}

// Clear removes the record, logging and swallowing failures.
func (r Record[T]) Clear(ctx context.Context, kv KV) {
	if err := kv.Delete(ctx, r.key); err != nil {
		slog.Warn("local record delete failed", "key", r.key, "error", err)
	}
}

func loadJSON[T any](ctx context.Context, kv KV, key string, def func() T) T {
	data, found, err := kv.Get(ctx, key)
	if err != nil {
		slog.Warn("local slice read failed", "key", key, "error", err)
		return def()
	}
	if !found {
		return def()
	}
	v := def()
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Warn("local slice unparseable, using default", "key", key, "error", err)
		return def()
	}
	return v
}

func saveJSON(ctx context.Context, kv KV, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("local save: serialization failed", "key", key, "error", err)
		return
	}
	if err := kv.Put(ctx, key, data); err != nil {
		slog.Warn("local save failed", "key", key, "error", err)
	}
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storesync/internal/model"
)

func TestSlice_KeyComposition(t *testing.T) {
	assert.Equal(t, "favorites:guest", Favorites.Key(model.GuestID))
	assert.Equal(t, "cart:user-42", Cart.Key("user-42"))
	assert.Equal(t, "discount:user-42", Discount.Key("user-42"))
	assert.Equal(t, "spin_used:user-42", SpinUsed.Key("user-42"))
}

func TestSlice_LoadDefaultWhenAbsent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.Equal(t, []string{}, Favorites.Load(ctx, s, "guest"))
	assert.Equal(t, []model.CartLine{}, Cart.Load(ctx, s, "guest"))
	assert.Equal(t, 0, Discount.Load(ctx, s, "guest"))
	assert.False(t, SpinUsed.Load(ctx, s, "guest"))
}

func TestSlice_IdentitiesNeverObserveEachOther(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	Cart.Save(ctx, s, "guest", []model.CartLine{{ProductID: "p1", Quantity: 2}})
	Cart.Save(ctx, s, "user-42", []model.CartLine{{ProductID: "p9", Quantity: 1}})
	Favorites.Save(ctx, s, "guest", []string{"A"})

	assert.Equal(t, []model.CartLine{{ProductID: "p1", Quantity: 2}}, Cart.Load(ctx, s, "guest"))
	assert.Equal(t, []model.CartLine{{ProductID: "p9", Quantity: 1}}, Cart.Load(ctx, s, "user-42"))
	assert.Equal(t, []string{}, Favorites.Load(ctx, s, "user-42"))
}

func TestSlice_ParseErrorYieldsDefault(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Discount.Key("guest"), []byte("{not json")))

	assert.Equal(t, 0, Discount.Load(ctx, s, "guest"))
}

func TestSlice_SaveFailureKeepsPreviousValue(t *testing.T) {
	s := createTestStore(t, WithQuota(16))
	ctx := context.Background()

	Favorites.Save(ctx, s, "guest", []string{"A"})
	Favorites.Save(ctx, s, "guest", []string{"much-too-long-to-fit", "another"})

	assert.Equal(t, []string{"A"}, Favorites.Load(ctx, s, "guest"))
}

func TestRecord_LoadSaveClear(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := NewRecord[model.Identity]("identity:last")

	_, ok := rec.Load(ctx, s)
	assert.False(t, ok)

	rec.Save(ctx, s, model.Identity{ID: "user-1", Registered: true})
	got, ok := rec.Load(ctx, s)
	require.True(t, ok)
	assert.Equal(t, "user-1", got.ID)

	rec.Clear(ctx, s)
	_, ok = rec.Load(ctx, s)
	assert.False(t, ok)
}

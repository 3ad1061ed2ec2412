package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storesync/internal/model"
)

func TestDefaultCatalogCompiles(t *testing.T) {
	c := Default()

	require.NotEmpty(t, c.Missions)
	first, ok := c.Mission("first_step")
	require.True(t, ok)
	assert.Equal(t, TriggerFirstPurchase, first.Trigger)
	assert.Equal(t, 1, first.Target)

	loyal := c.ByTrigger(TriggerPurchaseCount)
	require.Len(t, loyal, 1)
	assert.Equal(t, "loyal_customer", loyal[0].ID)
	assert.Equal(t, 5, loyal[0].Target)

	for _, m := range c.Missions {
		assert.GreaterOrEqual(t, m.Target, 1, m.ID)
	}
}

func TestDefaultCatalogRewards(t *testing.T) {
	c := Default()

	ship, ok := c.Reward("free_shipping")
	require.True(t, ok)
	assert.Nil(t, ship.Stock, "unlimited stock")
	assert.Equal(t, 30, ship.ValidDays)

	box, ok := c.Reward("mystery_box")
	require.True(t, ok)
	require.NotNil(t, box.Stock)
	assert.Equal(t, 25, *box.Stock)
	assert.Equal(t, 14, box.ValidDays)

	_, ok = c.Reward("nope")
	assert.False(t, ok)
}

func TestCompilePreservesDeclarationOrder(t *testing.T) {
	c, err := Compile("t.cue", `
		missions: {
			zeta: { title: "Z", trigger: "shares", target: 2, reward: 1 }
			alpha: { title: "A", trigger: "shares", target: 1, reward: 1 }
		}
	`)
	require.NoError(t, err)

	require.Len(t, c.Missions, 2)
	assert.Equal(t, "zeta", c.Missions[0].ID)
	assert.Equal(t, "alpha", c.Missions[1].ID)
	assert.Empty(t, c.Rewards)
}

func TestCompileRejectsZeroTarget(t *testing.T) {
	src := defaultCatalogSource + `
missions: bad: { title: "Bad", trigger: "shares", target: 0, reward: 1 }
`
	_, err := Compile("bad.cue", src)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}

func TestCompileRejectsUnknownTrigger(t *testing.T) {
	src := defaultCatalogSource + `
missions: bad: { title: "Bad", trigger: "teleport", target: 1, reward: 1 }
`
	_, err := Compile("bad.cue", src)
	require.Error(t, err)
}

func TestCompileRequiresMissions(t *testing.T) {
	_, err := Compile("empty.cue", `rewards: {}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one mission")
}

func TestCompileSyntaxError(t *testing.T) {
	_, err := Compile("broken.cue", `missions: {`)
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
		missions: only: { title: "Only", trigger: "reviews", target: 3, reward: 9 }
		rewards: r: { title: "R", cost: 10, stock: 2, valid_days: 7 }
	`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	m, ok := c.Mission("only")
	require.True(t, ok)
	assert.Equal(t, int64(9), m.Reward)
	r, ok := c.Reward("r")
	require.True(t, ok)
	require.NotNil(t, r.Stock)
	assert.Equal(t, 2, *r.Stock)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
}

func TestAggregateRatings(t *testing.T) {
	products := []model.Product{
		{ID: "p1", Rating: 3.0},
		{ID: "p2", Rating: 4.2},
		{ID: "p3"},
	}
	reviews := []model.Review{
		{ProductID: "p1", Rating: 5},
		{ProductID: "p1", Rating: 4},
		{ProductID: "p1", Rating: 4},
		{ProductID: "other", Rating: 1},
	}

	got := AggregateRatings(products, reviews)

	require.Len(t, got, 3)
	assert.Equal(t, 4.3, got[0].Rating, "mean 13/3 rounds to one decimal")
	assert.Equal(t, 4.2, got[1].Rating, "manual rating kept")
	assert.Equal(t, DefaultRating, got[2].Rating)
	assert.Equal(t, 3.0, products[0].Rating, "input not mutated")
}

func TestReviewsForNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reviews := []model.Review{
		{ID: "a", ProductID: "p1", CreatedAt: base},
		{ID: "b", ProductID: "p2", CreatedAt: base.Add(time.Hour)},
		{ID: "c", ProductID: "p1", CreatedAt: base.Add(2 * time.Hour)},
	}

	got := ReviewsFor("p1", reviews)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

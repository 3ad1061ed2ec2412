package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storesync/internal/engine"
	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/testutil"
)

func snapshotFixture() engine.Snapshot {
	ident := model.Guest()
	ident.ID = "user-7"
	ident.Registered = true
	ident.DisplayName = "Ada"
	return engine.Snapshot{
		Identity:  ident,
		Synced:    true,
		Cart:      []model.CartLine{{ProductID: "p1", Quantity: 2, PriceSnapshot: 1000}},
		CartTotal: 2000,
		Favorites: []string{"p1", "p2"},
		Discount:  model.Discount{Percent: 10, Spent: true},
		Wheel:     "resolved",
		Missions:  []model.MissionProgress{{MissionID: "first_step", Progress: 1, Completed: true, Claimed: true}},
		Inventory: []model.InventoryGrant{{ID: "g1", RewardID: "free_shipping", ExpiresAt: "2026-04-01T09:00:00Z"}},
	}
}

func TestState_Guest(t *testing.T) {
	opts, _ := newTestRoot(t, "")

	out, err := execute(t, NewStateCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Identity:   guest (Guest, guest)")
	assert.Contains(t, out, "Favorites:  (none)")
	assert.Contains(t, out, "Wheel:      idle (spent=false)")
}

func TestState_PersistedSessionStaysOffline(t *testing.T) {
	// A remote is configured but state never contacts it.
	opts, _ := newTestRoot(t, "http://127.0.0.1:1")
	sess := testutil.Session(t, "user-7", "ada@example.com", "Ada Lovelace")
	_, err := execute(t, NewLoginCommand(opts), "--token", sess.AccessToken)
	require.NoError(t, err)

	out, err := execute(t, NewStateCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Identity:   user-7 (ada, registered)")
	assert.Contains(t, out, "Synced:     true")
}

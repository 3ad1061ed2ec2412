package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_scenario
description: "Test scenario for validation"
start: "2026-05-01T08:00:00Z"
picks: [2, 0]
remote:
  products:
    - {id: p1, name: Cap, price_cents: 900, stock: 1, category: hats}
local:
  - identity: user-1
    cart:
      - {product: p1, quantity: 2, price: 900}
steps:
  - action: add_to_cart
    args:
      product: p1
      quantity: 1
    expect:
      state:
        cart_total_cents: 900
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, []int{2, 0}, scenario.Picks)
	require.Len(t, scenario.Local, 1)
	assert.Equal(t, LocalLine{Product: "p1", Quantity: 2, Price: 900}, scenario.Local[0].Cart[0])
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, "add_to_cart", scenario.Steps[0].Action)
	assert.Equal(t, 900, scenario.Steps[0].Expect.State["cart_total_cents"])

	start, err := scenario.startTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), start)

	seed, err := scenario.seed()
	require.NoError(t, err)
	require.Len(t, seed.Products, 1)
	assert.Equal(t, int64(900), seed.Products[0].PriceCents)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario("/nonexistent/path/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nsteps:\n  - action: drain\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nsteps:\n  - action: drain\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown action",
			content: "name: n\ndescription: d\nsteps:\n  - action: teleport\n",
			wantErr: `unknown action "teleport"`,
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nstpes: []\nsteps:\n  - action: drain\n",
			wantErr: "field stpes not found",
		},
		{
			name:    "bad start",
			content: "name: n\ndescription: d\nstart: tomorrow\nsteps:\n  - action: drain\n",
			wantErr: "start:",
		},
		{
			name:    "unknown seed field",
			content: "name: n\ndescription: d\nremote: {carts: {}}\nsteps:\n  - action: drain\n",
			wantErr: "decode seed",
		},
		{
			name:    "local without identity",
			content: "name: n\ndescription: d\nlocal:\n  - favorites: [p1]\nsteps:\n  - action: drain\n",
			wantErr: "local[0]: identity is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

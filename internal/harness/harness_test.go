package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ExpectationFailureIsReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: failing
description: expectations that do not hold
steps:
  - action: open
    args: {overlay: cart}
    expect:
      state:
        overlays: [checkout]
  - action: claim_mission
    args: {mission: first_step}
  - action: back
    expect:
      error: VALIDATION
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], `state.overlays[0]: expected "checkout", got "cart"`)
	assert.Contains(t, result.Errors[1], "unexpected error")
	assert.Contains(t, result.Errors[2], "expected error VALIDATION, got success")
	assert.Len(t, result.Trace, 3)
	assert.Equal(t, "02 claim_mission mission=first_step -> error VALIDATION", result.Trace[1].String())
}

func TestRun_BadArgumentsFailTheStep(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_args
description: arguments of the wrong type
steps:
  - action: add_to_cart
    args: {quantity: 1}
  - action: open
    args: {overlay: drawer}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, "error ERROR", result.Trace[0].Outcome)
	assert.Equal(t, "error ERROR", result.Trace[1].Outcome)
}

func TestRun_LocalSeedAndDateChange(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: streak
description: a login on the next calendar day continues the streak
local:
  - identity: user-3
    cart:
      - {product: p5, quantity: 3, price: 100}
    discount: 5
    spin_used: true
remote:
  profiles:
    user-3: {login_streak: 4, last_login_date: "2026-03-01", login_days_total: 9}
steps:
  - action: login
    args: {user: user-3, name: "Ada Lovelace"}
    expect:
      state:
        cart:
          - {product_id: p5, quantity: 3}
        discount: {percent: 5, spent: true}
        wheel: resolved
  - action: drain
    expect:
      state:
        identity:
          display_name: Ada Lovelace
          stats: {login_streak: 5, login_days_total: 10, last_login_date: "2026-03-02"}
  - action: spin
  - action: set_date
    args: {time: "2026-03-06T10:00:00Z"}
  - action: logout
    expect:
      state:
        identity: {id: guest}
        cart: []
  - action: login
    args: {user: user-3}
  - action: drain
    expect:
      state:
        identity:
          stats: {login_streak: 1, login_days_total: 11}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, "03 spin -> ok refused", result.Trace[2].String())
	assert.True(t, strings.HasPrefix(result.Final, "user=user-3 synced=true"))
	assert.Contains(t, result.Final, "cart=[p5x3]")
}

func TestRun_ReviewsAndShares(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: reviews
description: reviews are validated and update ratings
remote:
  products:
    - {id: p1, name: Scarf, price_cents: 1200, stock: 4, category: acc}
steps:
  - action: submit_review
    args: {product: p1, rating: 5, comment: "lovely"}
    expect:
      error: VALIDATION
  - action: login
    args: {user: user-7}
  - action: drain
  - action: submit_review
    args: {product: p1, rating: 6, comment: "too good"}
    expect:
      error: VALIDATION
  - action: submit_review
    args: {product: p1, rating: 4, comment: "  cosy  "}
  - action: drain
    expect:
      state:
        products:
          - {id: p1, rating: 4}
  - action: share_product
    args: {product: p1}
    expect:
      state:
        overlays: [share]
        identity:
          stats: {products_shared: 1}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, "ok review=id-1", result.Trace[4].Outcome)
	assert.Equal(t, "ok events=2", result.Trace[5].Outcome)
}

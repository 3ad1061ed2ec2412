// Package harness runs storesync scenarios: YAML scripts of user actions,
// remote events and clock movements played against a real engine with a
// fake remote tier, an inline task executor and a manual clock.
//
// Every step is recorded in a trace. A step may assert on its outcome
// (an expected error code) and on the engine snapshot after it ran (a
// subset match against the snapshot's JSON form). Traces can be compared
// against golden files with RunWithGolden.
//
// Scenario file layout:
//
//	name: wheel_discount_consumed_by_checkout
//	description: ...
//	picks: [0]                # wheel picker script
//	verified_user: user-7     # identity the checkout collaborator verifies
//	remote:                   # twin seed: products, reviews, profiles, favorites, missions
//	  products: [...]
//	local:                    # slices persisted locally before start
//	  - identity: guest
//	    favorites: [p1]
//	steps:
//	  - action: login
//	    args: {user: user-7}
//	  - action: drain
//	    expect:
//	      state: {synced: true}
//
// Remote I/O runs inline, but its results are only applied by an explicit
// drain step, so a scenario can observe state before and after
// reconciliation.
package harness

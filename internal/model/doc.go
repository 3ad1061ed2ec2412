// Package model defines the typed entities shared by every storesync component.
//
// Remote documents arrive as loosely typed JSON. Nothing from the remote store
// enters the engine without passing through the Decode* functions in this
// package, which treat every field as optional until proven present and of
// the expected type.
//
// Entities:
//   - Identity: the single active user (guest sentinel or registered)
//   - CartLine: one product line, unique per product id
//   - Discount: the single-use wheel discount
//   - MissionProgress: per-identity progress against a static mission
//   - Product / Review: read-only catalog collaborators
package model

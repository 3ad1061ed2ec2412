// Package engine implements the storesync reconciliation engine.
//
// The engine owns the in-memory state of the active identity (cart,
// favorites, wheel discount, mission progress and profile fields) and keeps
// it consistent with two persistence tiers: the local key/value store and
// the authoritative remote profile store.
//
// ARCHITECTURE:
//
// Single-Writer State:
// All state lives behind one mutex. User operations take the mutex for the
// duration of their state change. Everything asynchronous (remote fetches,
// realtime pushes, debounce and spin timers) never touches state directly.
// It posts an Event to the FIFO queue, and the event is applied under the
// same mutex by Run (or Drain in tests).
//
// Generations:
// Every identity switch bumps a generation counter. Events carry the
// generation they were created under and are dropped when it no longer
// matches, so a late fetch for a previous identity can never overwrite the
// current one.
//
// Tasks:
// Remote I/O runs in tasks on an executor. In production each task gets its
// own goroutine. Tests and scenarios use the inline executor, which runs a
// task to completion on the calling goroutine; tasks only post events and
// never take the state mutex, so this cannot deadlock.
//
// Event Processing Flow:
//  1. An operation mutates state and may start a task
//  2. The task performs remote I/O and posts its outcome as an Event
//  3. Run dequeues the event and applies it under the state mutex
//  4. Stale events (old generation) are logged and dropped
package engine

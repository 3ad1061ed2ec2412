// Package store provides the SQLite-backed local persistence tiers.
//
// Two tiers share one implementation:
//   - Local: a file database that survives restarts (document of record for
//     anonymous identities, fast path for registered ones)
//   - Session: an in-memory database that lives as long as the process
//
// Both are plain key/value tables. Identity-scoped state is stored through
// Slice, which composes the storage key from a fixed slice name and the
// identity id, so that switching identity deterministically switches the
// visible value:
//
//	favorites:guest   -> ["p1","p3"]
//	favorites:user-42 -> ["p9"]
//
// # Failure model
//
// Slice.Load never fails: parse errors and missing keys both yield the
// slice default. Slice.Save never fails either: serialization and quota errors
// are logged and the previously persisted value is left untouched.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store

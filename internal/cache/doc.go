// Package cache provides a SQLite-backed cache of compiled units.
//
// Entries are keyed by ir.SourceKey, which covers the source text, the
// parse mode, the optimizer options and the toolchain version, so a hit is
// always safe to reuse. The stored payload is the interchange envelope of
// the optimized store.
//
// # Eviction
//
// Every Get and Put stamps the entry with the next value of a logical
// clock. Evict removes entries in ascending stamp order, ties broken by
// key, until the total payload size fits the limit. Wall-clock time is
// never consulted, so eviction order is reproducible.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package cache

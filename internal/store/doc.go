// Package store provides the SQLite-backed backend collaborator for fitsync.
//
// The store implements the relational side of the backend contract:
//   - CRUD on profiles, sessions (+exercises), follows, likes, comments,
//     notifications, conversations, messages, palmares, personal records
//     and session photos
//   - Count queries with equality filters (follower counts, unread counts)
//   - A subscribe-to-inserts change feed on notifications, filtered by
//     recipient (see feed.go)
//
// # Idempotent writes
//
// Follow and like inserts use ON CONFLICT DO NOTHING and deletes of absent
// rows are no-ops, so a retried or duplicated write converges on the same
// state.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Row IDs are UUIDv7 strings.
package store

// Package cache is the local persistent key-value storage collaborator.
//
// The feed stores one string-serialized notification list per user under the
// key "notifications_{userId}". There are no transactional guarantees across
// keys; every operation is a whole-value read or overwrite.
//
// Drivers:
//   - "file":   dependency-free, one JSON-encoded file per key, atomic rename writes
//   - "sqlite": single kv table (optional build tag)
//   - "none":   disabled; the feed keeps the session's list in memory only
package cache

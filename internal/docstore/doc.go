// Package docstore is the document database collaborator the feed watches.
//
// The production app backs this with its cloud document database; this repo
// ships an in-memory backend with the same delivery semantics so the daemon
// and tests can run without a backend:
//
//   - Subscribe delivers the FULL current collection state on any change.
//   - Delivery is at-least-once: rapid writes may coalesce into one snapshot,
//     and the same state may be delivered more than once.
//   - No ordering guarantees beyond "eventually the latest state arrives".
//
// Consumers must tolerate all of the above; the feed's dedup logic exists
// precisely because of these semantics.
package docstore

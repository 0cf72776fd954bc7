// Package feed reconciles remote record changes into a local notification feed.
//
// For every attached (user, role) session it watches three entity streams in
// the document store (appointments, referrals, and professional-fee status)
// through two independent paths:
//
//   - a one-shot catch-up scan covering history since the user's last login
//     (for changes missed while no listener was attached), and
//   - a live subscription diffing each delivered snapshot against the
//     previously seen per-entity state.
//
// Both paths can observe the same transition, and the underlying subscription
// is at-least-once, so synthesized notifications flow through a dedup & merge
// engine before being persisted to the per-user cache and dispatched to the
// registered UI callback. The persisted list holds at most one notification
// per (relatedId, type, status) regardless of how often a change was seen.
//
// Detach must be clean: unsubscribing cancels the live listeners and any
// pending debounce timer, so no dispatch fires after detach.
package feed

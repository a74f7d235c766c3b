// Package collab implements the real-time collaboration core: a registry of
// live sessions and, per session, a broadcast hub that owns the shared
// code/language state and fans messages out to members.
//
// The package implements:
//   - Registry: session creation, lookup, and grace-period garbage collection
//   - Hub: the per-session serialization point for joins, leaves, code
//     updates, and relays
//   - presence tracking: insertion-ordered member list with palette colors
//
// All mutation of a session's state goes through its Hub, which serializes
// operations under one mutex. Code updates are last-writer-wins: the most
// recently accepted update replaces prior state with no merging, so
// near-simultaneous edits can discard one author's changes. That is the
// contract, not a defect.
package collab

// Package rate provides the Redis fixed-window counter used by the login throttles.
//
// # Window semantics
//
// INCR + conditional EXPIRE on first hit. The window starts at the first hit and the key
// disappears when it ends. Callers own their key namespaces (see internal/limiters).
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the rsvp module.
package rate

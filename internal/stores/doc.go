// Package stores provides the Redis-backed, short-lived login challenge store.
//
// # Design
//
// Each challenge is a versioned, binary-encoded record stored with a TTL. Consume runs
// as a single Lua script: expiry, digest check, attempt counting and deletion happen in
// one round trip, so a ticket can be redeemed at most once even under concurrent verifies.
// Digest comparisons are repeated in Go with constant-time compare.
//
// # Architecture boundaries
//
// This package owns persistence of transient challenge records. It does NOT generate
// codes, enforce rate limits, or make authentication decisions. Those belong to the flow
// functions in internal/flows.
//
// # What this package must NOT do
//
//   - Import the rsvp root package or any sibling internal package.
//   - Log or expose plaintext codes.
package stores

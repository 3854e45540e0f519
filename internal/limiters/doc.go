// Package limiters provides the login throttles built on top of the internal/rate
// fixed-window primitive.
//
//   - [LoginLimiter.CheckRequest]: per-email + per-IP budget for login code requests.
//   - [LoginLimiter.CheckVerify]: per-login-reference + per-IP budget for code checks.
//
// Calling any method on a nil limiter returns nil.
//
// # What this package must NOT do
//
//   - Import the rsvp root package or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters

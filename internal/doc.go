// Package internal holds helpers private to the rsvp module: login reference and code
// generation plus challenge digests.
//
// # Sub-packages
//
//   - flows: pure-function orchestrators for every Service operation
//   - limiters: login request and verify throttles
//   - rate: Redis fixed-window counter primitive
//   - stores: Redis-backed single-use login challenges
//   - appconfig: viper/pflag/.env process configuration
//   - logging: zap logger construction
//   - security: login hardening report
//
// # What this package must NOT do
//
//   - Export types that appear in the public rsvp API.
//   - Be imported by any package outside the rsvp module.
package internal

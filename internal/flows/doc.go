// Package flows contains pure-function orchestrators for every Service operation.
//
// Each flow function (RunRequestLogin, RunVerifyLogin, RunGetRSVP, RunSubmitRSVP) accepts
// a typed dependency struct and returns results without side-effects beyond those
// dependencies. Flows can be tested with plain function fakes and the Service type stays
// thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the challenge store, limiters, token issuer, mailer,
// RSVP store, audit dispatcher, and metrics. They do NOT own any of these resources.
// Ownership stays with the root Service.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the rsvp root package (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency funcs.
package flows

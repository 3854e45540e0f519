// Package rsvp implements the backend of an event RSVP site: invited guests
// request a login code by email, trade the code for a short-lived signed
// credential, and use that credential to read and update their own RSVP.
//
// The package is the public surface. It exposes [Service], [Builder],
// [Config] and the value types ([Record], [LoginTicket], [Identity]).
// Flow orchestration, the Redis challenge store and the login throttles live
// under internal/ and are never exported.
//
// # Login modes
//
// [LoginStatic] reproduces the development contract: request-login always
// returns token "devtoken123" and code "1234", and verify accepts "1234" for
// any email. [LoginChallenge] issues a per-ticket code bound to the email it
// was sent to; the code is stored hashed in Redis, is single use and expires.
//
// # Storage
//
// RSVP records go through the [Store] interface. [MemoryStore] lives here;
// Redis and SQL implementations live in storage/redisstore and
// storage/gormstore.
package rsvp

// Package token issues and verifies the short-lived signed credentials handed to guests
// after a successful login code exchange.
//
// Every credential carries sub, scope, iat and exp claims and is signed with HMAC-SHA256
// using a secret supplied through [Config]. There is no fallback secret: [NewIssuer]
// refuses to build an issuer without one.
package token

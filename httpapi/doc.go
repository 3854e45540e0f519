// Package httpapi serves the guest-facing JSON API on gin:
//
//	GET  /health, /api/v1/health
//	POST /api/v1/auth/request-login
//	POST /api/v1/auth/verify
//	GET  /api/v1/rsvps/me   (bearer)
//	POST /api/v1/rsvps/me   (bearer)
//
// Request fields come from a JSON body when one is sent, otherwise from the
// query string. Errors are {"error": code, "detail": message}.
package httpapi

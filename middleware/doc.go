// Package middleware holds the gin middleware shared by the HTTP API:
// [Guard] checks the bearer credential through the service and stores the
// guest identity on the gin context; [RequestContext] forwards client IP and
// User-Agent into the request context.
//
// Authentication decisions are delegated to the service. This package never
// parses credentials itself.
package middleware

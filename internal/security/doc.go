// Package security builds the read-only hardening report returned by
// rsvp.Service.SecurityReport. It performs no I/O and reads no globals.
package security

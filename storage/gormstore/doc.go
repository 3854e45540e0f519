// Package gormstore is the durable SQL backend: RSVP records, the invited
// guest list and the user activity log, through gorm with postgres or sqlite.
package gormstore

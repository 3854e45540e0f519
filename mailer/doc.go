// Package mailer delivers login codes. SMTPMailer sends real mail;
// LogMailer writes the code to the log for local development; NopMailer
// drops everything.
package mailer

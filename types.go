package rsvp

import (
	"context"
	"time"
)

// Status is a guest's answer to the invitation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// ParseStatus accepts exactly the three known statuses. Anything else,
// including different casing, is ErrValidation.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusAccepted, StatusDeclined:
		return st, nil
	}
	return "", ErrValidation
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Record is one guest's RSVP.
type Record struct {
	Status       Status `json:"status"`
	DietaryNotes string `json:"dietary_notes"`
	SongRequest  string `json:"song_request"`
}

// DefaultRecord is what a guest sees before submitting anything.
func DefaultRecord() Record {
	return Record{Status: StatusPending}
}

// Store persists RSVP records keyed by guest subject. Each method is a single
// atomic operation on one key; last write wins.
type Store interface {
	// GetRSVP returns ErrNotFound when the subject has no record.
	GetRSVP(ctx context.Context, subject string) (Record, error)
	UpsertRSVP(ctx context.Context, subject string, record Record) error
}

// Pinger is implemented by stores that can report whether their backend is
// reachable. Service.Ping checks it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Guest is an invited person.
type Guest struct {
	Email string
	Name  string
}

// GuestDirectory answers whether an email was invited. LookupGuest returns
// ErrNotFound for unknown addresses.
type GuestDirectory interface {
	LookupGuest(ctx context.Context, email string) (Guest, error)
}

// LoginMessage is the payload handed to a Mailer for one login request.
type LoginMessage struct {
	Email     string
	Name      string
	LoginID   string
	Code      string
	Link      string
	ExpiresAt time.Time
}

// Mailer delivers login codes.
type Mailer interface {
	SendLoginCode(ctx context.Context, msg LoginMessage) error
}

// LoginTicket is the request-login response. Code is empty unless the
// service runs in static mode or exposes codes.
type LoginTicket struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

// VerifyResult carries the signed guest credential.
type VerifyResult struct {
	OK    bool   `json:"ok"`
	Token string `json:"token"`
}

// Identity is the authenticated caller extracted from a credential.
type Identity struct {
	Subject   string
	Scope     string
	ExpiresAt time.Time
}

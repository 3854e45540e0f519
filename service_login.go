package rsvp

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/cactusmakesperfect/rsvp/internal/flows"
	"github.com/cactusmakesperfect/rsvp/internal/limiters"
	"github.com/cactusmakesperfect/rsvp/internal/stores"
	"go.uber.org/zap"
)

// RequestLogin starts a login for email. In static mode it always returns
// the fixed development ticket. In challenge mode it stores a single-use
// challenge and mails the code; the code is only returned when ExposeCode is set.
func (s *Service) RequestLogin(ctx context.Context, email string) (LoginTicket, error) {
	if s == nil || !s.flows.Initialized() {
		return LoginTicket{}, ErrEngineNotReady
	}
	ticket, err := s.flows.RequestLogin(ctx, email)
	if err != nil {
		return LoginTicket{}, err
	}
	return LoginTicket{Token: ticket.LoginID, Code: ticket.Code}, nil
}

// Verify checks a code and, on success, returns a signed guest credential
// for the email. Every wrong code, token or email yields ErrUnauthorized.
func (s *Service) Verify(ctx context.Context, loginToken, email, code string) (VerifyResult, error) {
	if s == nil || !s.flows.Initialized() {
		return VerifyResult{}, ErrEngineNotReady
	}
	verified, err := s.flows.VerifyLogin(ctx, loginToken, email, code)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{OK: true, Token: verified.Credential}, nil
}

func (s *Service) saveChallenge(ctx context.Context, loginID string, record flows.LoginChallengeRecord, ttl time.Duration) error {
	return s.challenges.Save(ctx, loginID, &stores.LoginChallengeRecord{
		Email:      record.Email,
		SecretHash: record.SecretHash,
		ExpiresAt:  record.ExpiresAt,
		Attempts:   record.Attempts,
	}, ttl)
}

func (s *Service) consumeChallenge(ctx context.Context, loginID string, hash [32]byte, maxAttempts int) (flows.LoginChallengeRecord, error) {
	record, err := s.challenges.Consume(ctx, loginID, hash, maxAttempts)
	if err != nil {
		return flows.LoginChallengeRecord{}, err
	}
	return flows.LoginChallengeRecord{
		Email:      record.Email,
		SecretHash: record.SecretHash,
		ExpiresAt:  record.ExpiresAt,
		Attempts:   record.Attempts,
	}, nil
}

func (s *Service) lookupGuest(ctx context.Context, email string) (string, bool, error) {
	guest, err := s.guests.LookupGuest(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Error("guest lookup failed", zap.Error(err))
		return "", false, err
	}
	return guest.Name, true, nil
}

func (s *Service) deliverCode(ctx context.Context, d flows.LoginDelivery) error {
	msg := LoginMessage{
		Email:     d.Email,
		Name:      d.Name,
		LoginID:   d.LoginID,
		Code:      d.Code,
		Link:      loginLink(s.config.Login.PublicURL, d.LoginID, d.Email),
		ExpiresAt: d.ExpiresAt,
	}
	if err := s.mailer.SendLoginCode(ctx, msg); err != nil {
		s.logger.Warn("login code delivery failed", zap.String("login_id", d.LoginID), zap.Error(err))
		return err
	}
	return nil
}

func loginLink(base, loginID, email string) string {
	q := url.Values{}
	q.Set("token", loginID)
	q.Set("email", email)
	return strings.TrimRight(base, "/") + "/invite?" + q.Encode()
}

func mapLimiterError(err error) error {
	switch {
	case errors.Is(err, limiters.ErrLoginRateLimited):
		return ErrRateLimited
	default:
		return ErrLoginUnavailable
	}
}

func mapChallengeError(err error) error {
	switch {
	case errors.Is(err, stores.ErrChallengeNotFound),
		errors.Is(err, stores.ErrChallengeExpired),
		errors.Is(err, stores.ErrChallengeSecretMismatch):
		return ErrUnauthorized
	case errors.Is(err, stores.ErrChallengeAttemptsExceeded):
		return errAttemptsExceeded
	default:
		return ErrLoginUnavailable
	}
}

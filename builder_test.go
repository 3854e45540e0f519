package rsvp

import (
	"context"
	"errors"
	"testing"
)

func TestBuildMissingSecretIsConfigurationError(t *testing.T) {
	cfg := testConfig(LoginStatic)
	cfg.Token.Secret = nil

	_, err := New().WithConfig(cfg).WithStore(NewMemoryStore()).Build()
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuildRequiresStore(t *testing.T) {
	_, err := New().WithConfig(testConfig(LoginStatic)).Build()
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuildChallengeModeRequiresRedisAndMailer(t *testing.T) {
	_, err := New().
		WithConfig(testConfig(LoginChallenge)).
		WithStore(NewMemoryStore()).
		WithMailer(&captureMailer{}).
		Build()
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without redis, got %v", err)
	}

	_, rdb := newTestRedis(t)
	_, err = New().
		WithConfig(testConfig(LoginChallenge)).
		WithStore(NewMemoryStore()).
		WithRedis(rdb).
		Build()
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without mailer, got %v", err)
	}
}

func TestBuildRequireInviteNeedsDirectory(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig(LoginChallenge)
	cfg.Login.RequireInvite = true

	_, err := New().
		WithConfig(cfg).
		WithStore(NewMemoryStore()).
		WithRedis(rdb).
		WithMailer(&captureMailer{}).
		Build()
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig(LoginStatic)).WithStore(NewMemoryStore())
	svc, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer svc.Close(context.Background())

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestZeroServiceNotReady(t *testing.T) {
	var svc *Service
	if _, err := svc.RequestLogin(context.Background(), "a@example.com"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := svc.GetRSVP(context.Background(), "a@example.com"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}

	empty := &Service{}
	if _, err := empty.Verify(context.Background(), "t", "a@example.com", "1234"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := empty.Authenticate(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

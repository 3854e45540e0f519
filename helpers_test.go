package rsvp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func testConfig(mode LoginMode) Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = testSecret
	cfg.Login.Mode = mode
	cfg.Audit.Enabled = false
	return cfg
}

type captureMailer struct {
	mu   sync.Mutex
	msgs []LoginMessage
	err  error
}

func (m *captureMailer) SendLoginCode(_ context.Context, msg LoginMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *captureMailer) last(t *testing.T) LoginMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.msgs) == 0 {
		t.Fatal("expected a login mail to be sent")
	}
	return m.msgs[len(m.msgs)-1]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

func newStaticService(t *testing.T) *Service {
	t.Helper()

	svc, err := New().
		WithConfig(testConfig(LoginStatic)).
		WithStore(NewMemoryStore()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func newChallengeService(t *testing.T, cfg Config, mailer Mailer, sink AuditSink) (*miniredis.Miniredis, *Service) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	svc, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(NewMemoryStore()).
		WithMailer(mailer).
		WithGuestDirectory(NewStaticGuests(Guest{Email: "ada@example.com", Name: "Ada"})).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return mr, svc
}

type failingStore struct{}

func (failingStore) GetRSVP(context.Context, string) (Record, error) {
	return Record{}, errors.New("connection refused")
}

func (failingStore) UpsertRSVP(context.Context, string, Record) error {
	return errors.New("connection refused")
}

func (failingStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

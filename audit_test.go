package rsvp

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func collectEvents(sink *ChannelSink, want int) []AuditEvent {
	events := make([]AuditEvent, 0, want)
	timeout := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := testConfig(LoginStatic)
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	svc, err := New().WithConfig(cfg).WithStore(NewMemoryStore()).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	_, _ = svc.Verify(context.Background(), StaticLoginToken, "guest@example.com", "0000")
	svc.Close(context.Background())

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditLoginEventsCarryRequestFields(t *testing.T) {
	cfg := testConfig(LoginChallenge)
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16

	sink := NewChannelSink(16)
	mailer := &captureMailer{}
	_, svc := newChallengeService(t, cfg, mailer, sink)

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.33"), "test-agent/1.0")
	if _, err := svc.RequestLogin(ctx, "guest@example.com"); err != nil {
		t.Fatalf("RequestLogin failed: %v", err)
	}
	code := mailer.last(t).Code

	events := collectEvents(sink, 2)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != "invite_sent" || events[1].EventType != "login_requested" {
		t.Fatalf("unexpected event order %q, %q", events[0].EventType, events[1].EventType)
	}
	for _, ev := range events {
		if ev.IP != "198.51.100.33" || ev.UserAgent != "test-agent/1.0" {
			t.Fatalf("expected request fields on event, got %+v", ev)
		}
		if ev.Subject != "guest@example.com" || !ev.Success {
			t.Fatalf("unexpected event %+v", ev)
		}
		for k, v := range ev.Metadata {
			if strings.Contains(k, code) || strings.Contains(v, code) {
				t.Fatal("login code leaked into audit metadata")
			}
		}
	}
}

func TestAuditVerifyFailureCode(t *testing.T) {
	cfg := testConfig(LoginStatic)
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 4

	sink := NewChannelSink(4)
	svc, err := New().WithConfig(cfg).WithStore(NewMemoryStore()).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close(context.Background())

	_, _ = svc.Verify(context.Background(), StaticLoginToken, "guest@example.com", "0000")

	events := collectEvents(sink, 1)
	if len(events) != 1 {
		t.Fatal("expected an audit event")
	}
	if events[0].EventType != "auth_failure" || events[0].Success || events[0].Error != "unauthorized" {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestAuditRSVPSubmitted(t *testing.T) {
	cfg := testConfig(LoginStatic)
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 4

	sink := NewChannelSink(4)
	svc, err := New().WithConfig(cfg).WithStore(NewMemoryStore()).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close(context.Background())

	if _, err := svc.SubmitRSVP(context.Background(), "guest@example.com", Record{Status: StatusAccepted}); err != nil {
		t.Fatalf("SubmitRSVP failed: %v", err)
	}

	events := collectEvents(sink, 1)
	if len(events) != 1 {
		t.Fatal("expected an audit event")
	}
	ev := events[0]
	if ev.EventType != "rsvp_submitted" || ev.Subject != "guest@example.com" || ev.Metadata["status"] != "accepted" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close(context.Background())
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close(context.Background())
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditCloseFlushesQueue(t *testing.T) {
	sink := &countingSink{}
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 64,
	}, sink)

	for i := 0; i < 32; i++ {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e"})
	}
	dispatcher.Close(context.Background())

	if got := sink.Count(); got != 32 {
		t.Fatalf("expected 32 flushed events, got %d", got)
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close(context.Background())
	dispatcher.Close(context.Background())
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
}

type stuckSink struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stuckSink) Emit(context.Context, AuditEvent) {
	s.once.Do(func() { close(s.started) })
	<-s.release
}

func TestAuditCloseGivesUpAtDeadline(t *testing.T) {
	sink := &stuckSink{started: make(chan struct{}), release: make(chan struct{})}
	defer close(sink.release)

	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 8,
	}, sink)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "invite_sent"})
	<-sink.started
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "auth_success"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "rsvp_submitted"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := dispatcher.Close(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Close took %s with a stuck sink", elapsed)
	}
	if got := dispatcher.Dropped(); got != 2 {
		t.Fatalf("expected the 2 queued events to be dropped, got %d", got)
	}
	if !errors.Is(dispatcher.Close(context.Background()), context.DeadlineExceeded) {
		t.Fatal("expected a repeated Close to report the first result")
	}
}

type ctxSink struct {
	started chan struct{}
	once    sync.Once
	err     atomic.Value
}

func (s *ctxSink) Emit(ctx context.Context, _ AuditEvent) {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	s.err.Store(ctx.Err())
}

func TestAuditCloseCancelsSinkContext(t *testing.T) {
	sink := &ctxSink{started: make(chan struct{})}
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1}, sink)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "auth_success"})
	<-sink.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := dispatcher.Close(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sink.err.Load() == nil {
		if time.Now().After(deadline) {
			t.Fatal("expected the sink context to be cancelled")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServiceCloseBoundedByContext(t *testing.T) {
	sink := &stuckSink{started: make(chan struct{}), release: make(chan struct{})}
	defer close(sink.release)

	cfg := testConfig(LoginStatic)
	cfg.Audit.Enabled = true
	svc, err := New().WithConfig(cfg).WithStore(NewMemoryStore()).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := svc.SubmitRSVP(context.Background(), "guest@example.com", Record{Status: StatusAccepted}); err != nil {
		t.Fatalf("SubmitRSVP failed: %v", err)
	}
	<-sink.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventAuthSuccess,
		Subject:   "guest@example.com",
		IP:        "127.0.0.1",
		Success:   true,
	})

	out := buf.String()
	if !strings.Contains(out, "auth_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !strings.Contains(out, `"subject":"guest@example.com"`) {
		t.Fatal("expected JSON log line to contain subject")
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected newline-terminated record")
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	MultiSink{a, nil, b}.Emit(context.Background(), AuditEvent{EventType: "e"})

	if a.Count() != 1 || b.Count() != 1 {
		t.Fatalf("expected both sinks to receive the event, got %d and %d", a.Count(), b.Count())
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := map[error]AuditErrorCode{
		nil:                 "",
		ErrUnauthorized:     auditErrUnauthorized,
		ErrValidation:       auditErrValidation,
		ErrRateLimited:      auditErrRateLimited,
		ErrDeliveryFailed:   auditErrDeliveryFailed,
		ErrLoginUnavailable: auditErrUnavailable,
		ErrStoreUnavailable: auditErrUnavailable,
		errAttemptsExceeded: auditErrAttemptsExceeded,
		context.Canceled:    auditErrInternal,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
}

package rsvp

import (
	"context"
	"strings"
	"time"

	"github.com/cactusmakesperfect/rsvp/internal/flows"
	"github.com/cactusmakesperfect/rsvp/internal/limiters"
	"github.com/cactusmakesperfect/rsvp/internal/stores"
	"github.com/cactusmakesperfect/rsvp/token"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Service is the RSVP backend: login tickets, guest credentials and RSVP
// records. Methods are safe for concurrent use once Build returns.
type Service struct {
	config Config
	issuer *token.Issuer

	redis      redis.UniversalClient
	challenges *stores.LoginChallengeStore
	limiter    *limiters.LoginLimiter

	store  Store
	guests GuestDirectory
	mailer Mailer

	audit   *auditDispatcher
	metrics *Metrics
	logger  *zap.Logger

	flows flows.Service
}

// Close delivers pending audit events until ctx is done and reports ctx.Err()
// if it had to give up. The Service must not be used afterwards.
func (s *Service) Close(ctx context.Context) error {
	if s == nil || s.audit == nil {
		return nil
	}
	err := s.audit.Close(ctx)
	if dropped := s.audit.Dropped(); dropped > 0 {
		s.logger.Warn("audit events dropped", zap.Uint64("count", dropped))
	}
	return err
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns the current counters and histograms.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// LoginMode reports the active login mode.
func (s *Service) LoginMode() LoginMode {
	return s.config.Login.Mode
}

// Ping checks the backends the service depends on.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || !s.flows.Initialized() {
		return ErrEngineNotReady
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return ErrLoginUnavailable
		}
	}
	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return ErrStoreUnavailable
		}
	}
	return nil
}

// Authenticate checks a bearer credential and returns the guest identity it
// carries. Only guest-scoped credentials are accepted.
func (s *Service) Authenticate(ctx context.Context, credential string) (Identity, error) {
	if s == nil || s.issuer == nil {
		return Identity{}, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		s.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}()

	credential = strings.TrimSpace(credential)
	if credential == "" {
		s.metricInc(MetricAuthenticateFailure)
		return Identity{}, ErrUnauthorized
	}

	claims, err := s.issuer.Parse(credential)
	if err != nil {
		s.metricInc(MetricAuthenticateFailure)
		return Identity{}, ErrUnauthorized
	}
	if claims.Scope != token.ScopeGuest {
		s.metricInc(MetricAuthenticateFailure)
		return Identity{}, ErrUnauthorized
	}

	id := Identity{
		Subject: claims.Subject,
		Scope:   claims.Scope,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/cactusmakesperfect/rsvp/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLoginRateLimited        = errors.New("login rate limited")
	ErrLoginLimiterUnavailable = errors.New("login limiter unavailable")
)

// LoginConfig sets the per-email and per-IP request budgets and the per-ticket verify budget.
type LoginConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxRequests              int
	MaxVerifies              int
	Window                   time.Duration
}

// LoginLimiter throttles login requests and verifications.
type LoginLimiter struct {
	limiter *rate.Limiter
	config  LoginConfig
}

// NewLoginLimiter returns a limiter backed by redisClient.
func NewLoginLimiter(redisClient redis.UniversalClient, cfg LoginConfig) *LoginLimiter {
	return &LoginLimiter{
		limiter: rate.New(redisClient),
		config:  cfg,
	}
}

// CheckRequest counts a login request against email and ip.
func (l *LoginLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	w := rate.Window{Limit: l.config.MaxRequests, Period: l.config.Window}
	if l.config.EnableIdentifierThrottle {
		if err := l.hit(ctx, loginRequestIdentifierKey(email), w); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.hit(ctx, loginRequestIPKey(ip), w); err != nil {
			return err
		}
	}
	return nil
}

// CheckVerify counts a verification against loginID and ip.
func (l *LoginLimiter) CheckVerify(ctx context.Context, loginID, ip string) error {
	if l == nil {
		return nil
	}
	w := rate.Window{Limit: l.config.MaxVerifies, Period: l.config.Window}
	if l.config.EnableIdentifierThrottle && loginID != "" {
		if err := l.hit(ctx, loginVerifyIdentifierKey(loginID), w); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.hit(ctx, loginVerifyIPKey(ip), w); err != nil {
			return err
		}
	}
	return nil
}

func (l *LoginLimiter) hit(ctx context.Context, key string, w rate.Window) error {
	err := l.limiter.Hit(ctx, key, w)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrLoginRateLimited
	default:
		return errors.Join(ErrLoginLimiterUnavailable, err)
	}
}

func loginRequestIdentifierKey(email string) string {
	return "rlr:" + email
}

func loginRequestIPKey(ip string) string {
	return "rlrip:" + ip
}

func loginVerifyIdentifierKey(loginID string) string {
	return "rlv:" + loginID
}

func loginVerifyIPKey(ip string) string {
	return "rlvip:" + ip
}

package rsvp

import (
	"errors"
	"strings"
	"time"

	"github.com/cactusmakesperfect/rsvp/token"
)

// LoginMode selects how login tickets are issued and checked.
type LoginMode string

const (
	// LoginStatic answers every request with a fixed ticket and accepts one fixed code.
	// Development only.
	LoginStatic LoginMode = "static"
	// LoginChallenge issues a single-use, per-ticket code bound to the email it was sent to.
	LoginChallenge LoginMode = "challenge"
)

const (
	// StaticLoginToken is the login token returned in static mode.
	StaticLoginToken = "devtoken123"
	// StaticLoginCode is the only code accepted in static mode.
	StaticLoginCode = "1234"

	// VerifiedCredentialValidity is the lifetime of credentials issued by
	// Verify, regardless of Token.Validity.
	VerifiedCredentialValidity = time.Hour
)

// Config holds every knob of the service. Build it from DefaultConfig and
// override what you need; Validate runs during Builder.Build.
type Config struct {
	Token    TokenConfig
	Login    LoginConfig
	RSVP     RSVPConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Security SecurityConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the guest credential issuer.
type TokenConfig struct {
	Secret []byte
	Issuer string
	// Validity is the issuer default for callers that pass a zero validity.
	// Verify always uses VerifiedCredentialValidity.
	Validity time.Duration
	Leeway   time.Duration
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig configures the request-login and verify flows.
type LoginConfig struct {
	Mode          LoginMode
	CodeDigits    int
	ChallengeTTL  time.Duration
	MaxAttempts   int
	RequireInvite bool
	// ExposeCode returns the generated code in the request-login response.
	ExposeCode bool
	// PublicURL is the base of the link placed in login mails.
	PublicURL   string
	RedisPrefix string

	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxRequests              int
	MaxVerifies              int
	ThrottleWindow           time.Duration
}

/*
====================================
RSVP CONFIG
====================================
*/

// RSVPConfig configures RSVP submission checks.
type RSVPConfig struct {
	MaxNoteLength int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds deployment hardening switches.
type SecurityConfig struct {
	ProductionMode bool
}

// DefaultConfig returns a development-friendly configuration. Token.Secret is
// intentionally empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Validity: token.DefaultValidity,
		},
		Login: LoginConfig{
			Mode:                     LoginChallenge,
			CodeDigits:               6,
			ChallengeTTL:             2 * time.Hour,
			MaxAttempts:              5,
			RedisPrefix:              "rlc",
			PublicURL:                "http://localhost:8000",
			EnableIdentifierThrottle: true,
			EnableIPThrottle:         true,
			MaxRequests:              5,
			MaxVerifies:              10,
			ThrottleWindow:           15 * time.Minute,
		},
		RSVP: RSVPConfig{
			MaxNoteLength: 500,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration. A missing secret is reported as
// ErrConfiguration; every other problem is a plain descriptive error.
func (c *Config) Validate() error {
	// Token
	if len(c.Token.Secret) == 0 {
		return errors.Join(ErrConfiguration, token.ErrMissingSecret)
	}
	if c.Token.Validity <= 0 {
		return errors.New("Token Validity must be > 0")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Login
	switch c.Login.Mode {
	case LoginStatic:
	case LoginChallenge:
		if c.Login.CodeDigits < 4 || c.Login.CodeDigits > 10 {
			return errors.New("Login CodeDigits must be between 4 and 10")
		}
		if c.Login.ChallengeTTL <= 0 {
			return errors.New("Login ChallengeTTL must be > 0")
		}
		if c.Login.MaxAttempts <= 0 {
			return errors.New("Login MaxAttempts must be > 0")
		}
		if strings.TrimSpace(c.Login.RedisPrefix) == "" {
			return errors.New("Login RedisPrefix must not be empty")
		}
		if c.Login.EnableIdentifierThrottle || c.Login.EnableIPThrottle {
			if c.Login.MaxRequests <= 0 {
				return errors.New("Login MaxRequests must be > 0")
			}
			if c.Login.MaxVerifies <= 0 {
				return errors.New("Login MaxVerifies must be > 0")
			}
			if c.Login.ThrottleWindow <= 0 {
				return errors.New("Login ThrottleWindow must be > 0")
			}
		}
	default:
		return errors.New("unsupported Login Mode")
	}

	// RSVP
	if c.RSVP.MaxNoteLength <= 0 {
		return errors.New("RSVP MaxNoteLength must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.Security.ProductionMode {
		if len(c.Token.Secret) < 32 {
			return errors.New("ProductionMode requires Token Secret length >= 256 bits")
		}
		if c.Login.Mode != LoginChallenge {
			return errors.New("ProductionMode requires challenge login mode")
		}
		if c.Login.ExposeCode {
			return errors.New("ProductionMode forbids Login ExposeCode")
		}
	}

	return nil
}

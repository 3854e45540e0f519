package rsvp

import (
	"errors"
	"time"

	"github.com/cactusmakesperfect/rsvp/internal"
	"github.com/cactusmakesperfect/rsvp/internal/flows"
	"github.com/cactusmakesperfect/rsvp/internal/limiters"
	"github.com/cactusmakesperfect/rsvp/internal/stores"
	"github.com/cactusmakesperfect/rsvp/token"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles a Service. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     Store
	guests    GuestDirectory
	mailer    Mailer
	auditSink AuditSink
	logger    *zap.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing login challenges and throttles. Required
// in challenge mode.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets where RSVP records live. Required.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithGuestDirectory sets the invite list used when Login.RequireInvite is on.
func (b *Builder) WithGuestDirectory(guests GuestDirectory) *Builder {
	b.guests = guests
	return b
}

// WithMailer sets how login codes reach guests. Required in challenge mode.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithAuditSink sets the destination of audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the service logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled overrides Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the service. Configuration
// problems that make the service unusable wrap ErrConfiguration.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.Join(ErrConfiguration, errors.New("rsvp store required"))
	}
	if cfg.Login.Mode == LoginChallenge {
		if b.redis == nil {
			return nil, errors.Join(ErrConfiguration, errors.New("challenge login mode requires redis client"))
		}
		if b.mailer == nil {
			return nil, errors.Join(ErrConfiguration, errors.New("challenge login mode requires a mailer"))
		}
		if cfg.Login.RequireInvite && b.guests == nil {
			return nil, errors.Join(ErrConfiguration, errors.New("Login RequireInvite requires a guest directory"))
		}
	}

	issuer, err := token.NewIssuer(token.Config{
		Secret:          cloneBytes(cfg.Token.Secret),
		Issuer:          cfg.Token.Issuer,
		DefaultValidity: cfg.Token.Validity,
		Leeway:          cfg.Token.Leeway,
	})
	if err != nil {
		return nil, errors.Join(ErrConfiguration, err)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	svc := &Service{
		config:  cloneConfig(cfg),
		issuer:  issuer,
		store:   b.store,
		guests:  b.guests,
		mailer:  b.mailer,
		logger:  logger.Named("rsvp"),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	if cfg.Login.Mode == LoginChallenge {
		svc.redis = b.redis
		svc.challenges = stores.NewLoginChallengeStore(b.redis, cfg.Login.RedisPrefix)
		svc.limiter = limiters.NewLoginLimiter(b.redis, limiters.LoginConfig{
			EnableIdentifierThrottle: cfg.Login.EnableIdentifierThrottle,
			EnableIPThrottle:         cfg.Login.EnableIPThrottle,
			MaxRequests:              cfg.Login.MaxRequests,
			MaxVerifies:              cfg.Login.MaxVerifies,
			Window:                   cfg.Login.ThrottleWindow,
		})
	}

	svc.flows = flows.New(svc.buildFlowDeps(newEmailValidator()))

	b.built = true

	return svc, nil
}

func newEmailValidator() func(string) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	return func(email string) error {
		if err := v.Var(email, "required,email,max=254"); err != nil {
			return ErrValidation
		}
		return nil
	}
}

func (s *Service) buildFlowDeps(validateEmail func(string) error) flows.Deps {
	cfg := s.config

	login := flows.LoginDeps{
		Static:        cfg.Login.Mode == LoginStatic,
		StaticLoginID: StaticLoginToken,
		StaticCode:    StaticLoginCode,

		CodeDigits:         cfg.Login.CodeDigits,
		ChallengeTTL:       cfg.Login.ChallengeTTL,
		MaxAttempts:        cfg.Login.MaxAttempts,
		RequireInvite:      cfg.Login.RequireInvite,
		ExposeCode:         cfg.Login.ExposeCode,
		CredentialScope:    token.ScopeGuest,
		CredentialValidity: VerifiedCredentialValidity,

		ClientIPFromContext: clientIPFromContext,
		Now:                 time.Now,
		ValidateEmail:       validateEmail,

		MapLimiterError: mapLimiterError,
		MapStoreError:   mapChallengeError,

		HashChallenge: internal.HashLoginChallenge,
		GenerateTicket: func(digits int) (string, string, error) {
			id, err := internal.NewLoginID()
			if err != nil {
				return "", "", err
			}
			code, err := internal.NewOTP(digits)
			if err != nil {
				return "", "", err
			}
			return id, code, nil
		},
		IssueCredential: s.issuer.Issue,

		MetricInc:     func(id int) { s.metricInc(MetricID(id)) },
		EmitAudit:     s.emitAudit,
		EmitRateLimit: s.emitRateLimit,

		Metrics: flows.LoginMetrics{
			LoginRequest:           int(MetricLoginRequest),
			LoginRequestFailure:    int(MetricLoginRequestFailure),
			LoginRateLimited:       int(MetricLoginRateLimited),
			VerifySuccess:          int(MetricVerifySuccess),
			VerifyFailure:          int(MetricVerifyFailure),
			VerifyAttemptsExceeded: int(MetricVerifyAttemptsExceeded),
			CodeDelivered:          int(MetricCodeDelivered),
			CodeDeliveryFailure:    int(MetricCodeDeliveryFailure),
		},
		Events: flows.LoginEvents{
			LoginRequested: auditEventLoginRequested,
			InviteSent:     auditEventInviteSent,
			AuthSuccess:    auditEventAuthSuccess,
			AuthFailure:    auditEventAuthFailure,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:   ErrEngineNotReady,
			Validation:       ErrValidation,
			Unauthorized:     ErrUnauthorized,
			RateLimited:      ErrRateLimited,
			Unavailable:      ErrLoginUnavailable,
			DeliveryFailed:   ErrDeliveryFailed,
			AttemptsExceeded: errAttemptsExceeded,
		},
	}

	if s.challenges != nil {
		login.CheckRequestLimiter = s.limiter.CheckRequest
		login.CheckVerifyLimiter = s.limiter.CheckVerify
		login.SaveChallenge = s.saveChallenge
		login.ConsumeChallenge = s.consumeChallenge
		login.DeliverCode = s.deliverCode
	}
	if s.guests != nil {
		login.LookupGuest = s.lookupGuest
	}

	rsvp := flows.RSVPDeps{
		DefaultStatus: string(StatusPending),
		MaxNoteLength: cfg.RSVP.MaxNoteLength,
		ValidStatus: func(status string) bool {
			return Status(status).Valid()
		},
		GetRecord:     s.getRecord,
		UpsertRecord:  s.upsertRecord,
		MapStoreError: s.mapStoreError,

		MetricInc: func(id int) { s.metricInc(MetricID(id)) },
		EmitAudit: s.emitAudit,

		Metrics: flows.RSVPMetrics{
			RSVPRead:         int(MetricRSVPRead),
			RSVPSubmitted:    int(MetricRSVPSubmitted),
			RSVPRejected:     int(MetricRSVPRejected),
			RSVPStoreFailure: int(MetricRSVPStoreFailure),
		},
		Events: flows.RSVPEvents{
			RSVPSubmitted: auditEventRSVPSubmitted,
		},
		Errors: flows.RSVPErrors{
			EngineNotReady: ErrEngineNotReady,
			Unauthorized:   ErrUnauthorized,
			Validation:     ErrValidation,
			NotFound:       ErrNotFound,
			Unavailable:    ErrStoreUnavailable,
		},
	}

	return flows.Deps{Login: login, RSVP: rsvp}
}

package flows

import (
	"context"
	"errors"
	"strings"
	"time"
)

// LoginTicket is the flow-local login request response shape.
type LoginTicket struct {
	LoginID string
	Code    string
}

// LoginChallengeRecord is a flow-local copy of the stored challenge.
type LoginChallengeRecord struct {
	Email      string
	SecretHash [32]byte
	ExpiresAt  int64
	Attempts   uint16
}

// LoginDelivery is what gets handed to the code delivery channel.
type LoginDelivery struct {
	Email     string
	Name      string
	LoginID   string
	Code      string
	ExpiresAt time.Time
}

// LoginVerified is returned by a successful verify.
type LoginVerified struct {
	Subject    string
	Credential string
}

// LoginMetrics carries metric IDs needed by login flows.
type LoginMetrics struct {
	LoginRequest           int
	LoginRequestFailure    int
	LoginRateLimited       int
	VerifySuccess          int
	VerifyFailure          int
	VerifyAttemptsExceeded int
	CodeDelivered          int
	CodeDeliveryFailure    int
}

// LoginEvents carries audit event names used by login flows.
type LoginEvents struct {
	LoginRequested string
	InviteSent     string
	AuthSuccess    string
	AuthFailure    string
}

// LoginErrors carries host-level sentinel errors used by login flows.
type LoginErrors struct {
	EngineNotReady   error
	Validation       error
	Unauthorized     error
	RateLimited      error
	Unavailable      error
	DeliveryFailed   error
	AttemptsExceeded error
}

// LoginDeps carries everything RunRequestLogin and RunVerifyLogin need.
type LoginDeps struct {
	Static        bool
	StaticLoginID string
	StaticCode    string

	CodeDigits         int
	ChallengeTTL       time.Duration
	MaxAttempts        int
	RequireInvite      bool
	ExposeCode         bool
	CredentialScope    string
	CredentialValidity time.Duration

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time
	ValidateEmail       func(string) error

	CheckRequestLimiter func(context.Context, string, string) error
	CheckVerifyLimiter  func(context.Context, string, string) error
	MapLimiterError     func(error) error
	MapStoreError       func(error) error

	LookupGuest      func(context.Context, string) (string, bool, error)
	SaveChallenge    func(context.Context, string, LoginChallengeRecord, time.Duration) error
	ConsumeChallenge func(context.Context, string, [32]byte, int) (LoginChallengeRecord, error)
	GenerateTicket   func(int) (string, string, error)
	HashChallenge    func(string, string, string) [32]byte
	DeliverCode      func(context.Context, LoginDelivery) error
	IssueCredential  func(string, string, time.Duration) (string, error)

	MetricInc     func(int)
	EmitAudit     func(context.Context, string, bool, string, error, func() map[string]string)
	EmitRateLimit func(context.Context, string, func() map[string]string)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// NormalizeEmail trims and lowercases an address for use as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RunRequestLogin issues a login ticket for email. In static mode it returns
// the fixed ticket; otherwise it throttles, stores a hashed challenge and
// mails the code.
func RunRequestLogin(ctx context.Context, email string, deps LoginDeps) (LoginTicket, error) {
	normalizeLoginDeps(&deps)

	if deps.Static {
		deps.MetricInc(deps.Metrics.LoginRequest)
		deps.EmitAudit(ctx, deps.Events.LoginRequested, true, "", nil, func() map[string]string {
			return map[string]string{
				"mode": "static",
			}
		})
		return LoginTicket{LoginID: deps.StaticLoginID, Code: deps.StaticCode}, nil
	}
	if deps.SaveChallenge == nil || deps.CheckRequestLimiter == nil || deps.GenerateTicket == nil || deps.HashChallenge == nil || deps.DeliverCode == nil {
		return LoginTicket{}, deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	if err := deps.ValidateEmail(email); err != nil {
		deps.MetricInc(deps.Metrics.LoginRequestFailure)
		deps.EmitAudit(ctx, deps.Events.LoginRequested, false, "", deps.Errors.Validation, func() map[string]string {
			return map[string]string{
				"reason": "invalid_email",
			}
		})
		return LoginTicket{}, deps.Errors.Validation
	}

	if err := deps.CheckRequestLimiter(ctx, email, deps.ClientIPFromContext(ctx)); err != nil {
		mapped := deps.MapLimiterError(err)
		deps.MetricInc(deps.Metrics.LoginRequestFailure)
		deps.EmitAudit(ctx, deps.Events.LoginRequested, false, email, mapped, nil)
		if errors.Is(mapped, deps.Errors.RateLimited) {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitRateLimit(ctx, "login_request", func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
		}
		return LoginTicket{}, mapped
	}

	guestName := ""
	if deps.RequireInvite {
		if deps.LookupGuest == nil {
			return LoginTicket{}, deps.Errors.EngineNotReady
		}
		name, found, err := deps.LookupGuest(ctx, email)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return LoginTicket{}, err
			}
			deps.MetricInc(deps.Metrics.LoginRequestFailure)
			deps.EmitAudit(ctx, deps.Events.LoginRequested, false, email, deps.Errors.Unavailable, func() map[string]string {
				return map[string]string{
					"reason": "guest_lookup_failed",
				}
			})
			return LoginTicket{}, deps.Errors.Unavailable
		}
		if !found {
			// Same shape as a real ticket; nothing is stored or sent.
			fakeID, fakeCode, genErr := deps.GenerateTicket(deps.CodeDigits)
			if genErr != nil {
				return LoginTicket{}, deps.Errors.Unavailable
			}
			deps.MetricInc(deps.Metrics.LoginRequest)
			deps.EmitAudit(ctx, deps.Events.LoginRequested, true, email, nil, func() map[string]string {
				return map[string]string{
					"enumeration_safe": "true",
				}
			})
			fake := LoginTicket{LoginID: fakeID}
			if deps.ExposeCode {
				fake.Code = fakeCode
			}
			return fake, nil
		}
		guestName = name
	}

	loginID, code, err := deps.GenerateTicket(deps.CodeDigits)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginRequestFailure)
		return LoginTicket{}, deps.Errors.Unavailable
	}

	expiresAt := deps.Now().Add(deps.ChallengeTTL)
	record := LoginChallengeRecord{
		Email:      email,
		SecretHash: deps.HashChallenge(loginID, email, code),
		ExpiresAt:  expiresAt.Unix(),
	}
	if err := deps.SaveChallenge(ctx, loginID, record, deps.ChallengeTTL); err != nil {
		mapped := deps.MapStoreError(err)
		deps.MetricInc(deps.Metrics.LoginRequestFailure)
		deps.EmitAudit(ctx, deps.Events.LoginRequested, false, email, mapped, nil)
		return LoginTicket{}, mapped
	}

	if err := deps.DeliverCode(ctx, LoginDelivery{
		Email:     email,
		Name:      guestName,
		LoginID:   loginID,
		Code:      code,
		ExpiresAt: expiresAt,
	}); err != nil {
		deps.MetricInc(deps.Metrics.CodeDeliveryFailure)
		deps.EmitAudit(ctx, deps.Events.InviteSent, false, email, deps.Errors.DeliveryFailed, func() map[string]string {
			return map[string]string{
				"login_id": loginID,
			}
		})
		return LoginTicket{}, deps.Errors.DeliveryFailed
	}
	deps.MetricInc(deps.Metrics.CodeDelivered)
	deps.EmitAudit(ctx, deps.Events.InviteSent, true, email, nil, func() map[string]string {
		return map[string]string{
			"login_id": loginID,
		}
	})

	deps.MetricInc(deps.Metrics.LoginRequest)
	deps.EmitAudit(ctx, deps.Events.LoginRequested, true, email, nil, nil)

	ticket := LoginTicket{LoginID: loginID}
	if deps.ExposeCode {
		ticket.Code = code
	}
	return ticket, nil
}

// RunVerifyLogin checks code for the ticket and, on success, issues a guest
// credential. In static mode only the code is checked.
func RunVerifyLogin(ctx context.Context, loginID, email, code string, deps LoginDeps) (LoginVerified, error) {
	normalizeLoginDeps(&deps)

	if deps.IssueCredential == nil {
		return LoginVerified{}, deps.Errors.EngineNotReady
	}

	if deps.Static {
		if code != deps.StaticCode {
			deps.MetricInc(deps.Metrics.VerifyFailure)
			deps.EmitAudit(ctx, deps.Events.AuthFailure, false, email, deps.Errors.Unauthorized, func() map[string]string {
				return map[string]string{
					"mode": "static",
				}
			})
			return LoginVerified{}, deps.Errors.Unauthorized
		}
		return issueVerified(ctx, email, deps)
	}
	if deps.ConsumeChallenge == nil || deps.CheckVerifyLimiter == nil || deps.HashChallenge == nil {
		return LoginVerified{}, deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	if loginID == "" || email == "" || code == "" {
		deps.MetricInc(deps.Metrics.VerifyFailure)
		deps.EmitAudit(ctx, deps.Events.AuthFailure, false, email, deps.Errors.Unauthorized, func() map[string]string {
			return map[string]string{
				"reason": "empty_input",
			}
		})
		return LoginVerified{}, deps.Errors.Unauthorized
	}

	if err := deps.CheckVerifyLimiter(ctx, loginID, deps.ClientIPFromContext(ctx)); err != nil {
		mapped := deps.MapLimiterError(err)
		deps.MetricInc(deps.Metrics.VerifyFailure)
		deps.EmitAudit(ctx, deps.Events.AuthFailure, false, email, mapped, func() map[string]string {
			return map[string]string{
				"login_id": loginID,
			}
		})
		if errors.Is(mapped, deps.Errors.RateLimited) {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitRateLimit(ctx, "login_verify", func() map[string]string {
				return map[string]string{
					"login_id": loginID,
				}
			})
		}
		return LoginVerified{}, mapped
	}

	record, err := deps.ConsumeChallenge(ctx, loginID, deps.HashChallenge(loginID, email, code), deps.MaxAttempts)
	if err != nil {
		mapped := deps.MapStoreError(err)
		deps.MetricInc(deps.Metrics.VerifyFailure)
		if errors.Is(mapped, deps.Errors.AttemptsExceeded) {
			deps.MetricInc(deps.Metrics.VerifyAttemptsExceeded)
		}
		deps.EmitAudit(ctx, deps.Events.AuthFailure, false, email, mapped, func() map[string]string {
			return map[string]string{
				"login_id": loginID,
			}
		})
		// Callers only see "invalid code" for every challenge failure.
		if errors.Is(mapped, deps.Errors.AttemptsExceeded) {
			return LoginVerified{}, errors.Join(deps.Errors.Unauthorized, mapped)
		}
		return LoginVerified{}, mapped
	}

	return issueVerified(ctx, record.Email, deps)
}

func issueVerified(ctx context.Context, subject string, deps LoginDeps) (LoginVerified, error) {
	credential, err := deps.IssueCredential(subject, deps.CredentialScope, deps.CredentialValidity)
	if err != nil {
		deps.MetricInc(deps.Metrics.VerifyFailure)
		deps.EmitAudit(ctx, deps.Events.AuthFailure, false, subject, deps.Errors.Validation, func() map[string]string {
			return map[string]string{
				"reason": "issue_failed",
			}
		})
		return LoginVerified{}, deps.Errors.Validation
	}

	deps.MetricInc(deps.Metrics.VerifySuccess)
	deps.EmitAudit(ctx, deps.Events.AuthSuccess, true, subject, nil, nil)
	return LoginVerified{Subject: subject, Credential: credential}, nil
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.ValidateEmail == nil {
		deps.ValidateEmail = func(email string) error {
			if email == "" || !strings.Contains(email, "@") {
				return deps.Errors.Validation
			}
			return nil
		}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.EmitRateLimit == nil {
		deps.EmitRateLimit = func(context.Context, string, func() map[string]string) {}
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(error) error { return deps.Errors.Unavailable }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(error) error { return deps.Errors.Unavailable }
	}
	if deps.CredentialScope == "" {
		deps.CredentialScope = "guest"
	}
	if deps.CredentialValidity <= 0 {
		deps.CredentialValidity = time.Hour
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = 5
	}
	if deps.CodeDigits <= 0 {
		deps.CodeDigits = 6
	}
}

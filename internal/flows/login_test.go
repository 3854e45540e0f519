package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errTestNotReady     = errors.New("not ready")
	errTestValidation   = errors.New("validation")
	errTestUnauthorized = errors.New("unauthorized")
	errTestRateLimited  = errors.New("rate limited")
	errTestUnavailable  = errors.New("unavailable")
	errTestDelivery     = errors.New("delivery failed")
	errTestAttempts     = errors.New("attempts exceeded")
	errTestMismatch     = errors.New("mismatch")
)

type fakeChallenges struct {
	records map[string]LoginChallengeRecord
}

func (f *fakeChallenges) save(_ context.Context, id string, rec LoginChallengeRecord, _ time.Duration) error {
	f.records[id] = rec
	return nil
}

func (f *fakeChallenges) consume(_ context.Context, id string, hash [32]byte, _ int) (LoginChallengeRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return LoginChallengeRecord{}, errTestMismatch
	}
	if rec.SecretHash != hash {
		return LoginChallengeRecord{}, errTestMismatch
	}
	delete(f.records, id)
	return rec, nil
}

func testHash(id, email, code string) [32]byte {
	var out [32]byte
	copy(out[:], id+"|"+email+"|"+code)
	return out
}

func challengeDeps(store *fakeChallenges, delivered *[]LoginDelivery) LoginDeps {
	return LoginDeps{
		CodeDigits:         6,
		ChallengeTTL:       2 * time.Hour,
		MaxAttempts:        5,
		CredentialScope:    "guest",
		CredentialValidity: time.Hour,
		CheckRequestLimiter: func(context.Context, string, string) error {
			return nil
		},
		CheckVerifyLimiter: func(context.Context, string, string) error {
			return nil
		},
		MapStoreError: func(err error) error {
			if errors.Is(err, errTestMismatch) {
				return errTestUnauthorized
			}
			return errTestUnavailable
		},
		SaveChallenge:    store.save,
		ConsumeChallenge: store.consume,
		GenerateTicket: func(int) (string, string, error) {
			return "ticket-1", "654321", nil
		},
		HashChallenge: testHash,
		DeliverCode: func(_ context.Context, d LoginDelivery) error {
			*delivered = append(*delivered, d)
			return nil
		},
		IssueCredential: func(sub, scope string, validity time.Duration) (string, error) {
			return sub + "/" + scope + "/" + validity.String(), nil
		},
		Errors: LoginErrors{
			EngineNotReady:   errTestNotReady,
			Validation:       errTestValidation,
			Unauthorized:     errTestUnauthorized,
			RateLimited:      errTestRateLimited,
			Unavailable:      errTestUnavailable,
			DeliveryFailed:   errTestDelivery,
			AttemptsExceeded: errTestAttempts,
		},
	}
}

func staticDeps() LoginDeps {
	return LoginDeps{
		Static:        true,
		StaticLoginID: "devtoken123",
		StaticCode:    "1234",
		IssueCredential: func(sub, scope string, validity time.Duration) (string, error) {
			if sub == "" {
				return "", errors.New("empty subject")
			}
			return sub + "/" + scope + "/" + validity.String(), nil
		},
		Errors: LoginErrors{
			EngineNotReady: errTestNotReady,
			Validation:     errTestValidation,
			Unauthorized:   errTestUnauthorized,
		},
	}
}

func TestStaticRequestLoginReturnsFixedTicket(t *testing.T) {
	for _, email := range []string{"a@example.com", "", "anything"} {
		ticket, err := RunRequestLogin(context.Background(), email, staticDeps())
		if err != nil {
			t.Fatalf("RunRequestLogin(%q) failed: %v", email, err)
		}
		if ticket.LoginID != "devtoken123" || ticket.Code != "1234" {
			t.Fatalf("unexpected ticket %+v", ticket)
		}
	}
}

func TestStaticVerifyRejectsWrongCodeRegardlessOfInput(t *testing.T) {
	cases := []struct{ token, email, code string }{
		{"devtoken123", "a@example.com", "0000"},
		{"", "", "0000"},
		{"other", "b@example.com", ""},
		{"devtoken123", "a@example.com", "12345"},
	}
	for _, tc := range cases {
		if _, err := RunVerifyLogin(context.Background(), tc.token, tc.email, tc.code, staticDeps()); !errors.Is(err, errTestUnauthorized) {
			t.Fatalf("verify(%+v): expected unauthorized, got %v", tc, err)
		}
	}
}

func TestStaticVerifyIssuesGuestCredentialForEmail(t *testing.T) {
	got, err := RunVerifyLogin(context.Background(), "whatever", "Guest@Example.com", "1234", staticDeps())
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got.Subject != "Guest@Example.com" {
		t.Fatalf("expected subject to equal supplied email, got %q", got.Subject)
	}
	if got.Credential != "Guest@Example.com/guest/1h0m0s" {
		t.Fatalf("unexpected credential %q", got.Credential)
	}
}

func TestChallengeRequestStoresAndDelivers(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery
	deps := challengeDeps(store, &delivered)

	ticket, err := RunRequestLogin(context.Background(), "  Guest@Example.com ", deps)
	if err != nil {
		t.Fatalf("RunRequestLogin failed: %v", err)
	}
	if ticket.LoginID != "ticket-1" {
		t.Fatalf("unexpected login id %q", ticket.LoginID)
	}
	if ticket.Code != "" {
		t.Fatal("code must not be exposed unless configured")
	}
	rec, ok := store.records["ticket-1"]
	if !ok {
		t.Fatal("expected challenge to be stored")
	}
	if rec.Email != "guest@example.com" {
		t.Fatalf("expected normalized email, got %q", rec.Email)
	}
	if len(delivered) != 1 || delivered[0].Code != "654321" || delivered[0].Email != "guest@example.com" {
		t.Fatalf("unexpected deliveries %+v", delivered)
	}
}

func TestChallengeRequestExposeCode(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery
	deps := challengeDeps(store, &delivered)
	deps.ExposeCode = true

	ticket, err := RunRequestLogin(context.Background(), "guest@example.com", deps)
	if err != nil {
		t.Fatalf("RunRequestLogin failed: %v", err)
	}
	if ticket.Code != "654321" {
		t.Fatalf("expected exposed code, got %q", ticket.Code)
	}
}

func TestChallengeRequestRejectsInvalidEmail(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery

	if _, err := RunRequestLogin(context.Background(), "not-an-email", challengeDeps(store, &delivered)); !errors.Is(err, errTestValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.records) != 0 || len(delivered) != 0 {
		t.Fatal("invalid email must not store or deliver")
	}
}

func TestChallengeRequestRateLimited(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery
	deps := challengeDeps(store, &delivered)
	limiterErr := errors.New("limited")
	deps.CheckRequestLimiter = func(context.Context, string, string) error { return limiterErr }
	deps.MapLimiterError = func(err error) error {
		if errors.Is(err, limiterErr) {
			return errTestRateLimited
		}
		return errTestUnavailable
	}
	var scopes []string
	deps.EmitRateLimit = func(_ context.Context, scope string, _ func() map[string]string) {
		scopes = append(scopes, scope)
	}

	if _, err := RunRequestLogin(context.Background(), "guest@example.com", deps); !errors.Is(err, errTestRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if len(scopes) != 1 || scopes[0] != "login_request" {
		t.Fatalf("expected login_request rate limit event, got %v", scopes)
	}
}

func TestChallengeRequestUnknownGuestIsEnumerationSafe(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery
	deps := challengeDeps(store, &delivered)
	deps.RequireInvite = true
	deps.LookupGuest = func(context.Context, string) (string, bool, error) {
		return "", false, nil
	}

	ticket, err := RunRequestLogin(context.Background(), "stranger@example.com", deps)
	if err != nil {
		t.Fatalf("expected enumeration-safe success, got %v", err)
	}
	if ticket.LoginID == "" {
		t.Fatal("expected a ticket shaped like a real one")
	}
	if len(store.records) != 0 || len(delivered) != 0 {
		t.Fatal("unknown guest must not store or deliver")
	}
}

func TestChallengeRequestInvitedGuestNamePassedToDelivery(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery
	deps := challengeDeps(store, &delivered)
	deps.RequireInvite = true
	deps.LookupGuest = func(_ context.Context, email string) (string, bool, error) {
		return "Ada", email == "ada@example.com", nil
	}

	if _, err := RunRequestLogin(context.Background(), "ada@example.com", deps); err != nil {
		t.Fatalf("RunRequestLogin failed: %v", err)
	}
	if len(delivered) != 1 || delivered[0].Name != "Ada" {
		t.Fatalf("expected delivery addressed to Ada, got %+v", delivered)
	}
}

func TestChallengeRequestDeliveryFailure(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery
	deps := challengeDeps(store, &delivered)
	deps.DeliverCode = func(context.Context, LoginDelivery) error { return errors.New("smtp down") }

	if _, err := RunRequestLogin(context.Background(), "guest@example.com", deps); !errors.Is(err, errTestDelivery) {
		t.Fatalf("expected delivery failure, got %v", err)
	}
}

func TestChallengeVerifyRoundTripIsSingleUse(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery
	deps := challengeDeps(store, &delivered)

	ticket, err := RunRequestLogin(context.Background(), "guest@example.com", deps)
	if err != nil {
		t.Fatalf("RunRequestLogin failed: %v", err)
	}

	got, err := RunVerifyLogin(context.Background(), ticket.LoginID, "GUEST@example.com", delivered[0].Code, deps)
	if err != nil {
		t.Fatalf("RunVerifyLogin failed: %v", err)
	}
	if got.Subject != "guest@example.com" {
		t.Fatalf("unexpected subject %q", got.Subject)
	}

	if _, err := RunVerifyLogin(context.Background(), ticket.LoginID, "guest@example.com", delivered[0].Code, deps); !errors.Is(err, errTestUnauthorized) {
		t.Fatalf("expected replay to be unauthorized, got %v", err)
	}
}

func TestChallengeVerifyWrongEmailOrCode(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery
	deps := challengeDeps(store, &delivered)

	ticket, err := RunRequestLogin(context.Background(), "guest@example.com", deps)
	if err != nil {
		t.Fatalf("RunRequestLogin failed: %v", err)
	}

	if _, err := RunVerifyLogin(context.Background(), ticket.LoginID, "other@example.com", "654321", deps); !errors.Is(err, errTestUnauthorized) {
		t.Fatalf("expected wrong email to be unauthorized, got %v", err)
	}
	if _, err := RunVerifyLogin(context.Background(), ticket.LoginID, "guest@example.com", "000000", deps); !errors.Is(err, errTestUnauthorized) {
		t.Fatalf("expected wrong code to be unauthorized, got %v", err)
	}
	if _, err := RunVerifyLogin(context.Background(), "", "guest@example.com", "654321", deps); !errors.Is(err, errTestUnauthorized) {
		t.Fatalf("expected empty token to be unauthorized, got %v", err)
	}
}

func TestChallengeVerifyAttemptsExceededIsUnauthorized(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery
	deps := challengeDeps(store, &delivered)
	deps.ConsumeChallenge = func(context.Context, string, [32]byte, int) (LoginChallengeRecord, error) {
		return LoginChallengeRecord{}, errTestAttempts
	}
	deps.MapStoreError = func(err error) error { return err }
	counts := map[int]int{}
	deps.Metrics = LoginMetrics{VerifyFailure: 1, VerifyAttemptsExceeded: 2}
	deps.MetricInc = func(id int) { counts[id]++ }

	_, err := RunVerifyLogin(context.Background(), "ticket-1", "guest@example.com", "000000", deps)
	if !errors.Is(err, errTestUnauthorized) || !errors.Is(err, errTestAttempts) {
		t.Fatalf("expected unauthorized wrapping attempts exceeded, got %v", err)
	}
	if counts[1] != 1 || counts[2] != 1 {
		t.Fatalf("unexpected metric counts %v", counts)
	}
}

func TestChallengeVerifyAuditsSuccess(t *testing.T) {
	store := &fakeChallenges{records: map[string]LoginChallengeRecord{}}
	var delivered []LoginDelivery
	deps := challengeDeps(store, &delivered)
	deps.Events = LoginEvents{LoginRequested: "login_requested", InviteSent: "invite_sent", AuthSuccess: "auth_success", AuthFailure: "auth_failure"}
	var events []string
	deps.EmitAudit = func(_ context.Context, event string, success bool, _ string, _ error, _ func() map[string]string) {
		if success {
			events = append(events, event)
		}
	}

	ticket, err := RunRequestLogin(context.Background(), "guest@example.com", deps)
	if err != nil {
		t.Fatalf("RunRequestLogin failed: %v", err)
	}
	if _, err := RunVerifyLogin(context.Background(), ticket.LoginID, "guest@example.com", "654321", deps); err != nil {
		t.Fatalf("RunVerifyLogin failed: %v", err)
	}

	want := []string{"invite_sent", "login_requested", "auth_success"}
	if len(events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, events)
		}
	}
}

func TestChallengeMissingDepsNotReady(t *testing.T) {
	deps := LoginDeps{Errors: LoginErrors{EngineNotReady: errTestNotReady}}
	if _, err := RunRequestLogin(context.Background(), "a@example.com", deps); !errors.Is(err, errTestNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if _, err := RunVerifyLogin(context.Background(), "t", "a@example.com", "1", deps); !errors.Is(err, errTestNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

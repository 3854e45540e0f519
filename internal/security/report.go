package security

import "time"

// Report summarizes the login hardening a running service has in effect.
type Report struct {
	ProductionMode     bool
	SigningAlgorithm   string
	LoginMode          string
	CredentialTTL      time.Duration
	ChallengeTTL       time.Duration
	CodeDigits         int
	MaxAttempts        int
	SingleUseCodes     bool
	CodeDisclosed      bool
	InviteOnly         bool
	RateLimitingActive bool
}

// ReportInput is the configuration BuildReport reads.
type ReportInput struct {
	ProductionMode           bool
	SigningAlgorithm         string
	LoginMode                string
	CredentialTTL            time.Duration
	ChallengeTTL             time.Duration
	CodeDigits               int
	MaxAttempts              int
	ExposeCode               bool
	RequireInvite            bool
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
}

// BuildReport derives a Report. Anything other than "challenge" is treated
// as the static development login: shared code, no throttles, no invites.
func BuildReport(input ReportInput) Report {
	challenge := input.LoginMode == "challenge"

	r := Report{
		ProductionMode:   input.ProductionMode,
		SigningAlgorithm: input.SigningAlgorithm,
		LoginMode:        input.LoginMode,
		CredentialTTL:    input.CredentialTTL,
		CodeDisclosed:    !challenge || input.ExposeCode,
	}
	if challenge {
		r.ChallengeTTL = input.ChallengeTTL
		r.CodeDigits = input.CodeDigits
		r.MaxAttempts = input.MaxAttempts
		r.SingleUseCodes = true
		r.InviteOnly = input.RequireInvite
		r.RateLimitingActive = input.EnableIdentifierThrottle || input.EnableIPThrottle
	}
	return r
}

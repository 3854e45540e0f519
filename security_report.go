package rsvp

import "github.com/cactusmakesperfect/rsvp/internal/security"

// SecurityReport is a read-only snapshot of the service's login hardening,
// returned by [Service.SecurityReport].
type SecurityReport = security.Report

// SecurityReport describes the login hardening of this service.
func (s *Service) SecurityReport() SecurityReport {
	if s == nil {
		return SecurityReport{}
	}

	return security.BuildReport(security.ReportInput{
		ProductionMode:           s.config.Security.ProductionMode,
		SigningAlgorithm:         "HS256",
		LoginMode:                string(s.config.Login.Mode),
		CredentialTTL:            VerifiedCredentialValidity,
		ChallengeTTL:             s.config.Login.ChallengeTTL,
		CodeDigits:               s.config.Login.CodeDigits,
		MaxAttempts:              s.config.Login.MaxAttempts,
		ExposeCode:               s.config.Login.ExposeCode,
		RequireInvite:            s.config.Login.RequireInvite,
		EnableIdentifierThrottle: s.config.Login.EnableIdentifierThrottle,
		EnableIPThrottle:         s.config.Login.EnableIPThrottle,
	})
}

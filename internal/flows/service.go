package flows

import "context"

// Service is the centralized flow runner built once by the root service.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.IssueCredential != nil && s.deps.RSVP.GetRecord != nil
}

// RequestLogin runs RunRequestLogin with the bound deps.
func (s Service) RequestLogin(ctx context.Context, email string) (LoginTicket, error) {
	return RunRequestLogin(ctx, email, s.deps.Login)
}

// VerifyLogin runs RunVerifyLogin with the bound deps.
func (s Service) VerifyLogin(ctx context.Context, loginID, email, code string) (LoginVerified, error) {
	return RunVerifyLogin(ctx, loginID, email, code, s.deps.Login)
}

// GetRSVP runs RunGetRSVP with the bound deps.
func (s Service) GetRSVP(ctx context.Context, subject string) (RSVPRecord, error) {
	return RunGetRSVP(ctx, subject, s.deps.RSVP)
}

// SubmitRSVP runs RunSubmitRSVP with the bound deps.
func (s Service) SubmitRSVP(ctx context.Context, subject string, record RSVPRecord) (RSVPRecord, error) {
	return RunSubmitRSVP(ctx, subject, record, s.deps.RSVP)
}

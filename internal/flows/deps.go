package flows

// Deps groups flow dependency sets. The root service builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login LoginDeps
	RSVP  RSVPDeps
}

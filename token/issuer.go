package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeGuest is the scope granted to invited guests after code verification.
const ScopeGuest = "guest"

// DefaultValidity is used when Config.DefaultValidity is zero.
const DefaultValidity = 60 * time.Minute

var (
	ErrMissingSecret   = errors.New("token signing secret is not configured")
	ErrInvalidSubject  = errors.New("token subject must not be empty")
	ErrInvalidScope    = errors.New("token scope must not be empty")
	ErrInvalidValidity = errors.New("token validity must be > 0")
	ErrInvalidToken    = errors.New("invalid token")
)

// Config holds the signing material and lifetimes for an [Issuer].
//
// Config is built once at startup and passed by value; the issuer keeps its own copy of
// the secret.
type Config struct {
	Secret          []byte
	Issuer          string
	DefaultValidity time.Duration
	Leeway          time.Duration
}

// Claims is the claim set carried by every credential.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 credentials. It holds no mutable state and is safe
// for concurrent use.
type Issuer struct {
	config Config
	now    func() time.Time
}

// NewIssuer validates cfg and returns an issuer bound to it.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.DefaultValidity == 0 {
		cfg.DefaultValidity = DefaultValidity
	}
	if cfg.DefaultValidity < 0 {
		return nil, ErrInvalidValidity
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Issuer{config: cfg, now: time.Now}, nil
}

// DefaultValidity reports the validity applied when Issue is called with zero.
func (i *Issuer) DefaultValidity() time.Duration {
	return i.config.DefaultValidity
}

// Issue signs a credential for subject with the given scope. A zero validity selects the
// configured default; negative validity is rejected.
func (i *Issuer) Issue(subject, scope string, validity time.Duration) (string, error) {
	if subject == "" {
		return "", ErrInvalidSubject
	}
	if scope == "" {
		return "", ErrInvalidScope
	}
	if validity == 0 {
		validity = i.config.DefaultValidity
	}
	if validity < 0 {
		return "", ErrInvalidValidity
	}

	issuedAt := i.now().UTC().Truncate(time.Second)
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(validity)),
			Issuer:    i.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.Secret)
}

// Parse verifies signature, algorithm and time claims and returns the decoded claims.
func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return i.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Scope == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

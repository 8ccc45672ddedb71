package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

// Sentinel errors for token verification
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

const (
	// RoleAdmin is the only role issued to organization admins.
	RoleAdmin = "admin"

	// DefaultTokenTTL is used when TokenConfig.TTL is unset.
	DefaultTokenTTL = 60 * time.Minute

	defaultIssuer = "orgmgr"
	minSecretLen  = 32
)

// Identity is the subject a token is issued for.
type Identity struct {
	Subject string // admin ID
	OrgID   string
	Role    string
}

// Claims are the JWT claims carried by admin access tokens.
type Claims struct {
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenIssuer. It is read once at startup.
type TokenConfig struct {
	// Secret is the symmetric signing key, at least 32 bytes.
	Secret []byte

	// Algorithm is one of HS256, HS384 or HS512.
	// Default: HS256
	Algorithm string

	// TTL is the lifetime of issued tokens.
	// Default: 60 minutes
	TTL time.Duration

	// Issuer is written to and required in the iss claim.
	// Default: orgmgr
	Issuer string
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *TokenConfig) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	if c.TTL == 0 {
		c.TTL = DefaultTokenTTL
	}
	if c.Issuer == "" {
		c.Issuer = defaultIssuer
	}
}

// Validate checks that the configuration is valid.
func (c *TokenConfig) Validate() error {
	if len(c.Secret) < minSecretLen {
		return fmt.Errorf("token secret must be at least %d bytes", minSecretLen)
	}
	if _, ok := jwt.GetSigningMethod(c.Algorithm).(*jwt.SigningMethodHMAC); !ok {
		return fmt.Errorf("unsupported token algorithm %q", c.Algorithm)
	}
	if c.TTL < 0 {
		return errors.New("token TTL must not be negative")
	}
	return nil
}

// TokenIssuer signs and verifies time limited admin access tokens.
type TokenIssuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// TokenOption configures optional TokenIssuer behaviour.
type TokenOption func(*TokenIssuer)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(i *TokenIssuer) {
		i.now = now
	}
}

// NewTokenIssuer creates a TokenIssuer from cfg after applying defaults.
func NewTokenIssuer(cfg TokenConfig, opts ...TokenOption) (*TokenIssuer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid token config: %w", err)
	}

	i := &TokenIssuer{
		secret: cfg.Secret,
		method: jwt.GetSigningMethod(cfg.Algorithm),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// TTL returns the default token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for id using the default lifetime.
func (i *TokenIssuer) Issue(id Identity) (string, error) {
	return i.IssueWithTTL(id, i.ttl)
}

// IssueWithTTL signs a token for id that expires ttl from now. A zero or
// negative ttl yields a token that Verify rejects with ErrTokenExpired.
func (i *TokenIssuer) IssueWithTTL(id Identity, ttl time.Duration) (string, error) {
	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}

	now := i.now()
	claims := &Claims{
		OrgID: id.OrgID,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        base58.Encode(jti),
			Subject:   id.Subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
}

// Verify checks the signature and expiry of tokenString and returns its claims.
// Returns ErrTokenInvalid if the token is malformed or the signature does not
// match, ErrTokenExpired if the expiry is not after the current time.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	// exp has second precision; a token expiring this second is already stale.
	if !claims.ExpiresAt.After(i.now()) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

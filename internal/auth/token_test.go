package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-min-32-bytes-long")

func newTestIssuer(t *testing.T, opts ...TokenOption) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{Secret: testSecret}, opts...)
	require.NoError(t, err)
	return issuer
}

func TestTokenConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := TokenConfig{Secret: testSecret}
		cfg.ApplyDefaults()
		require.Equal(t, "HS256", cfg.Algorithm)
		require.Equal(t, 60*time.Minute, cfg.TTL)
		require.Equal(t, "orgmgr", cfg.Issuer)
		require.NoError(t, cfg.Validate())
	})

	t.Run("short secret", func(t *testing.T) {
		_, err := NewTokenIssuer(TokenConfig{Secret: []byte("short")})
		require.Error(t, err)
	})

	t.Run("asymmetric algorithm", func(t *testing.T) {
		_, err := NewTokenIssuer(TokenConfig{Secret: testSecret, Algorithm: "ES256"})
		require.ErrorContains(t, err, "unsupported token algorithm")
	})

	t.Run("HS512", func(t *testing.T) {
		issuer, err := NewTokenIssuer(TokenConfig{Secret: testSecret, Algorithm: "HS512"})
		require.NoError(t, err)

		token, err := issuer.Issue(Identity{Subject: "admin-1", OrgID: "org-1", Role: RoleAdmin})
		require.NoError(t, err)
		_, err = issuer.Verify(token)
		require.NoError(t, err)
	})
}

func TestTokenIssuer_issueAndVerify(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.Issue(Identity{Subject: "admin-1", OrgID: "org-1", Role: RoleAdmin})
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "admin-1", claims.Subject)
	require.Equal(t, "org-1", claims.OrgID)
	require.Equal(t, RoleAdmin, claims.Role)
	require.Equal(t, "orgmgr", claims.Issuer)
	require.NotEmpty(t, claims.ID)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 2*time.Second)
}

func TestTokenIssuer_nonPositiveTTLIsExpired(t *testing.T) {
	issuer := newTestIssuer(t)

	for _, ttl := range []time.Duration{0, -time.Second, -time.Hour} {
		token, err := issuer.IssueWithTTL(Identity{Subject: "admin-1", OrgID: "org-1", Role: RoleAdmin}, ttl)
		require.NoError(t, err)

		claims, err := issuer.Verify(token)
		require.ErrorIs(t, err, ErrTokenExpired, "ttl %s", ttl)
		require.Nil(t, claims)
	}
}

func TestTokenIssuer_expiresWithClock(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issuer := newTestIssuer(t, WithClock(func() time.Time { return now }))

	token, err := issuer.IssueWithTTL(Identity{Subject: "admin-1", OrgID: "org-1", Role: RoleAdmin}, time.Minute)
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = issuer.Verify(token)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuer_rejectsTampering(t *testing.T) {
	issuer := newTestIssuer(t)
	token, err := issuer.Issue(Identity{Subject: "admin-1", OrgID: "org-1", Role: RoleAdmin})
	require.NoError(t, err)

	t.Run("different secret", func(t *testing.T) {
		other, err := NewTokenIssuer(TokenConfig{Secret: []byte("another-secret-key-min-32-bytes-long")})
		require.NoError(t, err)

		_, err = other.Verify(token)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("modified payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{OrgID: "org-2", Role: RoleAdmin})
		forgedString, err := forged.SignedString([]byte("attacker-secret-key-min-32-bytes!!"))
		require.NoError(t, err)
		forgedParts := strings.Split(forgedString, ".")

		_, err = issuer.Verify(parts[0] + "." + forgedParts[1] + "." + parts[2])
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			OrgID: "org-1",
			Role:  RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "orgmgr",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		unsignedString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Verify(unsignedString)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not-a-token")
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("missing expiry", func(t *testing.T) {
		noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			OrgID:            "org-1",
			Role:             RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "orgmgr"},
		})
		noExpString, err := noExp.SignedString(testSecret)
		require.NoError(t, err)

		_, err = issuer.Verify(noExpString)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestTokenIssuer_uniqueTokenIDs(t *testing.T) {
	issuer := newTestIssuer(t)
	id := Identity{Subject: "admin-1", OrgID: "org-1", Role: RoleAdmin}

	first, err := issuer.Issue(id)
	require.NoError(t, err)
	second, err := issuer.Issue(id)
	require.NoError(t, err)

	firstClaims, err := issuer.Verify(first)
	require.NoError(t, err)
	secondClaims, err := issuer.Verify(second)
	require.NoError(t, err)
	require.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

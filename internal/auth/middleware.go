package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

type contextKey int

const (
	claimsContextKey contextKey = iota
)

// ClaimsFromContext returns the verified token claims stored by RequireBearer.
// Returns nil if the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

// ContextWithClaims stores claims in ctx.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// RequireBearer returns middleware that rejects requests without a valid
// admin bearer token with 401 and a JSON detail body.
func RequireBearer(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				writeUnauthorized(w, "Not authenticated")
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				log.Debug().Err(err).Msg("Bearer token rejected")
				if errors.Is(err, ErrTokenExpired) {
					writeUnauthorized(w, "Token expired")
					return
				}
				writeUnauthorized(w, "Invalid token")
				return
			}

			if claims.Role != RoleAdmin || claims.OrgID == "" {
				log.Debug().Str("role", claims.Role).Msg("Bearer token missing admin claims")
				writeUnauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="orgmgr"`)
	w.WriteHeader(http.StatusUnauthorized)
	// detail values are fixed strings without characters that need escaping
	_, _ = w.Write([]byte(`{"detail":"` + detail + `"}` + "\n"))
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
		ok       bool
	}{
		{name: "bearer", header: "Bearer abc.def.ghi", expected: "abc.def.ghi", ok: true},
		{name: "lower case scheme", header: "bearer abc", expected: "abc", ok: true},
		{name: "missing", header: "", ok: false},
		{name: "basic", header: "Basic dXNlcjpwYXNz", ok: false},
		{name: "no token", header: "Bearer ", ok: false},
		{name: "no separator", header: "Bearerabc", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			token, ok := BearerToken(r)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.expected, token)
		})
	}
}

func TestRequireBearer(t *testing.T) {
	issuer := newTestIssuer(t)

	var seen *Claims
	handler := RequireBearer(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(authorization string) *httptest.ResponseRecorder {
		seen = nil
		r := httptest.NewRequest(http.MethodPut, "/org/update", nil)
		if authorization != "" {
			r.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	t.Run("valid token", func(t *testing.T) {
		token, err := issuer.Issue(Identity{Subject: "admin-1", OrgID: "org-1", Role: RoleAdmin})
		require.NoError(t, err)

		w := serve("Bearer " + token)
		require.Equal(t, http.StatusNoContent, w.Code)
		require.NotNil(t, seen)
		require.Equal(t, "org-1", seen.OrgID)
		require.Equal(t, "admin-1", seen.Subject)
	})

	t.Run("missing header", func(t *testing.T) {
		w := serve("")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.JSONEq(t, `{"detail":"Not authenticated"}`, w.Body.String())
		require.Nil(t, seen)
	})

	t.Run("invalid token", func(t *testing.T) {
		w := serve("Bearer nope")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.JSONEq(t, `{"detail":"Invalid token"}`, w.Body.String())
		require.Nil(t, seen)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := issuer.IssueWithTTL(Identity{Subject: "admin-1", OrgID: "org-1", Role: RoleAdmin}, -time.Minute)
		require.NoError(t, err)

		w := serve("Bearer " + token)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.JSONEq(t, `{"detail":"Token expired"}`, w.Body.String())
	})

	t.Run("wrong role", func(t *testing.T) {
		token, err := issuer.Issue(Identity{Subject: "admin-1", OrgID: "org-1", Role: "viewer"})
		require.NoError(t, err)

		w := serve("Bearer " + token)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Nil(t, seen)
	})
}

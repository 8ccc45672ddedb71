package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/orgmgr/internal/auth"
	"github.com/wolfeidau/orgmgr/internal/orgs"
	"github.com/wolfeidau/orgmgr/internal/server"
	"github.com/wolfeidau/orgmgr/internal/store/memory"
)

// statusLog records the status of every request the server answered.
type statusLog struct {
	mu       sync.Mutex
	statuses []int
}

func (l *statusLog) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := httptest.NewRecorder()
		next.ServeHTTP(rec, r)

		l.mu.Lock()
		l.statuses = append(l.statuses, rec.Code)
		l.mu.Unlock()

		for k, v := range rec.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(rec.Code)
		_, _ = w.Write(rec.Body.Bytes())
	})
}

func (l *statusLog) last() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statuses[len(l.statuses)-1]
}

func newTestClient(t *testing.T, cacheDir string) (*Client, *statusLog) {
	t.Helper()

	s := memory.NewStore()
	hasher := auth.NewArgon2Hasher(auth.PasswordParams{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: []byte("client-test-secret-at-least-32-bytes")})
	require.NoError(t, err)

	srv := server.NewServer(orgs.NewManager(s, hasher), orgs.NewAuthenticator(s, hasher, issuer), issuer)
	handler, err := srv.Handler(server.Config{}, zerolog.Nop())
	require.NoError(t, err)

	statuses := &statusLog{}
	ts := httptest.NewServer(statuses.wrap(handler))
	t.Cleanup(ts.Close)

	cfg := DefaultConfig()
	cfg.ServerURL = ts.URL
	cfg.CacheDir = cacheDir
	c, err := New(cfg)
	require.NoError(t, err)

	return c, statuses
}

func TestNew(t *testing.T) {
	_, err := New(Config{ServerURL: "ftp://example.com"})
	require.Error(t, err)

	c, err := New(Config{ServerURL: "https://api.example.com/"})
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com", c.baseURL.String())
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, "")

	created, err := c.CreateOrg(ctx, "Acme Corp", "admin@acme.io", "pw")
	require.NoError(t, err)
	require.Equal(t, "org_acme_corp", created.CollectionName)

	got, err := c.GetOrg(ctx, "Acme Corp")
	require.NoError(t, err)
	require.Equal(t, created, got)

	tok, err := c.Login(ctx, "admin@acme.io", "pw")
	require.NoError(t, err)
	require.Equal(t, "bearer", tok.TokenType)

	authed := c.WithToken(tok.AccessToken)
	require.Empty(t, c.token)

	msg, err := authed.UpdateOrg(ctx, "Globex", "admin@globex.io", "pw2")
	require.NoError(t, err)
	require.Equal(t, "Organization updated successfully", msg)

	msg, err = authed.DeleteOrg(ctx, "Globex")
	require.NoError(t, err)
	require.Equal(t, "Organization deleted successfully", msg)

	_, err = c.GetOrg(ctx, "Globex")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "Organization not found", apiErr.Detail)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, "")

	_, err := c.Login(ctx, "nobody@acme.io", "pw")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "server returned 401: Invalid credentials", apiErr.Error())

	_, err = c.UpdateOrg(ctx, "Acme", "a@acme.io", "pw")
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Not authenticated", apiErr.Detail)
}

func TestGetOrgRevalidatesCachedResponse(t *testing.T) {
	for _, tt := range []struct {
		name     string
		cacheDir string
	}{
		{name: "memory cache"},
		{name: "disk cache", cacheDir: t.TempDir()},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, statuses := newTestClient(t, tt.cacheDir)

			created, err := c.CreateOrg(ctx, "Acme", "admin@acme.io", "pw")
			require.NoError(t, err)

			first, err := c.GetOrg(ctx, "Acme")
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, statuses.last())

			second, err := c.GetOrg(ctx, "Acme")
			require.NoError(t, err)
			require.Equal(t, http.StatusNotModified, statuses.last())
			require.Equal(t, first, second)
			require.Equal(t, created.ID, second.ID)
		})
	}
}

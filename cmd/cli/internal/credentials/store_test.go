package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "orgmgr"))
	require.NoError(t, err)
	store.now = func() time.Time { return now }
	return store
}

func TestNewStore(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "creds")

		store, err := NewStore(dir)
		require.NoError(t, err)
		assert.NotNil(t, store)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("empty store lists nothing", func(t *testing.T) {
		store := newTestStore(t, time.Now())
		sessions, err := store.List()
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})
}

func TestStore_SaveAndGet(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, now)

	err := store.Save(Session{
		Server:    "HTTP://LocalHost:8080/",
		Email:     "admin@acme.io",
		Token:     "tok-1",
		TokenID:   "jti-1",
		OrgID:     "org-1",
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(store.baseDir, fileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	sess, err := store.Get("http://localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", sess.Server)
	assert.Equal(t, "tok-1", sess.Token)
	assert.Equal(t, "org-1", sess.OrgID)
	assert.True(t, now.Equal(sess.CreatedAt))

	t.Run("replaces the previous session", func(t *testing.T) {
		require.NoError(t, store.Save(Session{Server: "http://localhost:8080", Token: "tok-2", ExpiresAt: now.Add(time.Hour)}))

		sess, err := store.Get("http://localhost:8080/")
		require.NoError(t, err)
		assert.Equal(t, "tok-2", sess.Token)

		sessions, err := store.List()
		require.NoError(t, err)
		assert.Len(t, sessions, 1)
	})

	t.Run("unknown server", func(t *testing.T) {
		_, err := store.Get("https://elsewhere.example.com")
		require.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestStore_Expired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, now)

	require.NoError(t, store.Save(Session{Server: "http://localhost:8080", Token: "old", ExpiresAt: now}))

	sess, err := store.Get("http://localhost:8080")
	require.ErrorIs(t, err, ErrSessionExpired)
	require.NotNil(t, sess)
	assert.Equal(t, "old", sess.Token)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t, time.Now())
	require.NoError(t, store.Save(Session{Server: "http://a.example.com", Token: "a"}))
	require.NoError(t, store.Save(Session{Server: "http://b.example.com", Token: "b"}))

	require.NoError(t, store.Delete("http://a.example.com"))
	require.ErrorIs(t, store.Delete("http://a.example.com"), ErrSessionNotFound)

	sessions, err := store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "http://b.example.com", sessions[0].Server)
}

func TestStore_CorruptFile(t *testing.T) {
	store := newTestStore(t, time.Now())
	require.NoError(t, os.WriteFile(filepath.Join(store.baseDir, fileName), []byte("{"), 0600))

	_, err := store.Get("http://localhost:8080")
	require.ErrorContains(t, err, "failed to parse credentials")
}

package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Sentinel errors
var (
	// ErrSessionNotFound is returned when no token is stored for a server.
	ErrSessionNotFound = errors.New("not logged in")

	// ErrSessionExpired is returned when the stored token has expired.
	ErrSessionExpired = errors.New("session expired")
)

const (
	configVersion = 1
	fileName      = "credentials.json"
)

// Session is a stored access token for one server.
type Session struct {
	Server    string    `json:"server"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id,omitempty"`
	OrgID     string    `json:"org_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Config represents the credentials file.
type Config struct {
	Version  int                `json:"version"`
	Sessions map[string]Session `json:"sessions"` // keyed by normalised server URL
}

// Store keeps access tokens on the local filesystem.
type Store struct {
	baseDir string
	now     func() time.Time
}

// DefaultDir returns ~/.orgmgr.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".orgmgr"), nil
}

// NewStore creates a credential store in baseDir, ~/.orgmgr if empty.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("credential store initialized")

	return &Store{baseDir: baseDir, now: time.Now}, nil
}

// Save stores sess, replacing any previous session for the same server.
func (s *Store) Save(sess Session) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	sess.Server = normalizeServer(sess.Server)
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now().UTC()
	}
	cfg.Sessions[sess.Server] = sess

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Debug().Str("server", sess.Server).Str("tokenID", sess.TokenID).Msg("session saved")

	return nil
}

// Get returns the session for server. Expired sessions return
// ErrSessionExpired along with the session.
func (s *Store) Get(server string) (*Session, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	sess, ok := cfg.Sessions[normalizeServer(server)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.Expired(s.now()) {
		return &sess, ErrSessionExpired
	}

	return &sess, nil
}

// Delete removes the session for server.
func (s *Store) Delete(server string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	key := normalizeServer(server)
	if _, ok := cfg.Sessions[key]; !ok {
		return ErrSessionNotFound
	}
	delete(cfg.Sessions, key)

	return s.saveConfig(cfg)
}

// List returns all sessions ordered by server.
func (s *Store) List() ([]Session, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, len(cfg.Sessions))
	for _, sess := range cfg.Sessions {
		sessions = append(sessions, sess)
	}
	slices.SortFunc(sessions, func(a, b Session) int { return strings.Compare(a.Server, b.Server) })

	return sessions, nil
}

func (s *Store) path() string {
	return filepath.Join(s.baseDir, fileName)
}

// loadConfig reads the credentials file, returning an empty config if it does
// not exist yet.
func (s *Store) loadConfig() (*Config, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return &Config{Version: configVersion, Sessions: map[string]Session{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if cfg.Sessions == nil {
		cfg.Sessions = map[string]Session{}
	}

	return &cfg, nil
}

// saveConfig writes the credentials file atomically with 0600 permissions.
func (s *Store) saveConfig(cfg *Config) error {
	cfg.Version = configVersion

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tempPath := s.path() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	if err := os.Rename(tempPath, s.path()); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	return nil
}

// normalizeServer lower cases the scheme and host and drops a trailing slash.
func normalizeServer(server string) string {
	server = strings.TrimSuffix(strings.TrimSpace(server), "/")
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return server
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

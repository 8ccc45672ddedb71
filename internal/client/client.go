// Package client is a Go client for the organization API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgmgr/internal/models"
	"github.com/wolfeidau/orgmgr/internal/server"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
	CacheDir  string // disk cache for GET responses, memory cache when empty
	Debug     bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
	}
}

// APIError is a non 2xx response from the server.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// Client calls the organization API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
	debug      bool
}

// New creates a client for cfg.ServerURL.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", cfg.ServerURL)
	}

	httpClient := NewCachingHTTPClient(cfg.CacheDir)
	httpClient.Timeout = cfg.Timeout

	return &Client{baseURL: base, httpClient: httpClient, debug: cfg.Debug}, nil
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Login exchanges admin credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*server.TokenResponse, error) {
	var out server.TokenResponse
	err := c.do(ctx, http.MethodPost, "/admin/login", nil, server.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrg creates an organization and its admin.
func (c *Client) CreateOrg(ctx context.Context, name, email, password string) (*models.OrgView, error) {
	var out models.OrgView
	err := c.do(ctx, http.MethodPost, "/org/create", nil, server.OrgRequest{OrganizationName: name, Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrg fetches an organization by name.
func (c *Client) GetOrg(ctx context.Context, name string) (*models.OrgView, error) {
	var out models.OrgView
	err := c.do(ctx, http.MethodGet, "/org/get", url.Values{"organization_name": {name}}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrg renames the caller's organization and replaces its admin
// credentials. Requires a token.
func (c *Client) UpdateOrg(ctx context.Context, newName, email, password string) (string, error) {
	var out server.MessageResponse
	err := c.do(ctx, http.MethodPut, "/org/update", nil, server.OrgRequest{OrganizationName: newName, Email: email, Password: password}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// DeleteOrg deletes the caller's organization. Requires a token.
func (c *Client) DeleteOrg(ctx context.Context, name string) (string, error) {
	var out server.MessageResponse
	err := c.do(ctx, http.MethodDelete, "/org/delete", url.Values{"organization_name": {name}}, nil, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if c.debug {
		log.Debug().
			Str("method", method).
			Str("url", u.String()).
			Int("status", resp.StatusCode).
			Bool("from_cache", resp.Header.Get(fromCacheHeader) == "1").
			Msg("api call")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e server.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil {
			apiErr.Detail = e.Detail
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Package client is the Go API client for the clipstream backend. Its one
// interesting job is credential refresh: when the short-lived access token
// expires mid-flight, the client exchanges the refresh token for a new one
// exactly once per expiry, no matter how many requests fail concurrently,
// and replays each failed request a single time with the shared result.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned when the refresh exchange itself fails.
// The session has been cleared; the caller must log in again.
var ErrSessionExpired = errors.New("client: session expired, re-authentication required")

const kindCredentialExpired = "CREDENTIAL_EXPIRED"

// Session holds the current token pair. Safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func (s *Session) Set(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = access, refresh
}

func (s *Session) Tokens() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, s.refresh
}

func (s *Session) Clear() {
	s.Set("", "")
}

// Client wraps an *http.Client with bearer injection and single-flight
// credential refresh.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session

	// refreshGroup collapses concurrent refresh attempts triggered by the
	// same expired access token into one exchange.
	refreshGroup singleflight.Group
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		session: &Session{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*Client)

// WithHTTPClient overrides the underlying transport, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Session exposes the token store, e.g. to persist it across runs.
func (c *Client) Session() *Session { return c.session }

// Login authenticates and primes the session.
func (c *Client) Login(email, password string) error {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := c.http.Post(c.baseURL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: login failed with status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	c.session.Set(out.AccessToken, out.RefreshToken)
	return nil
}

// Do sends the request with the session's bearer token. On a 401 whose
// kind is CREDENTIAL_EXPIRED it refreshes (single-flight across concurrent
// callers) and retries the request exactly once. Any other failure, and a
// failed refresh, are terminal.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := bufferBody(req); err != nil {
		return nil, err
	}

	access, _ := c.session.Tokens()
	resp, err := c.send(req, access)
	if err != nil {
		return nil, err
	}

	if !isCredentialExpired(resp) {
		return resp, nil
	}
	resp.Body.Close()

	newAccess, err := c.refresh(access)
	if err != nil {
		return nil, err
	}

	return c.send(req, newAccess)
}

// refresh performs the single-flight exchange. The expired access token is
// the flight key, so a wave of failures caused by one expiry shares one
// exchange, while a later expiry of the replacement token starts a new one.
func (c *Client) refresh(expiredAccess string) (string, error) {
	v, err, _ := c.refreshGroup.Do(expiredAccess, func() (interface{}, error) {
		// Another caller in this wave may already have rotated.
		if current, _ := c.session.Tokens(); current != "" && current != expiredAccess {
			return current, nil
		}

		_, refreshToken := c.session.Tokens()
		if refreshToken == "" {
			c.session.Clear()
			return nil, ErrSessionExpired
		}

		access, refresh, err := c.exchange(refreshToken)
		if err != nil {
			c.session.Clear()
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}

		c.session.Set(access, refresh)
		return access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) exchange(refreshToken string) (access, refresh string, err error) {
	body, _ := json.Marshal(map[string]string{"refresh_token": refreshToken})
	resp, err := c.http.Post(c.baseURL+"/api/v1/auth/refresh", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("refresh exchange failed with status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", err
	}
	return out.AccessToken, out.RefreshToken, nil
}

func (c *Client) send(req *http.Request, access string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	if access != "" {
		clone.Header.Set("Authorization", "Bearer "+access)
	}
	return c.http.Do(clone)
}

// bufferBody makes the request body replayable for the post-refresh retry.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.Body, _ = req.GetBody()
	return nil
}

// isCredentialExpired reports whether resp is a 401 carrying the
// CREDENTIAL_EXPIRED kind. Other 401 kinds (invalid token, unknown
// subject) are not refreshable.
func isCredentialExpired(resp *http.Response) bool {
	if resp.StatusCode != http.StatusUnauthorized {
		return false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false
	}
	// Leave the body readable for callers that inspect non-expired 401s.
	resp.Body = io.NopCloser(bytes.NewReader(data))

	var out struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return false
	}
	return out.Error.Kind == kindCredentialExpired
}

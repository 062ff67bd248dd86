package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/apricopt/zoro-web/internal/cli/auth"
)

const (
	// DefaultBaseURL is used when no API URL is configured
	DefaultBaseURL = "http://localhost:3001"

	// TokenFreshness is how long a stored token is trusted without asking the backend
	TokenFreshness = 7 * 24 * time.Hour
)

// Client represents an HTTP client for the browser manager backend API
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      auth.Store
	now        func() time.Time

	mu    sync.RWMutex
	token string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithClock replaces time.Now, used for token age checks and timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a new API client and loads any persisted token into memory
func New(baseURL string, store auth.Store, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if store == nil {
		store = auth.NewMemory()
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No client-side deadline, requests rely on the transport defaults
		httpClient: &http.Client{},
		store:      store,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if _, err := c.LoadToken(); err != nil {
		log.Warn().Err(err).Msg("Failed to read persisted token")
	}

	return c
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL returns the configured backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestOptions describes a single backend call
type RequestOptions struct {
	Method string
	// Body is JSON encoded when non-nil
	Body any
	// Headers override the defaults (including Authorization)
	Headers map[string]string
}

// Request sends a request to path and decodes a JSON response into out (if non-nil).
// Non-2xx responses become *RequestError, transport failures *ConnectionError.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions, out any) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		jsonData, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ConnectionError{BaseURL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// errorMessage extracts a message from an error response: the JSON "error"
// or "message" field, else the status text, else "HTTP <code>"
func errorMessage(resp *http.Response) string {
	fallback := fmt.Sprintf("HTTP %d", resp.StatusCode)

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if text := http.StatusText(resp.StatusCode); text != "" {
			return text
		}
		return fallback
	}

	switch {
	case payload.Error != "":
		return payload.Error
	case payload.Message != "":
		return payload.Message
	default:
		return fallback
	}
}

// Token returns the in-memory bearer token, empty when signed out
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken stores token in memory and persists it with a fresh timestamp.
// An empty token clears both persisted keys.
func (c *Client) SetToken(token string) error {
	if token == "" {
		return c.ClearToken()
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if err := c.store.Set(auth.TokenKey, token); err != nil {
		return err
	}
	stamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	if err := c.store.Set(auth.TimestampKey, stamp); err != nil {
		return err
	}
	return nil
}

// ClearToken forgets the token in memory and in storage
func (c *Client) ClearToken() error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	return errors.Join(
		c.store.Remove(auth.TokenKey),
		c.store.Remove(auth.TimestampKey),
	)
}

// LoadToken re-reads the persisted token into memory. The timestamp is left untouched.
func (c *Client) LoadToken() (string, error) {
	token, _, err := c.store.Get(auth.TokenKey)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return token, nil
}

// IsTokenValid reports whether a token is present and was written less than
// TokenFreshness ago. No network call is made.
func (c *Client) IsTokenValid() bool {
	if c.Token() == "" {
		return false
	}

	stamp, ok, err := c.store.Get(auth.TimestampKey)
	if err != nil || !ok {
		return false
	}

	issued, err := strconv.ParseInt(strings.TrimSpace(stamp), 10, 64)
	if err != nil {
		return false
	}

	age := c.now().UnixMilli() - issued
	return age < TokenFreshness.Milliseconds()
}

// IsTokenValidWithBackend combines the local freshness check with a live
// current-user call. The token is cleared when either fails.
func (c *Client) IsTokenValidWithBackend(ctx context.Context) bool {
	if !c.IsTokenValid() {
		_ = c.ClearToken()
		return false
	}

	if _, err := c.CurrentUser(ctx); err != nil {
		log.Warn().Err(err).Msg("Token validation with backend failed")
		_ = c.ClearToken()
		return false
	}

	return true
}

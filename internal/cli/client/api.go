package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the backend's current-user record. It is replaced wholesale on every fetch.
type User struct {
	ID        string `json:"id" yaml:"id"`
	Email     string `json:"email" yaml:"email"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Provider  string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Plan      string `json:"plan,omitempty" yaml:"plan,omitempty"`
	AvatarURL string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	CreatedAt string `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the account creation request body
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,max=100"`
}

// AuthResponse is returned by login and register
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Login authenticates the user and returns the issued token.
// The token is not stored, callers decide whether to adopt it.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.Request(ctx, "/auth/login", RequestOptions{
		Method: http.MethodPost,
		Body:   LoginRequest{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, authFailure("login failed", err)
	}
	if resp.Token == "" {
		return nil, &AuthenticationError{Message: "login failed: no token in response"}
	}
	return &resp, nil
}

// Register creates an account and returns the issued token.
// The token is not stored, callers decide whether to adopt it.
func (c *Client) Register(ctx context.Context, data RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.Request(ctx, "/auth/register", RequestOptions{
		Method: http.MethodPost,
		Body:   data,
	}, &resp)
	if err != nil {
		return nil, authFailure("registration failed", err)
	}
	if resp.Token == "" {
		return nil, &AuthenticationError{Message: "registration failed: no token in response"}
	}
	return &resp, nil
}

// authFailure turns a backend rejection into an AuthenticationError carrying the
// backend's message. Connection failures stay distinguishable.
func authFailure(prefix string, err error) error {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return &AuthenticationError{Message: reqErr.Message, Err: err}
	}
	return fmt.Errorf("%s: %w", prefix, err)
}

// RevokeSession asks the backend to invalidate the current token. Local state is untouched.
func (c *Client) RevokeSession(ctx context.Context) error {
	return c.Request(ctx, "/auth/logout", RequestOptions{Method: http.MethodPost}, nil)
}

// CurrentUser fetches the user the in-memory token belongs to
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.Request(ctx, "/api/user", RequestOptions{}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUserWithToken fetches the user for an explicit token without adopting it
func (c *Client) CurrentUserWithToken(ctx context.Context, token string) (*User, error) {
	var user User
	err := c.Request(ctx, "/api/user", RequestOptions{
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// HealthStatus is the backend liveness payload
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Health probes backend liveness
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.Request(ctx, "/health", RequestOptions{}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Profile is a browser profile owned by the user
type Profile struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Browser     string `json:"browser" yaml:"browser"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
	LastUsed    string `json:"lastUsed,omitempty" yaml:"last_used,omitempty"`
	CreatedAt   string `json:"created,omitempty" yaml:"created,omitempty"`
}

// Profiles lists the user's browser profiles
func (c *Client) Profiles(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	if err := c.Request(ctx, "/api/profiles", RequestOptions{}, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// Subscription describes the user's plan
type Subscription struct {
	PlanType         string `json:"planType" yaml:"plan_type"`
	Status           string `json:"status" yaml:"status"`
	ProfileCount     int    `json:"profileCount" yaml:"profile_count"`
	ProfileLimit     int    `json:"profileLimit" yaml:"profile_limit"`
	CurrentPeriodEnd string `json:"currentPeriodEnd,omitempty" yaml:"current_period_end,omitempty"`
}

// Subscription fetches the user's plan. refresh asks the backend to resync
// with the payment provider first.
func (c *Client) Subscription(ctx context.Context, refresh bool) (*Subscription, error) {
	path := "/api/user/subscription"
	if refresh {
		path += "?refresh=true"
	}

	var sub Subscription
	if err := c.Request(ctx, path, RequestOptions{}, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// BillingLink is returned by the checkout and billing portal endpoints
type BillingLink struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Error   string `json:"error,omitempty"`
}

// SubscriptionCheckout starts an upgrade checkout and returns the payment URL
func (c *Client) SubscriptionCheckout(ctx context.Context) (string, error) {
	return c.billingLink(ctx, "/api/user/subscription/checkout")
}

// SubscriptionPortal returns the billing management URL
func (c *Client) SubscriptionPortal(ctx context.Context) (string, error) {
	return c.billingLink(ctx, "/api/user/subscription/portal")
}

func (c *Client) billingLink(ctx context.Context, path string) (string, error) {
	var link BillingLink
	if err := c.Request(ctx, path, RequestOptions{Method: http.MethodPost}, &link); err != nil {
		return "", err
	}
	if !link.Success || link.URL == "" {
		msg := link.Error
		if msg == "" {
			msg = "no URL returned"
		}
		return "", &RequestError{Status: http.StatusOK, Message: msg}
	}
	return link.URL, nil
}

// GoogleOAuthURL returns the backend URL that starts Google sign-in
func (c *Client) GoogleOAuthURL() string {
	return c.baseURL + "/auth/google"
}

// TokenExpiry reads the exp claim when the opaque token happens to be a JWT.
// The signature is not verified, the result is for display only.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

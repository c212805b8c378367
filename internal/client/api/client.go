// Package api is an HTTP client for the auth service. Every request carries a
// gateway token signed with the configured gateway key, so authctl can talk
// to the service directly without the real gateway in front of it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/gatewayx"
)

// User is the public account view returned by the service.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Country        string    `json:"country"`
	ProfilePicture string    `json:"profilePicture"`
	EmailVerified  bool      `json:"emailVerified"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AuthResult is the body of every JSON success response.
type AuthResult struct {
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
	Token   string `json:"token,omitempty"`
}

type SignupRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Country        string `json:"country"`
	ProfilePicture string `json:"profilePicture"`
}

type Client struct {
	baseURL       string
	gatewaySecret []byte
	gatewayID     string
	http          *http.Client
}

func New(cfg *config.Config) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.ServerURL, "/"),
		gatewaySecret: []byte(cfg.GatewaySecretKey),
		gatewayID:     cfg.GatewayID,
		http:          &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Health returns the plain-text health message.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth-health", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return string(body), nil
}

func (c *Client) Signup(ctx context.Context, in SignupRequest) (*AuthResult, error) {
	return c.do(ctx, http.MethodPost, "/signup", "", in)
}

func (c *Client) Signin(ctx context.Context, username, password string) (*AuthResult, error) {
	return c.do(ctx, http.MethodPost, "/signin", "", map[string]string{
		"username": username,
		"password": password,
	})
}

func (c *Client) VerifyEmail(ctx context.Context, token string) (*AuthResult, error) {
	return c.do(ctx, http.MethodPut, "/verify-email", "", map[string]string{"token": token})
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (*AuthResult, error) {
	return c.do(ctx, http.MethodPut, "/forgot-password", "", map[string]string{"email": email})
}

func (c *Client) ResetPassword(ctx context.Context, token, password, confirm string) (*AuthResult, error) {
	return c.do(ctx, http.MethodPut, "/reset-password/"+url.PathEscape(token), "", map[string]string{
		"password":        password,
		"confirmPassword": confirm,
	})
}

// ChangePassword needs the session token obtained from Signup or Signin.
func (c *Client) ChangePassword(ctx context.Context, session, current, next string) (*AuthResult, error) {
	return c.do(ctx, http.MethodPut, "/change-password", session, map[string]string{
		"currentPassword": current,
		"newPassword":     next,
	})
}

func (c *Client) do(ctx context.Context, method, path, session string, payload any) (*AuthResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+common.BasePath+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	gw, err := gatewayx.Sign(c.gatewaySecret, c.gatewayID)
	if err != nil {
		return nil, fmt.Errorf("sign gateway token: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.GatewayTokenHeaderName, gw)
	if session != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+session)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var out AuthResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &out, nil
}

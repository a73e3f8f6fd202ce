// Package gateway implements the HTTP client for the remote identity backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-client/internal/config"
	"github.com/spec-kit/marketplace-client/internal/expiry"
	"github.com/spec-kit/marketplace-client/internal/observability"
	"github.com/spec-kit/marketplace-client/pkg/util"
)

// Client talks to the identity backend. Authenticated calls short-circuit
// with a session-expired error when the locally stored expiration has
// already passed, without a network round trip.
type Client struct {
	baseURL string
	http    *http.Client
	clock   *expiry.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewClient builds a gateway client. clock and metrics may be nil.
func NewClient(cfg config.BackendConfig, clock *expiry.Clock, logger *zap.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout()},
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	data, err := c.post(ctx, "/auth/login", "", body)
	if err != nil {
		return nil, err
	}

	var payload loginData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, util.NewMalformedResponse("login response not decodable")
	}
	if payload.AccessToken == "" || payload.User == nil {
		return nil, util.NewMalformedResponse("login response missing token or user")
	}
	return &LoginResult{
		Token:            payload.AccessToken,
		ExpiresInMinutes: payload.ExpiresInMinutes,
		User:             *payload.User,
	}, nil
}

// Register creates an account awaiting OTP verification.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	data, err := c.post(ctx, "/auth/register", "", req)
	if err != nil {
		return nil, err
	}

	var payload registerData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, util.NewMalformedResponse("register response not decodable")
	}
	if payload.User.Email == "" {
		return nil, util.NewMalformedResponse("register response missing user email")
	}
	return &RegisterResult{Email: payload.User.Email, OTPCode: payload.OTPCodeForTesting}, nil
}

// VerifyOTP confirms a registration code and returns an authenticated result.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	body := map[string]string{"email": email, "code": code}
	data, err := c.post(ctx, "/auth/verify-otp", "", body)
	if err != nil {
		return nil, err
	}

	var payload verifyData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, util.NewMalformedResponse("verify response not decodable")
	}
	token := payload.AccessToken
	if token == "" {
		token = payload.Token
	}
	if token == "" || payload.User == nil {
		return nil, util.NewMalformedResponse("verify response missing token or user")
	}
	return &LoginResult{
		Token:            token,
		ExpiresInMinutes: payload.ExpiresInMinutes,
		User:             *payload.User,
	}, nil
}

// ResendOTP asks the backend to re-send the verification code.
func (c *Client) ResendOTP(ctx context.Context, email string) error {
	_, err := c.post(ctx, "/auth/resend-otp", "", map[string]string{"email": email})
	return err
}

// ForgotPassword starts the password recovery flow for the email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.post(ctx, "/auth/forgot-password", "", map[string]string{"email": email})
	return err
}

// Logout invalidates the token server-side.
func (c *Client) Logout(ctx context.Context, token string) error {
	if err := c.checkLocalExpiry(ctx); err != nil {
		return err
	}
	_, err := c.post(ctx, "/auth/logout", token, nil)
	return err
}

// WhoAmI validates the token against the backend. An HTTP 401/403 yields an
// UNAUTHORIZED AuthError, the sole authoritative invalid-token signal.
func (c *Client) WhoAmI(ctx context.Context, token string) (*UserPayload, error) {
	if err := c.checkLocalExpiry(ctx); err != nil {
		return nil, err
	}
	data, err := c.request(ctx, http.MethodGet, "/auth/me", token, nil)
	if err != nil {
		return nil, err
	}

	var payload meData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, util.NewMalformedResponse("who-am-i response not decodable")
	}
	if payload.User == nil {
		return nil, util.NewMalformedResponse("who-am-i response missing user")
	}
	return payload.User, nil
}

func (c *Client) checkLocalExpiry(ctx context.Context) error {
	if c.clock != nil && c.clock.IsExpired(ctx) {
		return util.NewSessionExpired()
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, token string, body interface{}) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, path, token, body)
}

func (c *Client) request(ctx context.Context, method, path, token string, body interface{}) (json.RawMessage, error) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordError(path, util.CodeTransportFailed)
		if c.logger != nil {
			c.logger.Debug("backend request failed", zap.String("path", path), zap.Error(err))
		}
		return nil, util.NewTransportError(err)
	}
	defer resp.Body.Close()

	c.metrics.RecordRequest(path, resp.StatusCode)

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, util.NewUnauthorized(env.Message, resp.StatusCode)
	}
	if decodeErr != nil {
		c.metrics.RecordError(path, util.CodeMalformedResponse)
		return nil, util.NewMalformedResponse("response body not decodable")
	}
	if !env.Success {
		c.metrics.RecordError(path, util.CodeRejected)
		return nil, util.NewRejected(env.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.RecordError(path, util.CodeRejected)
		return nil, util.NewRejected(env.Message)
	}
	return env.Data, nil
}

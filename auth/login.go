package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/accounts"
	"github.com/jrsteele09/go-auth-client/sessions"
)

// Login exchanges credentials for a session and persists it. On any failure nothing is stored
// and an *AuthenticationError carries the message to show the user.
func (c *Client) Login(ctx context.Context, email, password string) (*sessions.Session, error) {
	req := accounts.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.validator.ValidateLoginRequest(req); err != nil {
		return nil, &AuthenticationError{Message: err.Error(), Err: err}
	}

	resp, err := c.postJSON(ctx, accounts.RouteLogin, req)
	if err != nil {
		return nil, fmt.Errorf("[Client.Login] %w", err)
	}
	defer drainAndClose(resp.Body)

	if !isSuccess(resp.StatusCode) {
		c.logger.Info().Int("status", resp.StatusCode).Str("email", req.Email).Msg("login rejected")
		return nil, &AuthenticationError{
			Message:    errorMessage(resp, accounts.DefaultLoginError),
			StatusCode: resp.StatusCode,
		}
	}

	var lr accounts.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, &AuthenticationError{Message: accounts.DefaultLoginError, StatusCode: resp.StatusCode, Err: err}
	}

	session := sessions.Session{
		AccessToken:  lr.Access,
		RefreshToken: lr.Refresh,
		User:         lr.User,
		Tenant:       lr.Tenant,
	}
	if err := c.store.Save(session); err != nil {
		if errors.Is(err, sessions.ErrIncompleteSession) {
			return nil, &AuthenticationError{Message: accounts.DefaultLoginError, StatusCode: resp.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("[Client.Login] store.Save: %w", err)
	}

	if err := c.validator.ValidateAccessToken(lr.Access); err != nil {
		c.logger.Warn().Err(err).Msg("backend issued an opaque access token, it will be refreshed before every request")
	}
	c.logger.Info().Str("email", req.Email).Msg("logged in")
	return &session, nil
}

// Logout clears the stored session. It is safe to call when not logged in.
func (c *Client) Logout() error {
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("[Client.Logout] %w", err)
	}
	c.logger.Info().Msg("logged out")
	return nil
}

// IsAuthenticated reports whether an access token is stored, whether or not it has expired
func (c *Client) IsAuthenticated() bool {
	return c.store.IsAuthenticated()
}

func (c *Client) CurrentUser() (*sessions.UserProfile, bool) {
	return c.store.CurrentUser()
}

// errorMessage reads {error} or {detail} from a failure body
func errorMessage(resp *http.Response, fallback string) string {
	var body accounts.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err != nil {
		return fallback
	}
	return body.Message(fallback)
}

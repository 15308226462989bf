package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-client/accounts"
	"github.com/jrsteele09/go-auth-client/sessions"
)

const refreshFlightKey = "refresh"

// RefreshAccessToken exchanges the stored refresh token for a new access token and stores it.
//
// A 401 from the backend means the refresh token is dead: the session is cleared and the
// returned *RefreshError unwraps to ErrSessionExpired. Any other non-2xx leaves the session
// alone and unwraps to ErrTransientRefresh. Transport errors are returned as they are.
func (c *Client) RefreshAccessToken(ctx context.Context) (*accounts.RefreshResponse, error) {
	refreshToken, ok := c.store.RefreshToken()
	if !ok {
		return nil, &AuthenticationError{Message: noRefreshTokenMessage}
	}

	resp, err := c.postJSON(ctx, accounts.RouteTokenRefresh, accounts.RefreshRequest{Refresh: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("[Client.RefreshAccessToken] %w", err)
	}
	defer drainAndClose(resp.Body)

	if !isSuccess(resp.StatusCode) {
		refreshErr := &RefreshError{
			Message:    errorMessage(resp, accounts.DefaultRefreshError),
			StatusCode: resp.StatusCode,
			Kind:       ErrTransientRefresh,
		}
		if resp.StatusCode == http.StatusUnauthorized {
			refreshErr.Kind = ErrSessionExpired
			if err := c.store.ClearInvalidTokens(); err != nil {
				c.logger.Error().Err(err).Msg("failed to clear session after refresh token was rejected")
			}
		}
		return nil, refreshErr
	}

	var rr accounts.RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil || rr.Access == "" {
		return nil, &RefreshError{Message: accounts.DefaultRefreshError, StatusCode: resp.StatusCode, Kind: ErrTransientRefresh}
	}

	if err := c.store.ApplyRefreshResultFor(refreshToken, rr.Access, rr.Refresh); err != nil {
		return nil, fmt.Errorf("[Client.RefreshAccessToken] store.ApplyRefreshResultFor: %w", err)
	}
	return &rr, nil
}

// refreshStale makes sure the stored access token is newer than staleToken, refreshing at most
// once across all concurrent callers. If another caller already replaced the token no request
// is made. The refresh runs detached from ctx so a caller giving up never fails the others;
// ctx only bounds how long this caller waits.
func (c *Client) refreshStale(ctx context.Context, trigger, staleToken string) error {
	flightCtx := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan(refreshFlightKey, func() (any, error) {
		if current, ok := c.store.AccessToken(); !ok && staleToken != "" {
			// The session was torn down while this caller's request was in flight.
			c.metrics.refresh(trigger, outcomeExpired)
			return nil, &RefreshError{Message: accounts.DefaultRefreshError, StatusCode: http.StatusUnauthorized, Kind: ErrSessionExpired}
		} else if ok && current != staleToken {
			c.metrics.refresh(trigger, outcomeReused)
			return nil, nil
		}

		_, err := c.RefreshAccessToken(flightCtx)
		c.metrics.refresh(trigger, refreshOutcome(err))
		return nil, err
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.sharedWait()
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isRefreshRejection reports whether a refresh failed at the HTTP level (as opposed to the
// transport), in which case the executor falls back to the response it already has.
func isRefreshRejection(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrRefreshFailed) ||
		errors.Is(err, sessions.ErrNoSession)
}

func refreshOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrSessionExpired), errors.Is(err, sessions.ErrNoSession):
		return outcomeExpired
	case errors.Is(err, ErrTransientRefresh):
		return outcomeTransient
	case errors.Is(err, ErrAuthentication):
		return outcomeNoToken
	}
	return outcomeError
}

package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication matches every *AuthenticationError
	ErrAuthentication = errors.New("authentication failed")
	// ErrRefreshFailed matches every *RefreshError
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrSessionExpired means the backend rejected the refresh token; the session has been cleared
	ErrSessionExpired = errors.New("session expired")
	// ErrTransientRefresh means the refresh failed for a reason other than a dead refresh token;
	// the session was left intact
	ErrTransientRefresh = errors.New("transient refresh failure")
	// ErrNotAuthenticated is returned when an operation needs a session and there is none
	ErrNotAuthenticated = errors.New("not authenticated")
)

const noRefreshTokenMessage = "No refresh token available"

// AuthenticationError is a failed login, or a refresh attempted without a refresh token.
// Message is suitable for showing to the user.
type AuthenticationError struct {
	Message    string
	StatusCode int // 0 when no request was sent
	Err        error
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// RefreshError is a non-2xx answer from the refresh endpoint.
// It unwraps to ErrSessionExpired or ErrTransientRefresh.
type RefreshError struct {
	Message    string
	StatusCode int
	Kind       error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}

func (e *RefreshError) Unwrap() error {
	return e.Kind
}

// HTTPError is a non-2xx response from a resource call, as mapped by CheckResponse.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps a final 401 to ErrNotAuthenticated so callers can send the user back to login
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == 401 {
		return ErrNotAuthenticated
	}
	return nil
}

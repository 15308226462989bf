package accounts

import (
	"encoding/json"

	"github.com/jrsteele09/go-auth-client/sessions"
)

// LoginRequest is the body of POST /accounts/login/.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	// Access is the short-lived JWT sent as "Authorization: Bearer <access>"
	Access string `json:"access"`

	// Refresh is exchanged at /accounts/token/refresh/ for a new access token
	Refresh string `json:"refresh"`

	User *sessions.UserProfile `json:"user"`

	// Tenant is present when the account belongs to a renter
	Tenant json.RawMessage `json:"tenant,omitempty"`
}

// RefreshRequest is the body of POST /accounts/token/refresh/.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse carries the new access token. Refresh is only set when the backend
// rotates refresh tokens.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// ErrorResponse is the failure body of both endpoints.
type ErrorResponse struct {
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Message returns the most specific message in the body, or fallback.
func (e ErrorResponse) Message(fallback string) string {
	if e.Error != "" {
		return e.Error
	}
	if e.Detail != "" {
		return e.Detail
	}
	return fallback
}

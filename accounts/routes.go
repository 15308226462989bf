package accounts

// Backend endpoints, relative to the API base URL
const (
	RouteLogin        = "/accounts/login/"
	RouteTokenRefresh = "/accounts/token/refresh/"
)

// Default messages used when the backend does not supply one
const (
	DefaultLoginError   = "Login failed"
	DefaultRefreshError = "Token refresh failed"
)

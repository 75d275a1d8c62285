package aria

import (
	"errors"
	"fmt"
)

// ErrNotLoggedIn is returned by every network call made before Login.
var ErrNotLoggedIn = errors.New("registry session not logged in")

// ErrMissingID is returned when a successful create response carries no id.
var ErrMissingID = errors.New("registry response has no id")

// AuthError reports a failed login: bad credentials or unreachable token endpoint.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("registry authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response from the registry.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsServerError returns true for 5xx responses.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

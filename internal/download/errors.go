package download

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError indicates the daemon could not be authenticated against: it was
// unreachable, timed out, returned no session cookie, or rejected the
// credentials.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// DownloadError indicates the daemon was unreachable, timed out, or rejected
// a request (after the single auth retry, for writes).
type DownloadError struct {
	Op  string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download client: %s: %v", e.Op, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// statusError carries the HTTP status of a rejected daemon request so the
// auth-retry policy can branch on the code rather than on message text.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("daemon returned status %d: %s", e.code, e.body)
	}
	return fmt.Sprintf("daemon returned status %d", e.code)
}

// isAuthStatus reports whether err is a daemon rejection that indicates a
// stale or missing session.
func isAuthStatus(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code == http.StatusUnauthorized || se.code == http.StatusForbidden
}

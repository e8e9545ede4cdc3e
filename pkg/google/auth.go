// Package google defines the OAuth collaborator boundary used by the
// calendar and email tools, and the error taxonomy the tool executor maps
// to a uniform "reconnect required" result.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code identifies why an authorized client could not be produced.
type Code string

const (
	// CodeNotConnected: the user never linked a Google account.
	CodeNotConnected Code = "NOT_CONNECTED"
	// CodeNoRefresh: a token exists but carries no refresh token.
	CodeNoRefresh Code = "NO_REFRESH"
	// CodeRefreshFailed: the refresh attempt was rejected upstream.
	CodeRefreshFailed Code = "REFRESH_FAILED"
)

// AuthError is returned by ClientProvider implementations. All three codes
// share one remedy for the end user: reconnect the Google account.
type AuthError struct {
	Code   Code
	UserID string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("google auth %s for user %s: %v", e.Code, e.UserID, e.Err)
	}
	return fmt.Sprintf("google auth %s for user %s", e.Code, e.UserID)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsReconnectRequired reports whether err is any AuthError; the user-facing
// remedy (relink the account) is the same for every code.
func IsReconnectRequired(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ClientProvider produces an HTTP client whose requests carry a valid,
// refreshed OAuth token for the given user. Token storage and the refresh
// flow live behind this interface.
type ClientProvider interface {
	AuthorizedClient(ctx context.Context, userID string) (*http.Client, error)
}

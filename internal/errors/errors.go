package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Broker error taxonomy. Every error returned to an HTTP caller resolves to
// one of these through errors.Is.
var (
	// Configuration errors
	ErrConfig = errors.New("strava client not configured")

	// Authorization flow errors
	ErrInvalidOAuthState   = errors.New("invalid oauth state")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrUnauthenticated     = errors.New("unauthenticated")

	// Upstream errors
	ErrUpstreamAuth  = errors.New("upstream authorization failed")
	ErrRefreshFailed = errors.New("token refresh failed")
	ErrUpstreamFetch = errors.New("upstream fetch failed")

	// Storage errors
	ErrNotFound = errors.New("not found")

	// General errors
	ErrInternal = errors.New("internal error")
)

type classification struct {
	status  int
	message string
}

// Checked in order: a refresh failure wraps the upstream auth error it came from.
var classifications = []struct {
	err error
	classification
}{
	{ErrConfig, classification{http.StatusInternalServerError, "Strava client not configured."}},
	{ErrInvalidOAuthState, classification{http.StatusBadRequest, "Invalid or expired OAuth state."}},
	{ErrAuthorizationDenied, classification{http.StatusBadRequest, "Strava authorization was denied."}},
	{ErrUnauthenticated, classification{http.StatusUnauthorized, "Connect Strava to unlock activities."}},
	{ErrRefreshFailed, classification{http.StatusInternalServerError, "Failed to refresh Strava credentials."}},
	{ErrUpstreamAuth, classification{http.StatusInternalServerError, "Failed to complete Strava authorization."}},
	{ErrUpstreamFetch, classification{http.StatusBadGateway, "Unable to fetch Strava activities."}},
}

var internal = classification{http.StatusInternalServerError, "Internal error."}

func classify(err error) classification {
	for _, c := range classifications {
		if errors.Is(err, c.err) {
			return c.classification
		}
	}
	return internal
}

// HTTPStatus maps err onto the status code returned to the browser.
func HTTPStatus(err error) int {
	return classify(err).status
}

// PublicMessage is the caller-safe message for err. Wrapped detail is never exposed.
func PublicMessage(err error) string {
	return classify(err).message
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Mark returns an error matching both kind and cause under errors.Is.
func Mark(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// Transfer errors.
var (
	// ErrTransfer wraps network, timeout, status and write failures. Callers
	// may retry these with the same link.
	ErrTransfer = errors.New("transfer failed")
	// ErrLinkExpired is returned for 403/404/410 responses: the CDN no longer
	// honours the link or its cookies, so it must be resolved again.
	ErrLinkExpired = errors.New("link expired")
	// ErrRedirectProtocolViolation is returned when the server redirects more
	// than once. It is not retried.
	ErrRedirectProtocolViolation = errors.New("more than one redirect hop")
	// ErrInvalidURL is returned before any request is made.
	ErrInvalidURL = errors.New("invalid URL")
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s from %s", e.Code, http.StatusText(e.Code), e.URL)
}

// Unwrap classifies the status as ErrLinkExpired or ErrTransfer.
func (e *StatusError) Unwrap() error {
	if Expired(e.Code) {
		return ErrLinkExpired
	}
	return ErrTransfer
}

// Expired reports whether a CDN status means the link is stale.
func Expired(code int) bool {
	switch code {
	case http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return true
	}
	return false
}

func transferErr(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrTransfer, fmt.Errorf(format, args...))
}

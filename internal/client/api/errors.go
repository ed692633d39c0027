package api

import "errors"

// Sentinel errors for the failure classes an operation can hit. Callers
// match them with errors.Is; wrapped messages carry the detail.
var (
	// ErrValidation marks local, pre-network input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrAuthRequired is returned when an operation needs a session and
	// none exists. No network call is made.
	ErrAuthRequired = errors.New("authorization required")

	// ErrPermission is returned when the caller is authenticated but does
	// not own the target resource. No network call is made.
	ErrPermission = errors.New("permission denied")

	// ErrSessionExpired is returned on a 401 response. The session has
	// already been invalidated by the time the caller sees it.
	ErrSessionExpired = errors.New("session expired, please log in again")

	// ErrServerRejected wraps any other non-2xx response.
	ErrServerRejected = errors.New("request rejected")

	// ErrUnavailable covers network-level failures: the request never
	// produced an HTTP response at all.
	ErrUnavailable = errors.New("server unavailable")
)

package bestway

import "errors"

// Domain errors for the bestway package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, bestway.ErrTokenInvalid) {
//	    // trigger a re-login
//	}
var (
	// ErrTokenInvalid is returned when the server reports the user token
	// is invalid or expired (vendor error code 9004). The caller should
	// obtain a fresh token via GetUserToken.
	ErrTokenInvalid = errors.New("bestway: auth token invalid or expired")

	// ErrUserNotFound is returned when the server reports the user does
	// not exist (vendor error code 9005).
	ErrUserNotFound = errors.New("bestway: user does not exist")

	// ErrIncorrectPassword is returned when the server rejects the
	// password during login (vendor error code 9020).
	ErrIncorrectPassword = errors.New("bestway: password is incorrect")

	// ErrDeviceOffline is returned when the server reports the device is
	// offline (vendor error code 9042). The caller decides whether to retry.
	ErrDeviceOffline = errors.New("bestway: server reports device is offline")

	// ErrDeviceNotRecognised is returned when a command targets a device
	// that has never appeared in a status response. Commands require at
	// least one successful status fetch so the optimistic update has a
	// cache entry to apply to. Not retryable.
	ErrDeviceNotRecognised = errors.New("bestway: device not recognised")

	// ErrUnsupportedCommand is returned when a logical command is not
	// available on the target device type.
	ErrUnsupportedCommand = errors.New("bestway: command not supported by device type")

	// ErrAPI is the generic wrapper for unexpected HTTP statuses and
	// malformed responses from the vendor API.
	ErrAPI = errors.New("bestway: api error")
)

// IsAuthError reports whether err is one of the authentication errors
// that should be surfaced to a re-authentication flow rather than retried.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrIncorrectPassword)
}

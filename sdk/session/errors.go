package session

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is wrapped by every terminal authentication failure: a
// failed refresh call, or an expiry with no refresh token on hand. Callers
// match it with errors.Is to distinguish "logged out" from ordinary request
// failures.
var ErrSessionExpired = errors.New("session expired")

// ErrNoRefreshToken reports an expiry that cannot be recovered because the
// store holds no refresh token. It wraps ErrSessionExpired.
var ErrNoRefreshToken = fmt.Errorf("%w: no refresh token stored", ErrSessionExpired)

package auth

import "errors"

// Sentinel errors for the authentication core. Handlers classify with
// errors.Is; token verification detail is collapsed to ErrUnauthorized
// before it crosses the process boundary.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("account not verified")
	ErrBanned             = errors.New("account banned")
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrTokenReuse         = errors.New("refresh token reuse detected")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrStoreUnavailable   = errors.New("credential store unavailable")
	ErrCacheUnavailable   = errors.New("session cache unavailable")
)

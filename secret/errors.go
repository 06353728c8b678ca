package secret

import "errors"

// Sentinel errors for secret resolution.
var (
	ErrMissingVariable = errors.New("secret: missing environment variable")
	ErrUnknownProvider = errors.New("secret: provider is not registered")
	ErrEmptySecret     = errors.New("secret: provider returned empty value")
)

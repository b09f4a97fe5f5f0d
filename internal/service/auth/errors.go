package auth

import "errors"

// Token validation failures. The middleware maps all of them to 401.
var (
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
	// ErrMissingSubject is returned for a well-signed token without a user.
	ErrMissingSubject = errors.New("authentication token has no subject")
)

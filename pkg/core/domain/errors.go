package domain

import "errors"

var (
	// ErrInvalidRequest is returned for malformed or disallowed input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound covers missing, inactive and not-owned links alike.
	ErrNotFound = errors.New("not found")
	// ErrTokenExhaustion is returned when no free link id was found within the retry bound.
	ErrTokenExhaustion = errors.New("link id space exhausted")
	// ErrDenied is returned by the authorization gate.
	ErrDenied = errors.New("denied")
	// ErrIssuance is returned when credentials could not be registered.
	ErrIssuance = errors.New("credential issuance failed")
	// ErrEmailTaken is returned on sign-up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed sign-in.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict is returned by stores when a put-if-absent finds an existing key.
	ErrConflict = errors.New("already exists")
)

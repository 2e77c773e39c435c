package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")

	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingDestination = errors.New("no destination token")
	ErrInvalidToken       = errors.New("invalid device token")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrEncoding           = errors.New("encoding error")
	ErrTLSAuthorization   = errors.New("tls authorization failed")
	ErrConnection         = errors.New("gateway connection failed")
)

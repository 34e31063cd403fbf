package services

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("order not found")
	ErrInvalidRequest  = errors.New("invalid request")
)

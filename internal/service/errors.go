package service

import "errors"

var (
	ErrUnauthenticated   = errors.New("caller identity is required")
	ErrForbidden         = errors.New("not allowed to access this resource")
	ErrInvalidTransition = errors.New("booking status transition not allowed")
	ErrDateOutOfRange    = errors.New("date is outside the bookable window")
	ErrServiceInactive   = errors.New("service is not available for booking")
	ErrInvalidRequest    = errors.New("invalid request")
)

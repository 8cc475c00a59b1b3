package api

import "errors"

var (
	ErrBadParam       = errors.New("invalid parameter")
	ErrMissingQuery   = errors.New("missing query parameter")
	ErrMissingMatch   = errors.New("no match[] parameter provided")
	ErrNotSelector    = errors.New("match[] must be a series selector")
	ErrBadBody        = errors.New("invalid request body")
	ErrRateLimited    = errors.New("write rate limit exceeded")
	ErrNodeNotFound   = errors.New("node not found")
	ErrAlreadyStarted = errors.New("server already started")
)
